// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManuGH/wdagate/internal/commands"
	"github.com/ManuGH/wdagate/internal/log"
	"github.com/ManuGH/wdagate/internal/persistence/sqlite"
	"github.com/google/uuid"
)

const schema = `
CREATE TABLE IF NOT EXISTS command_journal (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	args        TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	actor       TEXT NOT NULL,
	request_id  TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_command_journal_started ON command_journal(started_at DESC);
`

// Entry is one journaled command.
type Entry struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Args       json.RawMessage `json:"args"`
	Outcome    string          `json:"outcome"`
	Error      string          `json:"error,omitempty"`
	Actor      string          `json:"actor"`
	RequestID  string          `json:"requestId,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	DurationMS int64           `json:"durationMs"`
}

// Journal persists dispatched commands to SQLite and mirrors them to the
// audit log.
type Journal struct {
	db     *sql.DB
	logger *Logger
}

// OpenJournal opens (and migrates) the journal at path.
func OpenJournal(ctx context.Context, path string, logger *Logger) (*Journal, error) {
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if problems, err := sqlite.VerifyIntegrity(ctx, db, false); err != nil || len(problems) > 0 {
		_ = db.Close()
		if err == nil {
			err = fmt.Errorf("audit: journal %s failed integrity check: %v", path, problems)
		}
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: migrate journal: %w", err)
	}
	if logger == nil {
		logger = NewLogger()
	}
	return &Journal{db: db, logger: logger}, nil
}

// RecordCommand implements commands.Recorder. Journal write failures are
// logged, never returned to the command caller.
func (j *Journal) RecordCommand(ctx context.Context, inv commands.Invocation) {
	ev := commandEvent(ctx, inv)
	j.logger.LogFromContext(ctx, ev)

	args, err := json.Marshal(inv.Args)
	if err != nil {
		args = []byte("{}")
	}
	errText := ""
	if inv.Err != nil {
		errText = inv.Err.Error()
	}

	// Detached so a cancelled request still lands in the journal.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	_, err = j.db.ExecContext(writeCtx,
		`INSERT INTO command_journal (id, name, args, outcome, error, actor, request_id, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), inv.Name, string(args), inv.Outcome, errText, ev.Actor,
		log.RequestIDFromContext(ctx), inv.Started.UnixMilli(), inv.Duration.Milliseconds(),
	)
	if err != nil {
		j.logger.logger.Warn().Err(err).Str(log.FieldCommand, inv.Name).Msg("failed to write command journal")
	}
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, name, args, outcome, error, actor, request_id, started_at, duration_ms
		 FROM command_journal ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query journal: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e       Entry
			args    string
			started int64
		)
		if err := rows.Scan(&e.ID, &e.Name, &args, &e.Outcome, &e.Error, &e.Actor, &e.RequestID, &started, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("audit: scan journal: %w", err)
		}
		e.Args = json.RawMessage(args)
		e.StartedAt = time.UnixMilli(started).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Ping checks the database connection.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

var _ commands.Recorder = (*Journal)(nil)
