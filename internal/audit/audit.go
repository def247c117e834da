// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package audit records who ran which device command and how it ended,
// as structured log events and optionally in a SQLite journal.
package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/ManuGH/wdagate/internal/commands"
	"github.com/ManuGH/wdagate/internal/log"
	"github.com/rs/zerolog"
)

// EventType represents the type of audit event.
type EventType string

const (
	EventConfigReload      EventType = "config.reload"
	EventConfigReloadError EventType = "config.reload.error"

	EventCommandSuccess EventType = "command.success"
	EventCommandFailure EventType = "command.failure"
)

// Event represents a structured audit event.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	Actor     string            `json:"actor"`
	Action    string            `json:"action"`
	Resource  string            `json:"resource"`
	Result    string            `json:"result"`
	RequestID string            `json:"request_id"`
	Details   map[string]string `json:"details,omitempty"`
}

// Logger writes audit events through the "audit" component logger.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates an audit logger.
func NewLogger() *Logger {
	return NewLoggerWith(log.WithComponent("audit"))
}

// NewLoggerWith wraps an existing logger.
func NewLoggerWith(l zerolog.Logger) *Logger {
	return &Logger{logger: l.With().Str("log_type", "audit").Logger()}
}

// Log writes an audit event.
func (l *Logger) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ev := l.logger.Info().
		Time("timestamp", event.Timestamp).
		Str("event_type", string(event.Type)).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("resource", event.Resource).
		Str("result", event.Result)
	if event.RequestID != "" {
		ev = ev.Str(log.FieldRequestID, event.RequestID)
	}
	for key, value := range event.Details {
		ev = ev.Str(key, value)
	}
	ev.Msg("audit event")
}

// LogFromContext fills the request ID from ctx before logging.
func (l *Logger) LogFromContext(ctx context.Context, event Event) {
	if event.RequestID == "" {
		event.RequestID = log.RequestIDFromContext(ctx)
	}
	l.Log(event)
}

// ConfigReload logs a configuration reload.
func (l *Logger) ConfigReload(actor, result string, details map[string]string) {
	typ := EventConfigReload
	if result != "success" {
		typ = EventConfigReloadError
	}
	l.Log(Event{
		Type:     typ,
		Actor:    actor,
		Action:   "reloaded configuration",
		Resource: "config",
		Result:   result,
		Details:  details,
	})
}

// RecordCommand implements commands.Recorder by logging the invocation.
func (l *Logger) RecordCommand(ctx context.Context, inv commands.Invocation) {
	l.LogFromContext(ctx, commandEvent(ctx, inv))
}

func commandEvent(ctx context.Context, inv commands.Invocation) Event {
	typ := EventCommandSuccess
	if inv.Err != nil {
		typ = EventCommandFailure
	}
	details := map[string]string{
		"duration_ms": strconv.FormatInt(inv.Duration.Milliseconds(), 10),
	}
	if inv.Err != nil {
		details["error"] = inv.Err.Error()
	}
	if udid := log.DeviceFromContext(ctx); udid != "" {
		details[log.FieldDeviceUDID] = udid
	}
	return Event{
		Timestamp: inv.Started,
		Type:      typ,
		Actor:     actorFromContext(ctx),
		Action:    "dispatched command",
		Resource:  inv.Name,
		Result:    inv.Outcome,
		Details:   details,
	}
}

type actorKey struct{}

// ContextWithActor tags ctx with the caller identity (remote address, "cli").
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFromContext(ctx context.Context) string {
	if ctx != nil {
		if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
			return a
		}
	}
	return "system"
}

var _ commands.Recorder = (*Logger)(nil)
