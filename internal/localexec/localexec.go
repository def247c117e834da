// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package localexec runs short host commands (simulator shell, lockdown
// queries) in their own process group so cancellation reaps the whole tree.
package localexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	xglog "github.com/ManuGH/wdagate/internal/log"
)

var (
	ErrNotFound   = errors.New("localexec: executable not found")
	ErrExitStatus = errors.New("localexec: command exited with non-zero status")
)

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs a host command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Exec runs commands on the local host.
type Exec struct {
	// Grace is the time between SIGTERM and SIGKILL after ctx is done.
	Grace time.Duration
}

const defaultGrace = 2 * time.Second

// Run starts name with args and waits for it. Output is captured fully.
func (e Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	grace := e.Grace
	if grace <= 0 {
		grace = defaultGrace
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	setGroup(cmd)
	cmd.Cancel = func() error { return terminateGroup(cmd) }
	cmd.WaitDelay = grace

	logger := xglog.WithComponentFromContext(ctx, "localexec")
	start := time.Now()
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	logger.Debug().
		Str("cmd", name).
		Strs("args", args).
		Int("exit_code", res.ExitCode).
		Int64(xglog.FieldDuration, time.Since(start).Milliseconds()).
		Msg("local command finished")

	if err == nil {
		return res, nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return res, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("%s: %w", name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, fmt.Errorf("%w: %s exited %d: %s", ErrExitStatus, name, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res, fmt.Errorf("%s: %w", name, err)
}
