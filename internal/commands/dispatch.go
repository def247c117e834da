// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/ManuGH/wdagate/internal/metrics"
	"github.com/ManuGH/wdagate/internal/resilience"
	"github.com/ManuGH/wdagate/internal/telemetry"
	"github.com/ManuGH/wdagate/internal/wda"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Invocation describes one dispatched command for journaling.
type Invocation struct {
	Name     string
	Args     map[string]any
	Started  time.Time
	Duration time.Duration
	Outcome  string
	Err      error
}

// Recorder receives every dispatched command after it finished.
type Recorder interface {
	RecordCommand(ctx context.Context, inv Invocation)
}

type handler struct {
	sessionScoped bool
	run           func(ctx context.Context, c *Commands, args map[string]any) (any, error)
}

// Dispatcher resolves command names to operations and validates their
// arguments before any remote call.
type Dispatcher struct {
	cmds     *Commands
	recorder Recorder
	handlers map[string]handler
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRecorder journals every dispatched command.
func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

// NewDispatcher builds the command table for c.
func NewDispatcher(c *Commands, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{cmds: c, handlers: commandTable()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Names lists the accepted command names, aliases included.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.handlers))
	for n := range d.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named command. args may be nil.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (any, error) {
	h, ok := d.handlers[name]
	if !ok {
		return nil, notImplemented(name, "unknown command")
	}
	if args == nil {
		args = map[string]any{}
	}

	ctx, span := telemetry.Tracer("wdagate.commands").Start(ctx, "wdagate.command")
	span.SetAttributes(telemetry.CommandAttributes(name, h.sessionScoped)...)
	span.SetAttributes(telemetry.DeviceAttributes(d.cmds.device.UDID, d.cmds.device.Simulator)...)
	defer span.End()

	start := time.Now()
	value, err := h.run(ctx, d.cmds, args)
	elapsed := time.Since(start)

	outcome := Outcome(err)
	metrics.ObserveCommand(name, outcome, elapsed)
	span.SetAttributes(attribute.String(telemetry.CommandOutcomeKey, outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.cmds.logger.Debug().Err(err).Str("command", name).Str("outcome", outcome).Msg("command failed")
	} else {
		span.SetStatus(codes.Ok, "")
	}

	if d.recorder != nil {
		d.recorder.RecordCommand(ctx, Invocation{
			Name:     name,
			Args:     args,
			Started:  start,
			Duration: elapsed,
			Outcome:  outcome,
			Err:      err,
		})
	}
	return value, err
}

// Outcome classifies err for metrics and journaling.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrInvalidArgument):
		return metrics.OutcomeInvalidArgument
	case errors.Is(err, ErrNotImplemented):
		return metrics.OutcomeNotImplemented
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, wda.ErrUnavailable), errors.Is(err, wda.ErrTimeout):
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeRemoteFailure
	}
}

func commandTable() map[string]handler {
	t := map[string]handler{}
	add := func(h handler, names ...string) {
		for _, n := range names {
			t[n] = h
		}
	}

	add(handler{sessionScoped: true, run: runBackground}, "background", "backgroundApp", "mobile: backgroundApp")
	add(handler{run: runDeviceTime}, "getDeviceTime", "mobile: getDeviceTime")
	add(handler{sessionScoped: true, run: func(ctx context.Context, c *Commands, args map[string]any) (any, error) {
		handle, err := optionalString("getWindowSize", args, "handle")
		if err != nil {
			return nil, err
		}
		return c.GetWindowSize(ctx, handle)
	}}, "getWindowSize")
	add(handler{sessionScoped: true, run: func(ctx context.Context, c *Commands, _ map[string]any) (any, error) {
		return c.GetWindowRect(ctx)
	}}, "getWindowRect")
	add(handler{sessionScoped: true, run: func(ctx context.Context, c *Commands, _ map[string]any) (any, error) {
		return c.GetViewportRect(ctx)
	}}, "getViewportRect")
	add(handler{run: func(ctx context.Context, c *Commands, _ map[string]any) (any, error) {
		return c.GetScreenInfo(ctx)
	}}, "getScreenInfo")
	add(handler{run: func(ctx context.Context, c *Commands, _ map[string]any) (any, error) {
		return c.GetDevicePixelRatio(ctx)
	}}, "getDevicePixelRatio")
	add(handler{run: func(ctx context.Context, c *Commands, _ map[string]any) (any, error) {
		return c.GetStatusBarHeight(ctx)
	}}, "getStatusBarHeight")
	add(handler{run: runPressButton}, "pressButton", "mobile: pressButton")
	add(handler{run: runSiri}, "siri", "siriCommand", "mobile: siriCommand")
	add(handler{run: func(ctx context.Context, c *Commands, args map[string]any) (any, error) {
		seconds, err := optionalNumber("lock", args, "seconds")
		if err != nil {
			return nil, err
		}
		return nil, c.Lock(ctx, seconds)
	}}, "lock", "mobile: lock")
	add(handler{run: func(ctx context.Context, c *Commands, _ map[string]any) (any, error) {
		return nil, c.Unlock(ctx)
	}}, "unlock", "mobile: unlock")
	add(handler{run: func(ctx context.Context, c *Commands, _ map[string]any) (any, error) {
		return c.IsLocked(ctx)
	}}, "isLocked", "mobile: isLocked")
	add(handler{sessionScoped: true, run: func(ctx context.Context, c *Commands, _ map[string]any) (any, error) {
		return nil, c.LaunchApp(ctx)
	}}, "launchApp")
	add(handler{sessionScoped: true, run: func(ctx context.Context, c *Commands, _ map[string]any) (any, error) {
		return nil, c.CloseApp(ctx)
	}}, "closeApp")
	return t
}

// runBackground accepts {"seconds": n}, {"timeout": n} or no arguments.
func runBackground(ctx context.Context, c *Commands, args map[string]any) (any, error) {
	var spec TimingSpec
	switch {
	case hasKey(args, "seconds"):
		spec = ParseTimingSpec(args["seconds"])
	case hasKey(args, "timeout"):
		spec = ParseTimingSpec(args)
	default:
		spec = NoTiming()
	}
	return nil, c.Background(ctx, spec)
}

func runDeviceTime(ctx context.Context, c *Commands, args map[string]any) (any, error) {
	format, err := optionalString("getDeviceTime", args, "format")
	if err != nil {
		return nil, err
	}
	return c.GetDeviceTime(ctx, format)
}

func runPressButton(ctx context.Context, c *Commands, args map[string]any) (any, error) {
	name, ok := args["name"].(string)
	if !ok || name == "" {
		return nil, invalidArgument("pressButton", "name", "must be a non-empty string", args["name"])
	}
	duration, err := optionalNumber("pressButton", args, "durationSeconds")
	if err != nil {
		return nil, err
	}
	if duration == nil {
		if duration, err = optionalNumber("pressButton", args, "duration"); err != nil {
			return nil, err
		}
	}
	raw, err := c.PressButton(ctx, name, duration)
	return rawValue(raw), err
}

func runSiri(ctx context.Context, c *Commands, args map[string]any) (any, error) {
	text, ok := args["text"].(string)
	if !ok {
		return nil, invalidArgument("siri", "text", "must be a non-empty string", args["text"])
	}
	raw, err := c.SiriCommand(ctx, text)
	return rawValue(raw), err
}

func hasKey(args map[string]any, key string) bool {
	_, ok := args[key]
	return ok
}

func optionalString(command string, args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidArgument(command, key, "must be a string", v)
	}
	return s, nil
}

// optionalNumber accepts JSON numbers only; strings are rejected.
func optionalNumber(command string, args map[string]any, key string) (*float64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	if _, isString := v.(string); isString {
		return nil, invalidArgument(command, key, "must be a number", v)
	}
	n, ok := coerceNumber(v)
	if !ok {
		return nil, invalidArgument(command, key, "must be a number", v)
	}
	return &n, nil
}

func rawValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
