// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package commands implements the high-level device operations: app
// backgrounding, device time, window and viewport geometry, hardware
// buttons, Siri and lock control. Every collaborator is injected; the
// package keeps no state between calls.
package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ManuGH/wdagate/internal/devicetime"
	"github.com/ManuGH/wdagate/internal/localexec"
	xglog "github.com/ManuGH/wdagate/internal/log"
	"github.com/ManuGH/wdagate/internal/metrics"
	"github.com/ManuGH/wdagate/internal/wda"
	"github.com/rs/zerolog"
)

// Proxy sends one command to the automation endpoint and returns its value.
type Proxy interface {
	ProxyCommand(ctx context.Context, req wda.Request) (json.RawMessage, error)
}

// AtomExecutor runs a named browser atom inside the active web view.
type AtomExecutor interface {
	ExecuteAtom(ctx context.Context, name string, args []any) (json.RawMessage, error)
}

// ScreenMetrics provides the pixel ratio and status bar height. Callers may
// memoize these per session; Commands asks on every call.
type ScreenMetrics interface {
	PixelRatio(ctx context.Context) (float64, error)
	StatusBarHeight(ctx context.Context) (float64, error)
}

// Device identifies the automation target.
type Device struct {
	UDID      string
	Simulator bool
	BundleID  string
}

// Deps are the collaborators used by Commands. Proxy is required.
type Deps struct {
	Proxy      Proxy
	TimeSource devicetime.Source
	Runner     localexec.Runner
	Atoms      AtomExecutor
	// Screen defaults to uncached endpoint queries.
	Screen ScreenMetrics
	// WebContext reports whether a web view is the active context.
	WebContext func() bool
	Logger     *zerolog.Logger
}

// Commands executes device operations against injected collaborators.
type Commands struct {
	proxy      Proxy
	timeSource devicetime.Source
	runner     localexec.Runner
	atoms      AtomExecutor
	screen     ScreenMetrics
	webContext func() bool
	device     Device
	logger     zerolog.Logger
}

// New wires a Commands value.
func New(deps Deps, device Device) *Commands {
	c := &Commands{
		proxy:      deps.Proxy,
		timeSource: deps.TimeSource,
		runner:     deps.Runner,
		atoms:      deps.Atoms,
		screen:     deps.Screen,
		webContext: deps.WebContext,
		device:     device,
	}
	if deps.Logger != nil {
		c.logger = *deps.Logger
	} else {
		c.logger = xglog.WithComponent("commands")
	}
	if device.UDID != "" {
		c.logger = c.logger.With().Str(xglog.FieldDeviceUDID, device.UDID).Logger()
	}
	if c.runner == nil {
		c.runner = localexec.Exec{}
	}
	if c.screen == nil {
		c.screen = endpointScreen{c}
	}
	return c
}

// Device returns the configured target.
func (c *Commands) Device() Device { return c.device }

func (c *Commands) inWebContext() bool {
	return c.webContext != nil && c.webContext()
}

// Background sends the app under test to the background. See TimingSpec.Resolve.
func (c *Commands) Background(ctx context.Context, spec TimingSpec) error {
	req, target, ok := spec.Resolve()
	if !ok {
		return invalidArgument("background", "seconds", "cannot be resolved to a backgrounding policy", spec.Raw)
	}
	metrics.RecordBackgroundPolicy(target)

	ev := c.logger.Debug().Str("target", target).Str("timing", spec.Kind.String())
	if target == TargetDeactivate {
		ev = ev.Float64("seconds", spec.Seconds)
	}
	ev.Msg("backgrounding app")

	_, err := c.proxy.ProxyCommand(ctx, req)
	return err
}

// GetDeviceTime returns the device clock rendered with a moment-style pattern.
// An empty pattern selects devicetime.DefaultFormat.
func (c *Commands) GetDeviceTime(ctx context.Context, format string) (string, error) {
	logger := c.logger.With().Str(xglog.FieldCommand, "getDeviceTime").Logger()
	if c.device.Simulator {
		return devicetime.FormatSimulator(ctx, c.runner, format, logger)
	}
	if c.timeSource == nil {
		return "", notImplemented("getDeviceTime", "no time source for physical devices")
	}
	reading, err := c.timeSource.DeviceTime(ctx, c.device.UDID)
	if err != nil {
		return "", fmt.Errorf("getDeviceTime: %w", err)
	}
	return devicetime.FormatReading(reading, format, logger), nil
}

// GetWindowSize returns the logical size of the current window.
func (c *Commands) GetWindowSize(ctx context.Context, handle string) (wda.Size, error) {
	if handle != "" && handle != "current" {
		return wda.Size{}, notImplemented("getWindowSize", fmt.Sprintf("window handle %q, only \"current\" is supported", handle))
	}

	var raw json.RawMessage
	var err error
	if c.inWebContext() {
		if c.atoms == nil {
			return wda.Size{}, notImplemented("getWindowSize", "web context without atom executor")
		}
		raw, err = c.atoms.ExecuteAtom(ctx, "get_window_size", nil)
	} else {
		raw, err = c.proxy.ProxyCommand(ctx, wda.Get("/window/current/size", true))
	}
	if err != nil {
		return wda.Size{}, err
	}

	var size wda.Size
	if err := json.Unmarshal(raw, &size); err != nil {
		return wda.Size{}, fmt.Errorf("getWindowSize: decode %s: %w", string(raw), err)
	}
	return size, nil
}

// GetWindowRect returns the current window anchored at the origin.
func (c *Commands) GetWindowRect(ctx context.Context) (Rect, error) {
	size, err := c.GetWindowSize(ctx, "current")
	if err != nil {
		return Rect{}, err
	}
	return Rect{X: 0, Y: 0, Width: size.Width, Height: size.Height}, nil
}

// GetScreenInfo queries status bar size and scale.
func (c *Commands) GetScreenInfo(ctx context.Context) (wda.ScreenInfo, error) {
	return FetchScreenInfo(ctx, c.proxy)
}

// FetchScreenInfo performs GET /wda/screen through p.
func FetchScreenInfo(ctx context.Context, p Proxy) (wda.ScreenInfo, error) {
	raw, err := p.ProxyCommand(ctx, wda.Get("/wda/screen", false))
	if err != nil {
		return wda.ScreenInfo{}, err
	}
	var info wda.ScreenInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return wda.ScreenInfo{}, fmt.Errorf("getScreenInfo: decode %s: %w", string(raw), err)
	}
	return info, nil
}

// GetDevicePixelRatio returns the screen scale factor.
func (c *Commands) GetDevicePixelRatio(ctx context.Context) (float64, error) {
	return c.screen.PixelRatio(ctx)
}

// GetStatusBarHeight returns the status bar height in logical pixels.
func (c *Commands) GetStatusBarHeight(ctx context.Context) (float64, error) {
	return c.screen.StatusBarHeight(ctx)
}

// GetViewportRect returns the device pixel area below the status bar.
// Scale, status bar height and window size are fetched in that order.
func (c *Commands) GetViewportRect(ctx context.Context) (Viewport, error) {
	scale, err := c.screen.PixelRatio(ctx)
	if err != nil {
		return Viewport{}, err
	}
	statusBar, err := c.screen.StatusBarHeight(ctx)
	if err != nil {
		return Viewport{}, err
	}
	size, err := c.GetWindowSize(ctx, "current")
	if err != nil {
		return Viewport{}, err
	}
	return ComputeViewport(scale, statusBar, size), nil
}

// endpointScreen answers ScreenMetrics straight from /wda/screen.
type endpointScreen struct{ c *Commands }

func (s endpointScreen) PixelRatio(ctx context.Context) (float64, error) {
	info, err := s.c.GetScreenInfo(ctx)
	return info.Scale, err
}

func (s endpointScreen) StatusBarHeight(ctx context.Context) (float64, error) {
	info, err := s.c.GetScreenInfo(ctx)
	return info.StatusBarSize.Height, err
}
