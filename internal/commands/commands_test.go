// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ManuGH/wdagate/internal/devicetime"
	"github.com/ManuGH/wdagate/internal/wda"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func screenProxy(scale, statusBar, width, height string) *recordingProxy {
	return &recordingProxy{responses: map[string]string{
		"GET /wda/screen":          `{"statusBarSize":{"width":400,"height":` + statusBar + `},"scale":` + scale + `}`,
		"GET /window/current/size": `{"width":` + width + `,"height":` + height + `}`,
	}}
}

func TestComputeViewport(t *testing.T) {
	got := ComputeViewport(2, 20, wda.Size{Width: 400, Height: 800})
	want := Viewport{Left: 0, Top: 40, Width: 800, Height: 1560}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("viewport mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeViewport_RoundsStatusBar(t *testing.T) {
	got := ComputeViewport(3, 20.5, wda.Size{Width: 375, Height: 812})
	assert.Equal(t, 62.0, got.Top)
	assert.Equal(t, 1125.0, got.Width)
	assert.Equal(t, 2436.0-62.0, got.Height)
}

func TestComputeViewport_NegativeHeightPassesThrough(t *testing.T) {
	got := ComputeViewport(2, 100, wda.Size{Width: 50, Height: 40})
	assert.Equal(t, 200.0, got.Top)
	assert.Equal(t, -120.0, got.Height)
}

func TestGetViewportRect_SequentialOrder(t *testing.T) {
	proxy := screenProxy("2", "20", "400", "800")
	c := New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{})

	got, err := c.GetViewportRect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Viewport{Left: 0, Top: 40, Width: 800, Height: 1560}, got)
	assert.Equal(t, []string{"GET /wda/screen", "GET /wda/screen", "GET /window/current/size"}, proxy.calls)
}

func TestGetWindowRect_Idempotent(t *testing.T) {
	proxy := screenProxy("3", "47", "390", "844")
	c := New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{})

	first, err := c.GetWindowRect(context.Background())
	require.NoError(t, err)
	second, err := c.GetWindowRect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Rect{X: 0, Y: 0, Width: 390, Height: 844}, first)
	assert.Equal(t, first, second)
}

func TestGetWindowSize_OtherHandleNotImplemented(t *testing.T) {
	proxy := &proxyMock{}
	c := New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{})

	_, err := c.GetWindowSize(context.Background(), "CDwindow-1")
	assert.ErrorIs(t, err, ErrNotImplemented)
	proxy.AssertNotCalled(t, "ProxyCommand", mock.Anything, mock.Anything)
}

func TestGetWindowSize_WebContextUsesAtom(t *testing.T) {
	atoms := &atomStub{value: `{"width":320,"height":568}`}
	c := New(Deps{
		Proxy:      &proxyMock{},
		Atoms:      atoms,
		WebContext: func() bool { return true },
		Logger:     nopLogger(),
	}, Device{})

	size, err := c.GetWindowSize(context.Background(), "current")
	require.NoError(t, err)
	assert.Equal(t, "get_window_size", atoms.name)
	assert.Equal(t, wda.Size{Width: 320, Height: 568}, size)
}

func TestGetWindowSize_WebContextWithoutAtoms(t *testing.T) {
	c := New(Deps{Proxy: &proxyMock{}, WebContext: func() bool { return true }, Logger: nopLogger()}, Device{})
	_, err := c.GetWindowSize(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestGetDeviceTime_PhysicalOffsetMinutes(t *testing.T) {
	offset := 120.0
	src := &staticSource{reading: devicetime.Reading{Timestamp: 1700000000, UTCOffset: &offset}}
	c := New(Deps{Proxy: &proxyMock{}, TimeSource: src, Logger: nopLogger()}, Device{UDID: "abc"})

	got, err := c.GetDeviceTime(context.Background(), "")
	require.NoError(t, err)

	want := devicetime.Format(time.Unix(1700000000, 0).In(time.FixedZone("", 7200)), devicetime.DefaultFormat)
	assert.Equal(t, want, got)
	assert.Equal(t, "abc", src.udid)
}

func TestGetDeviceTime_ZoneName(t *testing.T) {
	offset := 900.0
	src := &staticSource{reading: devicetime.Reading{
		Timestamp: 1700000000,
		UTCOffset: &offset,
		TimeZone:  devicetime.ZoneName("Europe/Berlin"),
	}}
	c := New(Deps{Proxy: &proxyMock{}, TimeSource: src, Logger: nopLogger()}, Device{})

	got, err := c.GetDeviceTime(context.Background(), "YYYY-MM-DD HH:mm ZZ")
	require.NoError(t, err)
	assert.Equal(t, "2023-11-14 23:13 +0100", got)
}

func TestGetDeviceTime_SimulatorRawFallback(t *testing.T) {
	c := New(Deps{Proxy: &proxyMock{}, Runner: staticRunner{stdout: "garbage output\n"}, Logger: nopLogger()}, Device{Simulator: true})

	got, err := c.GetDeviceTime(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "garbage output", got)
}

func TestGetDeviceTime_NoSourceForPhysical(t *testing.T) {
	c := New(Deps{Proxy: &proxyMock{}, Logger: nopLogger()}, Device{})
	_, err := c.GetDeviceTime(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestGetDeviceTime_SourceError(t *testing.T) {
	boom := errors.New("lockdown unavailable")
	c := New(Deps{Proxy: &proxyMock{}, TimeSource: &staticSource{err: boom}, Logger: nopLogger()}, Device{})
	_, err := c.GetDeviceTime(context.Background(), "")
	assert.ErrorIs(t, err, boom)
}

func TestPressButton(t *testing.T) {
	proxy := &proxyMock{}
	hold := 1.5
	proxy.On("ProxyCommand", mock.Anything, wda.Post("/wda/pressButton", map[string]any{"name": "home", "duration": 1.5}, false)).
		Return(json.RawMessage("null"), nil).Once()
	proxy.On("ProxyCommand", mock.Anything, wda.Post("/wda/pressButton", map[string]any{"name": "volumeUp"}, false)).
		Return(json.RawMessage("null"), nil).Once()

	c := New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{})
	_, err := c.PressButton(context.Background(), "home", &hold)
	require.NoError(t, err)
	_, err = c.PressButton(context.Background(), "volumeUp", nil)
	require.NoError(t, err)
	proxy.AssertExpectations(t)
}

func TestPressButton_EmptyName(t *testing.T) {
	proxy := &proxyMock{}
	c := New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{})

	_, err := c.PressButton(context.Background(), " ", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	proxy.AssertNotCalled(t, "ProxyCommand", mock.Anything, mock.Anything)
}

func TestClosestButton(t *testing.T) {
	name, known := closestButton("home")
	assert.True(t, known)
	assert.Equal(t, "home", name)

	name, known = closestButton("volumUp")
	assert.False(t, known)
	assert.Equal(t, "volumeUp", name)

	name, known = closestButton("powerButtonLongPress")
	assert.False(t, known)
	assert.Empty(t, name)
}

func TestSiriCommand_NormalizesText(t *testing.T) {
	proxy := &proxyMock{}
	// "e" followed by a combining acute accent composes to U+00E9.
	proxy.On("ProxyCommand", mock.Anything, wda.Post("/wda/siri/activate", map[string]any{"text": "caf\u00e9"}, false)).
		Return(json.RawMessage("null"), nil).Once()

	c := New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{})
	_, err := c.SiriCommand(context.Background(), "cafe\u0301")
	require.NoError(t, err)
	proxy.AssertExpectations(t)
}

func TestSiriCommand_EmptyText(t *testing.T) {
	c := New(Deps{Proxy: &proxyMock{}, Logger: nopLogger()}, Device{})
	_, err := c.SiriCommand(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLock_UnlocksAfterWait(t *testing.T) {
	proxy := &recordingProxy{responses: map[string]string{}}
	c := New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{})

	wait := 0.01
	require.NoError(t, c.Lock(context.Background(), &wait))
	assert.Equal(t, []string{"POST /wda/lock", "POST /wda/unlock"}, proxy.calls)
}

func TestLock_NoUnlockWithoutSeconds(t *testing.T) {
	proxy := &recordingProxy{responses: map[string]string{}}
	c := New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{})

	zero := 0.0
	require.NoError(t, c.Lock(context.Background(), &zero))
	require.NoError(t, c.Lock(context.Background(), nil))
	assert.Equal(t, []string{"POST /wda/lock", "POST /wda/lock"}, proxy.calls)
}

func TestLock_CancelledWaitSkipsUnlock(t *testing.T) {
	proxy := &recordingProxy{responses: map[string]string{}}
	c := New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	wait := 10.0
	err := c.Lock(ctx, &wait)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"POST /wda/lock"}, proxy.calls)
}

func TestLock_RejectsOverflowingSeconds(t *testing.T) {
	proxy := &recordingProxy{responses: map[string]string{}}
	c := New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{})

	for _, secs := range []float64{1e11, maxLockSeconds, math.MaxFloat64} {
		wait := secs
		err := c.Lock(context.Background(), &wait)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}
	assert.Empty(t, proxy.calls, "no endpoint call before validation")
}

func TestIsLocked(t *testing.T) {
	proxy := &recordingProxy{responses: map[string]string{"GET /wda/locked": "true"}}
	c := New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{})

	locked, err := c.IsLocked(context.Background())
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestDeprecatedLifecycle(t *testing.T) {
	remote := &wda.CommandError{Sentinel: wda.ErrCommandFailed, Operation: "POST /wda/apps/terminate"}
	proxy := &proxyMock{}
	proxy.On("ProxyCommand", mock.Anything, wda.Post("/wda/apps/launch", map[string]any{"bundleId": "com.example.app"}, true)).
		Return(json.RawMessage("null"), nil).Once()
	proxy.On("ProxyCommand", mock.Anything, wda.Post("/wda/apps/terminate", map[string]any{"bundleId": "com.example.app"}, true)).
		Return(nil, remote).Once()

	c := New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{BundleID: "com.example.app"})
	require.NoError(t, c.LaunchApp(context.Background()))

	err := c.CloseApp(context.Background())
	assert.Same(t, remote, err)
	proxy.AssertExpectations(t)
}

func TestDeprecatedLifecycle_NoBundleID(t *testing.T) {
	c := New(Deps{Proxy: &proxyMock{}, Logger: nopLogger()}, Device{})
	assert.ErrorIs(t, c.LaunchApp(context.Background()), ErrInvalidArgument)
}
