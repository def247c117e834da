// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ManuGH/wdagate/internal/metrics"
	"github.com/ManuGH/wdagate/internal/resilience"
	"github.com/ManuGH/wdagate/internal/wda"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDispatch_BackgroundArgumentShapes(t *testing.T) {
	home := wda.Post("/wda/homescreen", nil, false)
	deactivate := func(d float64) wda.Request {
		return wda.Post("/wda/deactivateApp", map[string]any{"duration": d}, true)
	}

	tests := []struct {
		name string
		args map[string]any
		want wda.Request
	}{
		{name: "no args", args: nil, want: home},
		{name: "seconds", args: map[string]any{"seconds": 3.0}, want: deactivate(3)},
		{name: "seconds zero", args: map[string]any{"seconds": 0.0}, want: deactivate(0)},
		{name: "seconds negative", args: map[string]any{"seconds": -1.0}, want: home},
		{name: "seconds null", args: map[string]any{"seconds": nil}, want: home},
		{name: "seconds text", args: map[string]any{"seconds": "abc"}, want: home},
		{name: "structured timeout", args: map[string]any{"timeout": 2.0}, want: deactivate(2)},
		{name: "structured negative", args: map[string]any{"timeout": -5.0}, want: home},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proxy := &proxyMock{}
			proxy.On("ProxyCommand", mock.Anything, tt.want).Return(json.RawMessage("null"), nil).Once()
			d := NewDispatcher(New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{}))

			_, err := d.Dispatch(context.Background(), "mobile: backgroundApp", tt.args)
			require.NoError(t, err)
			proxy.AssertExpectations(t)
			proxy.AssertNumberOfCalls(t, "ProxyCommand", 1)
		})
	}
}

func TestDispatch_ValidationBeforeRemoteCall(t *testing.T) {
	tests := []struct {
		command string
		args    map[string]any
	}{
		{"pressButton", map[string]any{}},
		{"pressButton", map[string]any{"name": ""}},
		{"pressButton", map[string]any{"name": 5}},
		{"pressButton", map[string]any{"name": "home", "durationSeconds": "long"}},
		{"pressButton", map[string]any{"name": "home", "duration": true}},
		{"siri", map[string]any{}},
		{"mobile: siriCommand", map[string]any{"text": ""}},
		{"lock", map[string]any{"seconds": "2"}},
		{"getDeviceTime", map[string]any{"format": 12}},
		{"getWindowSize", map[string]any{"handle": 1}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %v", tt.command, tt.args), func(t *testing.T) {
			proxy := &proxyMock{}
			d := NewDispatcher(New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{}))

			_, err := d.Dispatch(context.Background(), tt.command, tt.args)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			proxy.AssertNotCalled(t, "ProxyCommand", mock.Anything, mock.Anything)
		})
	}
}

func TestDispatch_PressButtonReturnsEndpointValue(t *testing.T) {
	proxy := &proxyMock{}
	proxy.On("ProxyCommand", mock.Anything, wda.Post("/wda/pressButton", map[string]any{"name": "volumeDown", "duration": 2.0}, false)).
		Return(json.RawMessage(`{"ok":true}`), nil).Once()
	d := NewDispatcher(New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{}))

	value, err := d.Dispatch(context.Background(), "mobile: pressButton", map[string]any{"name": "volumeDown", "durationSeconds": 2.0})
	require.NoError(t, err)
	out, err := json.Marshal(value)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))
}

func TestDispatch_UnknownCommand(t *testing.T) {
	d := NewDispatcher(New(Deps{Proxy: &proxyMock{}, Logger: nopLogger()}, Device{}))
	_, err := d.Dispatch(context.Background(), "teleport", nil)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestDispatch_RecorderSeesOutcome(t *testing.T) {
	proxy := &proxyMock{}
	proxy.On("ProxyCommand", mock.Anything, mock.Anything).Return(json.RawMessage("false"), nil)
	rec := &recorderStub{}
	d := NewDispatcher(New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{}), WithRecorder(rec))

	value, err := d.Dispatch(context.Background(), "isLocked", nil)
	require.NoError(t, err)
	assert.Equal(t, false, value)

	_, err = d.Dispatch(context.Background(), "siri", map[string]any{"text": ""})
	require.Error(t, err)

	require.Len(t, rec.invs, 2)
	assert.Equal(t, "isLocked", rec.invs[0].Name)
	assert.Equal(t, metrics.OutcomeSuccess, rec.invs[0].Outcome)
	assert.Equal(t, "siri", rec.invs[1].Name)
	assert.Equal(t, metrics.OutcomeInvalidArgument, rec.invs[1].Outcome)
	assert.Error(t, rec.invs[1].Err)
}

func TestDispatch_NamesIncludeAliases(t *testing.T) {
	d := NewDispatcher(New(Deps{Proxy: &proxyMock{}, Logger: nopLogger()}, Device{}))
	names := d.Names()
	for _, n := range []string{"background", "mobile: backgroundApp", "getDeviceTime", "getWindowRect", "getViewportRect", "pressButton", "siri", "lock", "launchApp"} {
		assert.Contains(t, names, n)
	}
	assert.IsIncreasing(t, names)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, metrics.OutcomeSuccess, Outcome(nil))
	assert.Equal(t, metrics.OutcomeInvalidArgument, Outcome(invalidArgument("x", "y", "z", nil)))
	assert.Equal(t, metrics.OutcomeNotImplemented, Outcome(notImplemented("x", "y")))
	assert.Equal(t, metrics.OutcomeUnavailable, Outcome(resilience.ErrCircuitOpen))
	assert.Equal(t, metrics.OutcomeUnavailable, Outcome(&wda.CommandError{Sentinel: wda.ErrTimeout}))
	assert.Equal(t, metrics.OutcomeRemoteFailure, Outcome(&wda.CommandError{Sentinel: wda.ErrCommandFailed}))
}
