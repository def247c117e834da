// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ManuGH/wdagate/internal/wda"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestParseTimingSpec(t *testing.T) {
	tests := []struct {
		name       string
		in         any
		kind       TimingKind
		seconds    float64
		structured bool
	}{
		{name: "nil", in: nil, kind: TimingAbsent},
		{name: "int", in: 5, kind: TimingNumeric, seconds: 5},
		{name: "float", in: 2.5, kind: TimingNumeric, seconds: 2.5},
		{name: "zero", in: 0, kind: TimingNumeric, seconds: 0},
		{name: "negative", in: -1.0, kind: TimingNumeric, seconds: -1},
		{name: "numeric string", in: " 3 ", kind: TimingNumeric, seconds: 3},
		{name: "json number", in: json.Number("7"), kind: TimingNumeric, seconds: 7},
		{name: "word", in: "soon", kind: TimingUnparsable},
		{name: "bool", in: true, kind: TimingUnparsable},
		{name: "structured", in: map[string]any{"timeout": 4.0}, kind: TimingNumeric, seconds: 4, structured: true},
		{name: "structured nil", in: map[string]any{"timeout": nil}, kind: TimingAbsent, structured: true},
		{name: "object without timeout", in: map[string]any{"other": 1}, kind: TimingUnparsable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := ParseTimingSpec(tt.in)
			assert.Equal(t, tt.kind, spec.Kind)
			assert.Equal(t, tt.seconds, spec.Seconds)
			assert.Equal(t, tt.structured, spec.Structured)
		})
	}
}

func TestTimingSpecResolve(t *testing.T) {
	home := wda.Post("/wda/homescreen", nil, false)

	tests := []struct {
		name   string
		spec   TimingSpec
		want   wda.Request
		target string
	}{
		{name: "absent", spec: NoTiming(), want: home, target: TargetRestoreHome},
		{name: "unparsable", spec: ParseTimingSpec("later"), want: home, target: TargetRestoreHome},
		{name: "negative", spec: TimingSeconds(-1), want: home, target: TargetRestoreHome},
		{name: "zero", spec: TimingSeconds(0), want: wda.Post("/wda/deactivateApp", map[string]any{"duration": 0.0}, true), target: TargetDeactivate},
		{name: "positive", spec: TimingSeconds(3.5), want: wda.Post("/wda/deactivateApp", map[string]any{"duration": 3.5}, true), target: TargetDeactivate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, target, ok := tt.spec.Resolve()
			require.True(t, ok)
			assert.Equal(t, tt.target, target)
			assert.Equal(t, tt.want, req)
		})
	}
}

func TestTimingSpecResolve_UnknownKind(t *testing.T) {
	_, _, ok := TimingSpec{Kind: TimingKind(42)}.Resolve()
	assert.False(t, ok)
}

func TestBackground_IssuesExactlyOneCall(t *testing.T) {
	proxy := &proxyMock{}
	proxy.On("ProxyCommand", mock.Anything, wda.Post("/wda/deactivateApp", map[string]any{"duration": 10.0}, true)).
		Return(json.RawMessage("null"), nil).Once()

	c := New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{})
	require.NoError(t, c.Background(context.Background(), TimingSeconds(10)))
	proxy.AssertExpectations(t)
	proxy.AssertNumberOfCalls(t, "ProxyCommand", 1)
}

func TestBackground_UnknownKindIsInvalidArgument(t *testing.T) {
	proxy := &proxyMock{}
	c := New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{})

	err := c.Background(context.Background(), TimingSpec{Kind: TimingKind(9), Raw: "weird"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "weird")
	proxy.AssertNotCalled(t, "ProxyCommand", mock.Anything, mock.Anything)
}

func TestBackground_RemoteErrorPropagatesUnchanged(t *testing.T) {
	remote := &wda.CommandError{Sentinel: wda.ErrCommandFailed, Operation: "POST /wda/homescreen", Status: 500}
	proxy := &proxyMock{}
	proxy.On("ProxyCommand", mock.Anything, mock.Anything).Return(nil, remote)

	c := New(Deps{Proxy: proxy, Logger: nopLogger()}, Device{})
	err := c.Background(context.Background(), NoTiming())

	var ce *wda.CommandError
	require.True(t, errors.As(err, &ce))
	assert.Same(t, remote, ce)
}
