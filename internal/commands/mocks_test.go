// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package commands

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ManuGH/wdagate/internal/devicetime"
	"github.com/ManuGH/wdagate/internal/localexec"
	"github.com/ManuGH/wdagate/internal/wda"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

type proxyMock struct {
	mock.Mock
}

func (m *proxyMock) ProxyCommand(ctx context.Context, req wda.Request) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

// recordingProxy answers from a fixed table and records call order.
type recordingProxy struct {
	mu        sync.Mutex
	responses map[string]string
	calls     []string
}

func (p *recordingProxy) ProxyCommand(_ context.Context, req wda.Request) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := req.Method + " " + req.Path
	p.calls = append(p.calls, key)
	if v, ok := p.responses[key]; ok {
		return json.RawMessage(v), nil
	}
	return json.RawMessage("null"), nil
}

type staticSource struct {
	reading devicetime.Reading
	err     error
	udid    string
}

func (s *staticSource) DeviceTime(_ context.Context, udid string) (devicetime.Reading, error) {
	s.udid = udid
	return s.reading, s.err
}

type staticRunner struct {
	stdout string
}

func (r staticRunner) Run(context.Context, string, ...string) (localexec.Result, error) {
	return localexec.Result{Stdout: r.stdout}, nil
}

type atomStub struct {
	name  string
	value string
}

func (a *atomStub) ExecuteAtom(_ context.Context, name string, _ []any) (json.RawMessage, error) {
	a.name = name
	return json.RawMessage(a.value), nil
}

type recorderStub struct {
	mu   sync.Mutex
	invs []Invocation
}

func (r *recorderStub) RecordCommand(_ context.Context, inv Invocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invs = append(r.invs, inv)
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
