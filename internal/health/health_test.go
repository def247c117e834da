// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/wdagate/internal/config"
	"github.com/ManuGH/wdagate/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }
func (m *mockChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: m.status}
}

func TestManager_Health(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "healthy", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestManager_Ready(t *testing.T) {
	m := NewManager("v1")
	assert.True(t, m.Ready(context.Background()).Ready)

	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})
	r := m.Ready(context.Background())
	assert.True(t, r.Ready)
	assert.Equal(t, StatusDegraded, r.Status)

	m.RegisterChecker(&mockChecker{name: "down", status: StatusUnhealthy})
	r = m.Ready(context.Background())
	assert.False(t, r.Ready)
	assert.Equal(t, StatusUnhealthy, r.Status)
}

func TestServeReady(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(NewPingChecker("wda", true, func(context.Context) error { return errors.New("connection refused") }))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "connection refused", body.Checks["wda"].Error)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPingChecker_NonCritical(t *testing.T) {
	c := NewPingChecker("redis", false, func(context.Context) error { return errors.New("down") })
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)
}

func TestPingChecker_Timeout(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(NewPingChecker("slow", true, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	start := time.Now()
	r := m.Ready(context.Background())
	assert.False(t, r.Ready)
	assert.Less(t, time.Since(start), checkTimeout+time.Second)
}

func TestBreakerChecker(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test", 1, time.Hour)
	c := NewBreakerChecker(cb)
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	_ = cb.Execute(func() error { return errors.New("boom") })
	res := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Contains(t, res.Message, "after 1 failures")
}

func TestPerformStartupChecks(t *testing.T) {
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(string) (string, error) { return "", errors.New("not found") }

	cfg := config.Defaults()
	cfg.Audit.DBPath = filepath.Join(t.TempDir(), "journal.db")
	assert.NoError(t, PerformStartupChecks(context.Background(), cfg))

	cfg.Audit.DBPath = filepath.Join(t.TempDir(), "missing", "journal.db")
	assert.Error(t, PerformStartupChecks(context.Background(), cfg))

	cfg = config.Defaults()
	cfg.API.Listen = "localhost:99999"
	assert.Error(t, PerformStartupChecks(context.Background(), cfg))
}

func TestCheckDataDir_File(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o600))
	cfg := config.Defaults()
	cfg.Audit.DBPath = filepath.Join(f, "journal.db")
	assert.Error(t, PerformStartupChecks(context.Background(), cfg))
}
