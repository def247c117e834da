// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package wda

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// RecordedRequest is one request seen by MockServer.
type RecordedRequest struct {
	Method    string
	Path      string // without the /session/{id} prefix
	SessionID string // empty for global commands
	Body      map[string]any
}

// MockServer provides a configurable automation endpoint for testing.
type MockServer struct {
	*httptest.Server
	mu           sync.RWMutex
	sessionID    string
	sessionCount int
	screen       ScreenInfo
	windowSize   Size
	locked       bool
	requests     []RecordedRequest
	delay        map[string]time.Duration
	failures     map[string]int // HTTP 503 responses before success, per path
	errors       map[string]mockError
	invalidOnce  bool
}

type mockError struct {
	status  int
	code    string
	message string
}

// NewMockServer creates a mock with an iPhone-like default screen.
func NewMockServer() *MockServer {
	m := &MockServer{
		sessionID:  "mock-session-1",
		screen:     ScreenInfo{StatusBarSize: Size{Width: 390, Height: 47}, Scale: 3},
		windowSize: Size{Width: 390, Height: 844},
		delay:      make(map[string]time.Duration),
		failures:   make(map[string]int),
		errors:     make(map[string]mockError),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// SetScreen sets the payload of GET /wda/screen.
func (m *MockServer) SetScreen(info ScreenInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screen = info
}

// SetWindowSize sets the payload of GET /window/current/size.
func (m *MockServer) SetWindowSize(size Size) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windowSize = size
}

// SetDelay delays responses for path.
func (m *MockServer) SetDelay(path string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay[path] = d
}

// SetFailures makes path answer 503 count times before succeeding.
func (m *MockServer) SetFailures(path string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = count
}

// SetError makes path answer with a W3C error.
func (m *MockServer) SetError(path string, status int, code, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[path] = mockError{status: status, code: code, message: message}
}

// InvalidateSessionOnce makes the next session scoped request fail with
// "invalid session id" and rotates the session returned by POST /session.
func (m *MockServer) InvalidateSessionOnce() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidOnce = true
}

// Requests returns a copy of all recorded requests.
func (m *MockServer) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// SessionsCreated returns how many times POST /session was served.
func (m *MockServer) SessionsCreated() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionCount
}

// Locked reports the mock lock state.
func (m *MockServer) Locked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locked
}

func (m *MockServer) handle(w http.ResponseWriter, r *http.Request) {
	path, sid := splitSession(r.URL.Path)

	var body map[string]any
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{Method: r.Method, Path: path, SessionID: sid, Body: body})
	delay := m.delay[path]
	if m.failures[path] > 0 {
		m.failures[path]--
		m.mu.Unlock()
		writeMockError(w, http.StatusServiceUnavailable, "unknown error", "temporarily unavailable")
		return
	}
	if e, ok := m.errors[path]; ok {
		m.mu.Unlock()
		writeMockError(w, e.status, e.code, e.message)
		return
	}
	if sid != "" && m.invalidOnce {
		m.invalidOnce = false
		m.sessionID = fmt.Sprintf("mock-session-%d", len(m.requests))
		m.mu.Unlock()
		writeMockError(w, http.StatusNotFound, codeInvalidSession, "Session does not exist")
		return
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	switch {
	case r.Method == http.MethodPost && path == "/session" && sid == "":
		m.mu.Lock()
		m.sessionCount++
		id := m.sessionID
		m.mu.Unlock()
		writeMockJSON(w, map[string]any{
			"sessionId": id,
			"value":     map[string]any{"sessionId": id, "capabilities": map[string]any{}},
		})
	case r.Method == http.MethodGet && path == "/status" && sid == "":
		writeMockJSON(w, map[string]any{"value": map[string]any{"ready": true, "message": "WebDriverAgent is ready to accept commands"}})
	case r.Method == http.MethodGet && path == "/wda/screen":
		m.mu.RLock()
		screen := m.screen
		m.mu.RUnlock()
		writeMockJSON(w, map[string]any{"value": screen})
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/window/") && strings.HasSuffix(path, "/size"):
		m.mu.RLock()
		size := m.windowSize
		m.mu.RUnlock()
		writeMockJSON(w, map[string]any{"value": size, "sessionId": sid})
	case r.Method == http.MethodGet && path == "/wda/locked":
		writeMockJSON(w, map[string]any{"value": m.Locked()})
	case r.Method == http.MethodPost && path == "/wda/lock":
		m.mu.Lock()
		m.locked = true
		m.mu.Unlock()
		writeMockJSON(w, map[string]any{"value": nil})
	case r.Method == http.MethodPost && path == "/wda/unlock":
		m.mu.Lock()
		m.locked = false
		m.mu.Unlock()
		writeMockJSON(w, map[string]any{"value": nil})
	case r.Method == http.MethodPost:
		writeMockJSON(w, map[string]any{"value": nil, "sessionId": sid})
	default:
		writeMockError(w, http.StatusNotFound, "unknown command", "unhandled "+r.Method+" "+path)
	}
}

func splitSession(p string) (path, sessionID string) {
	const prefix = "/session/"
	if !strings.HasPrefix(p, prefix) {
		return p, ""
	}
	rest := strings.TrimPrefix(p, prefix)
	idx := strings.Index(rest, "/")
	if idx < 0 {
		return p, ""
	}
	return rest[idx:], rest[:idx]
}

func writeMockJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeMockError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"value": map[string]any{"error": code, "message": message},
	})
}
