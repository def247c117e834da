// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package wda is the client for the remote automation endpoint (a
// WebDriverAgent-compatible HTTP service running on or next to the device).
package wda

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	xglog "github.com/ManuGH/wdagate/internal/log"
	"github.com/ManuGH/wdagate/internal/platform/httpx"
	"github.com/ManuGH/wdagate/internal/resilience"
	"github.com/ManuGH/wdagate/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Client proxies commands to the automation endpoint.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	maxRetries   int
	backoff      time.Duration
	maxBackoff   time.Duration
	userAgent    string
	capabilities map[string]any
	breaker      *resilience.CircuitBreaker
	logger       zerolog.Logger

	sessMu  sync.Mutex
	session string

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// Options configures the client behavior.
type Options struct {
	Timeout        time.Duration
	MaxRetries     int
	Backoff        time.Duration
	MaxBackoff     time.Duration
	RateLimit      rate.Limit
	RateLimitBurst int
	UserAgent      string
	// SessionID pins an existing session. Empty creates one on first use.
	SessionID string
	// Capabilities are sent as alwaysMatch when a session is created.
	Capabilities map[string]any
	// Breaker guards every exchange. Nil disables the breaker.
	Breaker *resilience.CircuitBreaker
}

const (
	defaultTimeout        = 30 * time.Second
	defaultRetries        = 2
	defaultBackoff        = 200 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
	defaultRateLimit      = 10
	defaultRateLimitBurst = 20
	maxResponseBytes      = 16 << 20
)

// New creates a client for the endpoint at baseURL.
func New(baseURL string, opts Options) *Client {
	nopts := normalizeOptions(opts)
	return &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient:   httpx.NewClient(nopts.Timeout, httpx.WithTracing()),
		limiter:      rate.NewLimiter(nopts.RateLimit, nopts.RateLimitBurst),
		maxRetries:   nopts.MaxRetries,
		backoff:      nopts.Backoff,
		maxBackoff:   nopts.MaxBackoff,
		userAgent:    nopts.UserAgent,
		capabilities: nopts.Capabilities,
		breaker:      nopts.Breaker,
		session:      strings.TrimSpace(nopts.SessionID),
		logger:       xglog.WithComponent("wda"),
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only
	}
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "wdagate"
	}
	if opts.Capabilities == nil {
		opts.Capabilities = map[string]any{}
	}
	return opts
}

// BaseURL returns the normalized endpoint URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Status queries the endpoint's global /status resource. It needs no session.
func (c *Client) Status(ctx context.Context) (json.RawMessage, error) {
	return c.ProxyCommand(ctx, Get("/status", false))
}

// Close releases idle connections held by the client.
func (c *Client) Close() { c.httpClient.CloseIdleConnections() }

// ProxyCommand executes req and returns the endpoint's "value" payload.
// Failures are *CommandError values; they are returned unchanged to callers.
func (c *Client) ProxyCommand(ctx context.Context, req Request) (json.RawMessage, error) {
	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	route := path
	if req.SessionScoped {
		id, err := c.SessionID(ctx)
		if err != nil {
			return nil, err
		}
		path = "/session/" + url.PathEscape(id) + path
	}

	env, err := c.execute(ctx, req.Method, path, route, req.Body)
	if err != nil {
		var ce *CommandError
		if req.SessionScoped && errors.As(err, &ce) && ce.Code == codeInvalidSession {
			c.resetSession()
		}
		return nil, err
	}
	return env.Value, nil
}

// SessionID returns the active session, creating one when none is known.
func (c *Client) SessionID(ctx context.Context) (string, error) {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	if c.session != "" {
		return c.session, nil
	}

	body := map[string]any{
		"capabilities": map[string]any{
			"alwaysMatch": c.capabilities,
			"firstMatch":  []any{map[string]any{}},
		},
	}
	env, err := c.execute(ctx, http.MethodPost, "/session", "/session", body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoSession, err)
	}

	id := env.SessionID
	if id == "" {
		var v struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(env.Value, &v); err == nil {
			id = v.SessionID
		}
	}
	if id == "" {
		return "", ErrNoSession
	}

	c.session = id
	sessionsCreated.Inc()
	c.logger.Info().
		Str(xglog.FieldEvent, "wda.session_created").
		Str(xglog.FieldSessionID, id).
		Msg("automation session created")
	return id, nil
}

func (c *Client) resetSession() {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	if c.session != "" {
		c.logger.Warn().
			Str(xglog.FieldEvent, "wda.session_invalidated").
			Str(xglog.FieldSessionID, c.session).
			Msg("endpoint reported invalid session, will recreate on next command")
	}
	c.session = ""
}

func (c *Client) execute(ctx context.Context, method, path, route string, body any) (*envelope, error) {
	if c.breaker == nil {
		return c.do(ctx, method, path, route, body)
	}

	var env *envelope
	err := c.breaker.Execute(func() error {
		var err error
		env, err = c.do(ctx, method, path, route, body)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, &CommandError{Sentinel: ErrUnavailable, Operation: method + " " + route, Err: err}
	}
	return env, err
}

func (c *Client) do(ctx context.Context, method, path, route string, body any) (*envelope, error) {
	op := method + " " + route

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
	}

	tracer := telemetry.Tracer("wdagate.wda")
	ctx, span := tracer.Start(ctx, "wdagate.wda.request", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String(telemetry.HTTPMethodKey, method),
		attribute.String(telemetry.HTTPRouteKey, route),
	)
	defer span.End()

	maxAttempts := 1
	if method == http.MethodGet {
		maxAttempts = c.maxRetries + 1
	}

	var lastErr *CommandError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, wrapError(op, err, 0, nil)
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("%s: build request: %w", op, err)
		}
		c.applyHeaders(req, payload != nil)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(start)

		status := 0
		var respBody []byte
		if resp != nil {
			status = resp.StatusCode
			respBody, err = readBody(resp, err)
		}

		retry := attempt < maxAttempts && shouldRetry(status, err)
		recordAttemptMetrics(method, route, status, duration, err, retry)
		span.AddEvent("attempt", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.Int(telemetry.HTTPStatusCodeKey, status),
		))

		c.logger.Debug().
			Str(xglog.FieldMethod, method).
			Str(xglog.FieldEndpoint, route).
			Int(xglog.FieldStatus, status).
			Int(xglog.FieldAttempt, attempt).
			Int64(xglog.FieldDuration, duration.Milliseconds()).
			Msg("wda request")

		if err == nil && status < http.StatusBadRequest {
			env, derr := decodeEnvelope(op, status, respBody)
			if derr != nil {
				span.RecordError(derr)
				span.SetStatus(codes.Error, derr.Error())
				return nil, derr
			}
			span.SetAttributes(attribute.Int(telemetry.HTTPStatusCodeKey, status))
			span.SetStatus(codes.Ok, "")
			return env, nil
		}

		lastErr = wrapError(op, err, status, respBody)
		if !retry {
			break
		}
		if err := sleepWithContext(ctx, c.backoffFor(attempt-1)); err != nil {
			lastErr = wrapError(op, err, 0, nil)
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return nil, lastErr
}

func readBody(resp *http.Response, err error) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	if err != nil {
		return nil, err
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

func decodeEnvelope(op string, status int, body []byte) (*envelope, error) {
	var env envelope
	if len(bytes.TrimSpace(body)) == 0 {
		return &env, nil
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &CommandError{Sentinel: ErrBadResponse, Operation: op, Status: status, Err: err}
	}
	if env.Status != nil && *env.Status != 0 {
		return nil, &CommandError{
			Sentinel:  ErrCommandFailed,
			Operation: op,
			Status:    status,
			Code:      fmt.Sprintf("legacy status %d", *env.Status),
			Message:   legacyMessage(env.Value),
		}
	}
	if werr, ok := decodeW3CError(body); ok {
		return nil, &CommandError{Sentinel: ErrCommandFailed, Operation: op, Status: status, Code: werr.Error, Message: werr.Message}
	}
	return &env, nil
}

func legacyMessage(value json.RawMessage) string {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(value, &obj); err == nil {
		return obj.Message
	}
	return ""
}

func (c *Client) applyHeaders(req *http.Request, hasBody bool) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *Client) backoffFor(attempt int) time.Duration {
	wait := c.backoff * time.Duration(1<<attempt)
	if wait > c.maxBackoff {
		wait = c.maxBackoff
	}
	jitter := time.Duration(c.randInt63n(int64(wait/5 + 1)))
	return wait + jitter
}

func (c *Client) randInt63n(n int64) int64 {
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.rnd.Int63n(n)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
