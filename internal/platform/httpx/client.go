// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package httpx builds the HTTP clients used to reach automation endpoints.
package httpx

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultClientTimeout         = 30 * time.Second
	defaultDialTimeout           = 3 * time.Second
	defaultIdleConnTimeout       = 90 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 16
	defaultMaxIdleConnsPerHost   = 4
)

type options struct {
	tracing   bool
	keepAlive time.Duration
}

// Option customises NewClient.
type Option func(*options)

// WithTracing wraps the transport so every round trip gets a client span and
// trace context headers.
func WithTracing() Option {
	return func(o *options) { o.tracing = true }
}

// WithKeepAlive overrides the TCP keep-alive period. Zero keeps the default.
func WithKeepAlive(d time.Duration) Option {
	return func(o *options) { o.keepAlive = d }
}

// NewClient returns a hardened HTTP client. Automation endpoints are plain
// HTTP/1.1 servers on the device or a usbmuxd forward, so HTTP/2 is off.
//
// Endpoints answer slowly while the device animates (home screen, app
// switch), so the response header timeout follows the overall timeout
// instead of being capped like the dial timeout.
func NewClient(timeout time.Duration, opts ...Option) *http.Client {
	o := options{keepAlive: 30 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	dialTimeout := min(timeout, defaultDialTimeout)

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: o.keepAlive}).DialContext,
		ForceAttemptHTTP2:     false,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}

	var rt http.RoundTripper = transport
	if o.tracing {
		rt = otelhttp.NewTransport(transport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "wda " + r.Method + " " + r.URL.Path
			}),
		)
	}
	return &http.Client{Timeout: timeout, Transport: rt}
}
