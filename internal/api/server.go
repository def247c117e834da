// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the device command surface over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ManuGH/wdagate/internal/api/middleware"
	"github.com/ManuGH/wdagate/internal/audit"
	"github.com/ManuGH/wdagate/internal/commands"
	"github.com/ManuGH/wdagate/internal/health"
	"github.com/ManuGH/wdagate/internal/resilience"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// JournalReader lists recently journaled commands.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]audit.Entry, error)
}

// ScreenCache drops memoized screen metrics.
type ScreenCache interface {
	Invalidate(ctx context.Context)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Commands   *commands.Commands
	Dispatcher *commands.Dispatcher
	Journal    JournalReader              // optional
	Breaker    *resilience.CircuitBreaker // optional
	Screen     ScreenCache                // optional
	// Health defaults to a manager watching Breaker.
	Health  *health.Manager
	Version string
}

// Config tunes the ingress stack.
type Config struct {
	RateLimit      int // per client per minute; 0 disables
	TracingService string
}

// Server routes API requests to device commands.
type Server struct {
	deps   Deps
	router chi.Router
}

// New builds the server and its routes.
func New(cfg Config, deps Deps) *Server {
	if deps.Health == nil {
		deps.Health = health.NewManager(deps.Version)
		if deps.Breaker != nil {
			deps.Health.RegisterChecker(health.NewBreakerChecker(deps.Breaker))
		}
	}
	s := &Server{deps: deps}
	s.router = s.routes(cfg)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes(cfg Config) chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		EnableLogging:  true,
		TracingService: cfg.TracingService,
	})

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(middleware.RateLimit(middleware.RateLimitConfig{RequestLimit: cfg.RateLimit, WindowSize: time.Minute}))
		}
		r.Get("/commands", s.handleListCommands)
		r.Post("/commands/{name}", s.handleDispatch)

		r.Get("/window/rect", s.handleWindowRect)
		r.Get("/window/size", s.handleWindowSize)
		r.Get("/viewport", s.handleViewport)
		r.Get("/screen", s.handleScreen)
		r.Delete("/screen/cache", s.handleInvalidateScreen)
		r.Get("/time", s.handleDeviceTime)

		r.Get("/audit", s.handleAudit)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "no such route", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "method not allowed", "")
	})
	return r
}
