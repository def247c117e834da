// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/wdagate/internal/api"
	"github.com/ManuGH/wdagate/internal/audit"
	"github.com/ManuGH/wdagate/internal/cache"
	"github.com/ManuGH/wdagate/internal/commands"
	"github.com/ManuGH/wdagate/internal/config"
	"github.com/ManuGH/wdagate/internal/devicetime"
	"github.com/ManuGH/wdagate/internal/health"
	"github.com/ManuGH/wdagate/internal/localexec"
	xglog "github.com/ManuGH/wdagate/internal/log"
	"github.com/ManuGH/wdagate/internal/resilience"
	"github.com/ManuGH/wdagate/internal/session"
	"github.com/ManuGH/wdagate/internal/telemetry"
	"github.com/ManuGH/wdagate/internal/wda"
	"golang.org/x/time/rate"
)

// runtime bundles the collaborators shared by serve, exec and shell.
type runtime struct {
	cfg        config.AppConfig
	client     *wda.Client
	breaker    *resilience.CircuitBreaker
	cache      cache.Cache
	screen     *session.Screen
	commands   *commands.Commands
	dispatcher *commands.Dispatcher
	audit      *audit.Logger
	journal    *audit.Journal
	tracer     *telemetry.Provider
}

func buildRuntime(ctx context.Context, cfg config.AppConfig) (*runtime, error) {
	logger := xglog.WithComponent("daemon")
	rt := &runtime{cfg: cfg, audit: audit.NewLogger()}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SampleRate,
		DeviceUDID:     cfg.Device.UDID,
		Simulator:      cfg.Device.Simulator,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	rt.tracer = tp

	if cfg.WDA.BreakerThreshold > 0 {
		rt.breaker = resilience.NewCircuitBreaker("wda", cfg.WDA.BreakerThreshold, cfg.WDA.BreakerReset,
			resilience.WithFailureFilter(wda.IsTransportFailure),
			resilience.WithStateChange(logBreakerChange))
	}
	rt.client = wda.New(cfg.WDA.URL, wda.Options{
		Timeout:        cfg.WDA.Timeout,
		MaxRetries:     retriesOption(cfg.WDA.Retries),
		RateLimit:      rate.Limit(cfg.WDA.RateLimit),
		RateLimitBurst: cfg.WDA.RateBurst,
		UserAgent:      "wdagate/" + version,
		SessionID:      cfg.WDA.SessionID,
		Breaker:        rt.breaker,
	})

	rt.cache = newCache(ctx, cfg.Cache)
	deviceKey := cfg.Device.UDID
	if deviceKey == "" {
		deviceKey = cfg.WDA.URL
	}
	rt.screen = session.NewScreen(rt.client, rt.cache, deviceKey, cfg.Cache.TTL)

	deps := commands.Deps{Proxy: rt.client, Screen: rt.screen, Runner: localexec.Exec{Grace: 2 * time.Second}}
	if !cfg.Device.Simulator {
		deps.TimeSource = devicetime.LockdownSource{Runner: deps.Runner, Binary: cfg.Device.IDeviceInfo}
	}
	rt.commands = commands.New(deps, commands.Device{
		UDID:      cfg.Device.UDID,
		Simulator: cfg.Device.Simulator,
		BundleID:  cfg.Device.BundleID,
	})

	var recorder commands.Recorder = rt.audit
	if cfg.Audit.DBPath != "" {
		j, err := audit.OpenJournal(ctx, cfg.Audit.DBPath, rt.audit)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open command journal: %w", err)
		}
		rt.journal = j
		recorder = j
		logger.Info().Str(xglog.FieldEvent, "journal.opened").Str(xglog.FieldPath, cfg.Audit.DBPath).Msg("command journal enabled")
	}
	rt.dispatcher = commands.NewDispatcher(rt.commands, commands.WithRecorder(recorder))
	return rt, nil
}

// retriesOption maps the configured retry count onto wda.Options, where 0
// selects the client default and negative disables retries.
func retriesOption(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

func logBreakerChange(name string, from, to resilience.State) {
	logger := xglog.WithComponent("resilience")
	ev := logger.Info()
	if to == resilience.StateOpen {
		ev = logger.Warn()
	}
	ev.Str(xglog.FieldEvent, "breaker.state_change").
		Str("breaker", name).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("circuit breaker changed state")
}

// newCache selects the screen metrics cache. An unreachable Redis degrades
// to the in-memory cache.
func newCache(ctx context.Context, cfg config.CacheConfig) cache.Cache {
	logger := xglog.WithComponent("cache")
	switch cfg.Backend {
	case config.CacheNone:
		return cache.NewNoOpCache()
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err == nil {
			return rc
		}
		logger.Warn().Err(err).Str(xglog.FieldEvent, "cache.redis_unavailable").Msg("redis unavailable, falling back to memory cache")
	}
	return cache.NewMemoryCache(time.Minute)
}

// healthManager registers readiness probes for every backing service.
func (rt *runtime) healthManager() *health.Manager {
	m := health.NewManager(version)
	if rt.breaker != nil {
		m.RegisterChecker(health.NewBreakerChecker(rt.breaker))
	}
	m.RegisterChecker(health.NewPingChecker("wda", true, func(ctx context.Context) error {
		_, err := rt.client.Status(ctx)
		return err
	}))
	if rc, ok := rt.cache.(*cache.RedisCache); ok {
		m.RegisterChecker(health.NewPingChecker("redis", false, rc.HealthCheck))
	}
	if rt.journal != nil {
		m.RegisterChecker(health.NewPingChecker("journal", true, rt.journal.Ping))
	}
	return m
}

func (rt *runtime) apiDeps() api.Deps {
	deps := api.Deps{
		Health:     rt.healthManager(),
		Commands:   rt.commands,
		Dispatcher: rt.dispatcher,
		Breaker:    rt.breaker,
		Screen:     rt.screen,
		Version:    version,
	}
	if rt.journal != nil {
		deps.Journal = rt.journal
	}
	return deps
}

// Close releases everything buildRuntime opened.
func (rt *runtime) Close() {
	logger := xglog.WithComponent("daemon")
	if rt.journal != nil {
		if err := rt.journal.Close(); err != nil {
			logger.Warn().Err(err).Msg("close command journal")
		}
	}
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			logger.Warn().Err(err).Msg("close cache")
		}
	}
	if rt.client != nil {
		rt.client.Close()
	}
	if rt.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.tracer.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("shutdown tracer")
		}
	}
}
