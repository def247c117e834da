// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command wdagate is a device command gateway in front of a WebDriverAgent
// automation endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ManuGH/wdagate/internal/api"
	"github.com/ManuGH/wdagate/internal/config"
	"github.com/ManuGH/wdagate/internal/health"
	xglog "github.com/ManuGH/wdagate/internal/log"
	buildinfo "github.com/ManuGH/wdagate/internal/version"
	"golang.org/x/sync/errgroup"
)

// version is the build version, see internal/version for -ldflags.
var version = buildinfo.Version

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "config":
			return runConfigCLI(args[1:], stdout, stderr)
		case "exec":
			return runExec(args[1:], stdout, stderr)
		case "shell":
			return runShell(args[1:], stderr)
		case "serve":
			args = args[1:]
		}
	}

	fs := flag.NewFlagSet("wdagate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showVersion := fs.Bool("version", false, "print version and exit")
	configPath := fs.String("config", "", "path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(stdout, buildinfo.String())
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, strings.TrimSpace(*configPath)); err != nil {
		logger := xglog.WithComponent("daemon")
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.failed").Msg("wdagate exited with error")
		return 1
	}
	return 0
}

func serve(ctx context.Context, configPath string) error {
	// Safe defaults until config is loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: "wdagate", Version: version})
	logger := xglog.WithComponent("daemon")

	loader := config.NewLoader(configPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str(xglog.FieldPath, configPath).
			Msg("failed to load configuration")
		return err
	}
	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: "wdagate", Version: version})

	source := "env+defaults"
	if configPath != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version).
		Str("commit", buildinfo.Commit).
		Str("build_date", buildinfo.Date).
		Str("config_source", source).
		Str("addr", cfg.API.Listen).
		Str(xglog.FieldBaseURL, maskURL(cfg.WDA.URL)).
		Str(xglog.FieldDeviceUDID, cfg.Device.UDID).
		Bool("simulator", cfg.Device.Simulator).
		Str("cache", cfg.Cache.Backend).
		Msg("starting wdagate")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "startup.check_failed").Msg("startup checks failed")
		return err
	}

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	holder := config.NewConfigHolder(cfg, loader)
	holder.OnReload(config.LogLevelListener)
	holder.OnReload(func(old, updated config.AppConfig) {
		details := map[string]string{"log_level": updated.LogLevel}
		if old.WDA.URL != updated.WDA.URL || old.Device != updated.Device {
			details["restart_required"] = "wda/device settings changed"
		}
		rt.audit.ConfigReload("watcher", "success", details)
	})

	srv := api.New(api.Config{
		RateLimit:      cfg.API.RateLimit,
		TracingService: tracingService(cfg),
	}, rt.apiDeps())

	httpServer := &http.Server{
		Addr:              cfg.API.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str(xglog.FieldEvent, "server.listening").Str("addr", cfg.API.Listen).Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.API.ShutdownPeriod)
		defer cancel()
		logger.Info().Str(xglog.FieldEvent, "server.shutdown").Msg("shutting down API server")
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := holder.Watch(gctx); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_failed").Msg("config hot reload unavailable")
	}

	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				if err := holder.Reload(gctx); err != nil {
					rt.audit.ConfigReload("sighup", "failure", map[string]string{"error": err.Error()})
				}
			}
		}
	})

	err = g.Wait()
	holder.Wait()
	logger.Info().Str(xglog.FieldEvent, "shutdown.complete").Msg("server exiting")
	return err
}

func tracingService(cfg config.AppConfig) string {
	if !cfg.Tracing.Enabled {
		return ""
	}
	return cfg.Tracing.ServiceName
}
