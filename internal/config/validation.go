// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// ValidationError lists every invalid field.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks cfg and reports all problems at once.
func Validate(cfg AppConfig) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		add("logLevel %q is not a valid level", cfg.LogLevel)
	}

	u, err := url.Parse(cfg.WDA.URL)
	switch {
	case err != nil:
		add("wda.url: %v", err)
	case u.Scheme != "http" && u.Scheme != "https":
		add("wda.url %q must use http or https", cfg.WDA.URL)
	case u.Host == "":
		add("wda.url %q has no host", cfg.WDA.URL)
	}
	if cfg.WDA.Timeout <= 0 {
		add("wda.timeout must be positive")
	}
	if cfg.WDA.Retries < 0 || cfg.WDA.Retries > 10 {
		add("wda.retries must be between 0 and 10")
	}
	if cfg.WDA.RateLimit <= 0 {
		add("wda.rateLimit must be positive")
	}
	if cfg.WDA.BreakerThreshold < 0 {
		add("wda.breakerThreshold must not be negative")
	}

	switch cfg.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if _, _, err := net.SplitHostPort(cfg.Cache.Redis.Addr); err != nil {
			add("cache.redis.addr %q: %v", cfg.Cache.Redis.Addr, err)
		}
	default:
		add("cache.backend %q must be one of memory, redis, none", cfg.Cache.Backend)
	}

	if _, _, err := net.SplitHostPort(cfg.API.Listen); err != nil {
		add("api.listen %q: %v", cfg.API.Listen, err)
	}
	if cfg.API.RateLimit < 0 {
		add("api.rateLimit must not be negative")
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Exporter != "grpc" && cfg.Tracing.Exporter != "http" {
			add("tracing.exporter %q must be grpc or http", cfg.Tracing.Exporter)
		}
		if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
			add("tracing.sampleRate must be within [0,1]")
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
