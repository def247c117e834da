// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ManuGH/wdagate/internal/log"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is shared by all wdagate environment variables.
const EnvPrefix = "WDAGATE_"

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. configPath may be empty (ENV only).
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, def)
}

// Load builds the configuration: defaults, then the file (strict), then
// environment overrides, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.mergeFile(&cfg, l.configPath); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	for _, key := range l.UnknownEnvKeys() {
		logger := log.WithComponent("config")
		logger.Warn().Str("key", key).Msg("unknown environment variable ignored")
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) mergeFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return err
	}
	return decodeStrict(data, cfg)
}

// decodeStrict rejects unknown keys so typos fail loudly.
func decodeStrict(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	l.ConsumedEnvKeys["LOG_LEVEL"] = struct{}{}
	cfg.LogLevel = ParseString("LOG_LEVEL", cfg.LogLevel)

	cfg.WDA.URL = l.envString("WDAGATE_WDA_URL", cfg.WDA.URL)
	cfg.WDA.SessionID = l.envString("WDAGATE_WDA_SESSION", cfg.WDA.SessionID)
	cfg.WDA.Timeout = l.envDuration("WDAGATE_WDA_TIMEOUT", cfg.WDA.Timeout)
	cfg.WDA.Retries = l.envInt("WDAGATE_WDA_RETRIES", cfg.WDA.Retries)
	cfg.WDA.RateLimit = l.envFloat("WDAGATE_WDA_RATE_LIMIT", cfg.WDA.RateLimit)
	cfg.WDA.BreakerThreshold = l.envInt("WDAGATE_WDA_BREAKER_THRESHOLD", cfg.WDA.BreakerThreshold)

	cfg.Device.UDID = l.envString("WDAGATE_DEVICE_UDID", cfg.Device.UDID)
	cfg.Device.Simulator = l.envBool("WDAGATE_DEVICE_SIMULATOR", cfg.Device.Simulator)
	cfg.Device.BundleID = l.envString("WDAGATE_DEVICE_BUNDLE_ID", cfg.Device.BundleID)
	cfg.Device.IDeviceInfo = l.envString("WDAGATE_IDEVICEINFO", cfg.Device.IDeviceInfo)

	cfg.Cache.Backend = strings.ToLower(l.envString("WDAGATE_CACHE_BACKEND", cfg.Cache.Backend))
	cfg.Cache.TTL = l.envDuration("WDAGATE_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.Redis.Addr = l.envString("WDAGATE_REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = l.envString("WDAGATE_REDIS_PASSWORD", cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = l.envInt("WDAGATE_REDIS_DB", cfg.Cache.Redis.DB)

	cfg.API.Listen = l.envString("WDAGATE_LISTEN", cfg.API.Listen)
	cfg.API.RateLimit = l.envInt("WDAGATE_API_RATE_LIMIT", cfg.API.RateLimit)
	cfg.Audit.DBPath = l.envString("WDAGATE_AUDIT_DB", cfg.Audit.DBPath)

	cfg.Tracing.Enabled = l.envBool("WDAGATE_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString("WDAGATE_TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString("WDAGATE_TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SampleRate = l.envFloat("WDAGATE_TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)
}

// UnknownEnvKeys lists WDAGATE_* variables that Load did not consume.
func (l *Loader) UnknownEnvKeys() []string {
	var unknown []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}
