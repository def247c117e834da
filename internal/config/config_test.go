// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, "http://127.0.0.1:8100", cfg.WDA.URL)
	assert.Equal(t, 30*time.Second, cfg.WDA.Timeout)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.Equal(t, ":8080", cfg.API.Listen)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
wda:
  url: http://10.0.0.5:8100
  timeout: 45s
device:
  udid: 00008030-TEST
  simulator: true
cache:
  backend: redis
  redis:
    addr: redis:6379
`)
	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8100", cfg.WDA.URL)
	assert.Equal(t, 45*time.Second, cfg.WDA.Timeout)
	assert.Equal(t, 2, cfg.WDA.Retries)
	assert.Equal(t, "00008030-TEST", cfg.Device.UDID)
	assert.True(t, cfg.Device.Simulator)
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "wda:\n  url: http://10.0.0.5:8100\n")
	t.Setenv("WDAGATE_WDA_URL", "http://192.168.1.9:8100")
	t.Setenv("WDAGATE_WDA_RETRIES", "4")
	t.Setenv("WDAGATE_DEVICE_SIMULATOR", "yes")
	t.Setenv("WDAGATE_CACHE_TTL", "1m")
	t.Setenv("LOG_LEVEL", "debug")

	l := NewLoader(path, "")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://192.168.1.9:8100", cfg.WDA.URL)
	assert.Equal(t, 4, cfg.WDA.Retries)
	assert.True(t, cfg.Device.Simulator)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Contains(t, l.ConsumedEnvKeys, "WDAGATE_WDA_URL")
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("WDAGATE_WDA_RETRIES", "many")
	t.Setenv("WDAGATE_WDA_TIMEOUT", "soon")

	cfg, err := NewLoader("", "").Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.WDA.Retries)
	assert.Equal(t, 30*time.Second, cfg.WDA.Timeout)
}

func TestLoad_UnknownYAMLKeyRejected(t *testing.T) {
	path := writeConfig(t, "wda:\n  urll: http://x\n")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "urll")
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeConfig(t, "")
	_, err := NewLoader(path, "").Load()
	require.NoError(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"), "").Load()
	assert.Error(t, err)
}

func TestUnknownEnvKeys(t *testing.T) {
	t.Setenv("WDAGATE_WDA_URLL", "typo")
	l := NewLoader("", "")
	_, err := l.Load()
	require.NoError(t, err)
	assert.Contains(t, l.UnknownEnvKeys(), "WDAGATE_WDA_URLL")
	assert.NotContains(t, l.UnknownEnvKeys(), "WDAGATE_WDA_URL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"bad scheme", func(c *AppConfig) { c.WDA.URL = "ftp://host" }, "wda.url"},
		{"no host", func(c *AppConfig) { c.WDA.URL = "http://" }, "no host"},
		{"timeout", func(c *AppConfig) { c.WDA.Timeout = 0 }, "wda.timeout"},
		{"retries", func(c *AppConfig) { c.WDA.Retries = 11 }, "wda.retries"},
		{"backend", func(c *AppConfig) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"redis addr", func(c *AppConfig) { c.Cache.Backend = CacheRedis; c.Cache.Redis.Addr = "nohostport" }, "cache.redis.addr"},
		{"listen", func(c *AppConfig) { c.API.Listen = "8080" }, "api.listen"},
		{"log level", func(c *AppConfig) { c.LogLevel = "loud" }, "logLevel"},
		{"exporter", func(c *AppConfig) { c.Tracing.Enabled = true; c.Tracing.Exporter = "zipkin" }, "tracing.exporter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, Validate(Defaults()))
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.WDA.Timeout = 0
	cfg.Cache.Backend = "x"
	err := Validate(cfg)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Problems, 2)
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Defaults()
	cfg.Device.UDID = "round-trip"
	cfg.WDA.Timeout = 12 * time.Second

	require.NoError(t, WriteFile(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := NewLoader(path, "").Load()
	require.NoError(t, err)
	assert.Equal(t, "round-trip", loaded.Device.UDID)
	assert.Equal(t, 12*time.Second, loaded.WDA.Timeout)
}
