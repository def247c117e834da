// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads wdagate configuration with the precedence
// environment > YAML file > defaults.
package config

import "time"

// AppConfig is the effective configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	LogLevel string        `yaml:"logLevel"`
	WDA      WDAConfig     `yaml:"wda"`
	Device   DeviceConfig  `yaml:"device"`
	Cache    CacheConfig   `yaml:"cache"`
	API      APIConfig     `yaml:"api"`
	Audit    AuditConfig   `yaml:"audit"`
	Tracing  TracingConfig `yaml:"tracing"`
}

// WDAConfig describes the automation endpoint.
type WDAConfig struct {
	URL              string        `yaml:"url"`
	SessionID        string        `yaml:"sessionId"`
	Timeout          time.Duration `yaml:"timeout"`
	Retries          int           `yaml:"retries"`
	RateLimit        float64       `yaml:"rateLimit"`
	RateBurst        int           `yaml:"rateBurst"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// DeviceConfig identifies the device under automation.
type DeviceConfig struct {
	UDID        string `yaml:"udid"`
	Simulator   bool   `yaml:"simulator"`
	BundleID    string `yaml:"bundleId"`
	IDeviceInfo string `yaml:"ideviceinfo"`
}

// CacheConfig selects where screen metadata is memoized.
type CacheConfig struct {
	Backend string        `yaml:"backend"` // memory, redis or none
	TTL     time.Duration `yaml:"ttl"`
	Redis   RedisConfig   `yaml:"redis"`
}

// RedisConfig is used when Cache.Backend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// APIConfig configures the HTTP control API.
type APIConfig struct {
	Listen         string        `yaml:"listen"`
	RateLimit      int           `yaml:"rateLimit"` // requests per minute per client
	ShutdownPeriod time.Duration `yaml:"shutdownPeriod"`
}

// AuditConfig enables the command journal.
type AuditConfig struct {
	DBPath string `yaml:"dbPath"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // grpc or http
	Endpoint    string  `yaml:"endpoint"`
	SampleRate  float64 `yaml:"sampleRate"`
	ServiceName string  `yaml:"serviceName"`
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel: "info",
		WDA: WDAConfig{
			URL:              "http://127.0.0.1:8100",
			Timeout:          30 * time.Second,
			Retries:          2,
			RateLimit:        10,
			RateBurst:        20,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Device: DeviceConfig{
			IDeviceInfo: "ideviceinfo",
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     10 * time.Minute,
			Redis:   RedisConfig{Addr: "127.0.0.1:6379"},
		},
		API: APIConfig{
			Listen:         ":8080",
			RateLimit:      120,
			ShutdownPeriod: 10 * time.Second,
		},
		Tracing: TracingConfig{
			Exporter:    "grpc",
			Endpoint:    "localhost:4317",
			SampleRate:  1.0,
			ServiceName: "wdagate",
		},
	}
}
