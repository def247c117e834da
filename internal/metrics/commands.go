// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors shared across wdagate.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Command outcomes.
const (
	OutcomeSuccess         = "success"
	OutcomeInvalidArgument = "invalid_argument"
	OutcomeNotImplemented  = "not_implemented"
	OutcomeRemoteFailure   = "remote_failure"
	OutcomeUnavailable     = "unavailable"
)

var (
	commandTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wdagate_command_total",
		Help: "Dispatched device commands by name and outcome",
	}, []string{"command", "outcome"})

	commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wdagate_command_duration_seconds",
		Help:    "Wall time of dispatched device commands",
		Buckets: prometheus.ExponentialBuckets(0.01, 2.0, 12),
	}, []string{"command"})

	backgroundPolicy = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wdagate_background_policy_total",
		Help: "Resolved backgrounding policies (restore_home or deactivate)",
	}, []string{"target"})

	deviceTimeResolution = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wdagate_device_time_resolution_total",
		Help: "How device time offsets were resolved (utc_offset, zone, zone_seconds, none, simulator, raw)",
	}, []string{"path"})

	screenCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wdagate_screen_cache_lookups_total",
		Help: "Screen metadata cache lookups by result (hit or miss)",
	}, []string{"result"})
)

// ObserveCommand records the outcome and duration of one dispatched command.
func ObserveCommand(command, outcome string, d time.Duration) {
	commandTotal.WithLabelValues(command, outcome).Inc()
	commandDuration.WithLabelValues(command).Observe(d.Seconds())
}

// RecordBackgroundPolicy counts the endpoint chosen for a background request.
func RecordBackgroundPolicy(target string) {
	backgroundPolicy.WithLabelValues(target).Inc()
}

// RecordDeviceTimeResolution counts which branch formatted a device time.
func RecordDeviceTimeResolution(path string) {
	deviceTimeResolution.WithLabelValues(path).Inc()
}

// RecordScreenCacheLookup counts screen metadata cache hits and misses.
func RecordScreenCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	screenCacheLookups.WithLabelValues(result).Inc()
}
