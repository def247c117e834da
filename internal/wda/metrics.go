// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package wda

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wdagate_wda_request_total",
			Help: "Total number of automation endpoint request attempts",
		},
		[]string{"method", "endpoint", "status_class"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wdagate_wda_request_duration_seconds",
			Help:    "Duration of automation endpoint requests per attempt",
			Buckets: prometheus.ExponentialBuckets(0.05, 2.0, 10),
		},
		[]string{"method", "endpoint", "status_class"},
	)
	requestRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wdagate_wda_request_retries_total",
			Help: "Number of automation endpoint retries performed",
		},
		[]string{"method", "endpoint", "status_class"},
	)
	sessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wdagate_wda_sessions_created_total",
			Help: "Automation sessions created by the client",
		},
	)
)

func statusClass(err error, status int) string {
	if err != nil {
		return "error"
	}
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}

func recordAttemptMetrics(method, endpoint string, status int, duration time.Duration, err error, retry bool) {
	class := statusClass(err, status)
	requestTotal.WithLabelValues(method, endpoint, class).Inc()
	requestDuration.WithLabelValues(method, endpoint, class).Observe(duration.Seconds())
	if retry {
		requestRetries.WithLabelValues(method, endpoint, class).Inc()
	}
}
