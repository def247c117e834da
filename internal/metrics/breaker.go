// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breaker states as exported in the state label.
var breakerStates = [...]string{"closed", "half-open", "open"}

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wdagate_breaker_state",
		Help: "Breaker state per guarded endpoint, one-hot over closed, half-open and open",
	}, []string{"breaker", "state"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wdagate_breaker_trips_total",
		Help: "Transitions into the open state by cause",
	}, []string{"breaker", "cause"})

	breakerRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wdagate_breaker_rejected_total",
		Help: "Calls refused without reaching the endpoint because the breaker was open",
	}, []string{"breaker"})

	breakerIgnored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wdagate_breaker_ignored_errors_total",
		Help: "Errors the endpoint answered with that did not count towards tripping",
	}, []string{"breaker"})
)

// SetBreakerState marks state as the active one for a breaker.
func SetBreakerState(breaker, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		breakerState.WithLabelValues(breaker, s).Set(v)
	}
}

// RecordBreakerTrip counts a transition to open.
func RecordBreakerTrip(breaker, cause string) {
	breakerTrips.WithLabelValues(breaker, cause).Inc()
}

// RecordBreakerRejected counts a short-circuited call.
func RecordBreakerRejected(breaker string) {
	breakerRejected.WithLabelValues(breaker).Inc()
}

// RecordBreakerIgnored counts an error filtered out of the failure tally.
func RecordBreakerIgnored(breaker string) {
	breakerIgnored.WithLabelValues(breaker).Inc()
}
