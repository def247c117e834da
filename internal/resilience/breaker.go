// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resilience guards calls to the automation endpoint against cascading failures.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/wdagate/internal/metrics"
)

// State is the breaker position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrCircuitOpen is returned without calling the guarded function.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	State    State
	Failures int
	OpenedAt time.Time
	// RetryAt is when an open breaker admits its next probe. Zero unless open.
	RetryAt time.Time
}

type transition struct {
	from, to State
}

// CircuitBreaker opens after threshold consecutive counted failures. Once
// resetTimeout has elapsed it admits exactly one probe; the probe's outcome
// closes or reopens it.
type CircuitBreaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration
	clock        clock
	countable    func(error) bool
	onChange     func(name string, from, to State)

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

func WithClock(c clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// WithFailureFilter restricts which errors count towards tripping the breaker.
// Errors rejected by the filter are returned unchanged and count as a reply
// from a live endpoint.
func WithFailureFilter(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.countable = fn }
}

// WithStateChange registers fn to run after every transition, outside the lock.
func WithStateChange(fn func(name string, from, to State)) Option {
	return func(cb *CircuitBreaker) { cb.onChange = fn }
}

// NewCircuitBreaker creates a closed breaker. Non-positive threshold and
// resetTimeout fall back to 5 and 30s.
func NewCircuitBreaker(name string, threshold int, resetTimeout time.Duration, opts ...Option) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	cb := &CircuitBreaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		clock:        realClock{},
		state:        StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	metrics.SetBreakerState(cb.name, string(cb.state))
	return cb
}

// Name returns the component name used in metrics.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn unless the breaker is open or a half-open probe is already
// in flight.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, t, ok := cb.admit()
	cb.notify(t)
	if !ok {
		metrics.RecordBreakerRejected(cb.name)
		return ErrCircuitOpen
	}

	err := fn()
	counted := err != nil && (cb.countable == nil || cb.countable(err))
	if err != nil && !counted {
		metrics.RecordBreakerIgnored(cb.name)
	}
	cb.notify(cb.settle(probe, counted))
	return err
}

func (cb *CircuitBreaker) admit() (probe bool, t *transition, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, nil, true
	case StateOpen:
		if cb.clock.Now().Sub(cb.openedAt) < cb.resetTimeout {
			return false, nil, false
		}
		t = cb.transitionTo(StateHalfOpen)
		cb.probing = true
		return true, t, true
	default:
		if cb.probing {
			return false, nil, false
		}
		cb.probing = true
		return true, nil, true
	}
}

func (cb *CircuitBreaker) settle(probe, failed bool) *transition {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		cb.probing = false
	}
	if !failed {
		cb.failures = 0
		if cb.state != StateClosed {
			return cb.transitionTo(StateClosed)
		}
		return nil
	}

	cb.failures++
	switch {
	case cb.state == StateHalfOpen:
		metrics.RecordBreakerTrip(cb.name, "half_open_failure")
		return cb.transitionTo(StateOpen)
	case cb.state == StateClosed && cb.failures >= cb.threshold:
		metrics.RecordBreakerTrip(cb.name, "threshold_exceeded")
		return cb.transitionTo(StateOpen)
	}
	return nil
}

// transitionTo must be called with mu held.
func (cb *CircuitBreaker) transitionTo(to State) *transition {
	if cb.state == to {
		return nil
	}
	t := &transition{from: cb.state, to: to}
	cb.state = to
	if to == StateOpen {
		cb.openedAt = cb.clock.Now()
	}
	metrics.SetBreakerState(cb.name, string(to))
	return t
}

func (cb *CircuitBreaker) notify(t *transition) {
	if t != nil && cb.onChange != nil {
		cb.onChange(cb.name, t.from, t.to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot returns the current state with its failure count and timing.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	s := Snapshot{State: cb.state, Failures: cb.failures, OpenedAt: cb.openedAt}
	if cb.state == StateOpen {
		s.RetryAt = cb.openedAt.Add(cb.resetTimeout)
	}
	return s
}
