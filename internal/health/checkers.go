// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/wdagate/internal/resilience"
)

// BreakerChecker reports the automation endpoint circuit breaker.
type BreakerChecker struct {
	cb *resilience.CircuitBreaker
}

// NewBreakerChecker creates a checker for cb.
func NewBreakerChecker(cb *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{cb: cb}
}

func (c *BreakerChecker) Name() string { return "wda_breaker" }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	snap := c.cb.Snapshot()
	switch snap.State {
	case resilience.StateOpen:
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("circuit open after %d failures, next probe at %s", snap.Failures, snap.RetryAt.UTC().Format(time.RFC3339)),
		}
	case resilience.StateHalfOpen:
		return CheckResult{Status: StatusDegraded, Message: "circuit half-open, probe in flight"}
	default:
		return CheckResult{Status: StatusHealthy, Message: "circuit closed"}
	}
}

// PingChecker wraps a probe function. A failing probe is unhealthy when
// critical and degraded otherwise.
type PingChecker struct {
	name     string
	ping     func(ctx context.Context) error
	critical bool
}

// NewPingChecker creates a checker named name around ping.
func NewPingChecker(name string, critical bool, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping, critical: critical}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if err := c.ping(ctx); err != nil {
		status := StatusDegraded
		if c.critical {
			status = StatusUnhealthy
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}
