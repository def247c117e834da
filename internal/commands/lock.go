// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/ManuGH/wdagate/internal/wda"
)

// maxLockSeconds is the longest wait a time.Duration can hold.
const maxLockSeconds = float64(math.MaxInt64) / float64(time.Second)

// Lock locks the screen. With seconds > 0 the device is unlocked again after
// that long; ctx cancellation during the wait skips the unlock.
func (c *Commands) Lock(ctx context.Context, seconds *float64) error {
	if seconds != nil && (math.IsNaN(*seconds) || *seconds >= maxLockSeconds) {
		return invalidArgument("lock", "seconds", "exceeds the longest supported wait", *seconds)
	}
	if _, err := c.proxy.ProxyCommand(ctx, wda.Post("/wda/lock", nil, false)); err != nil {
		return err
	}
	if seconds == nil || *seconds <= 0 {
		return nil
	}

	wait := time.Duration(*seconds * float64(time.Second))
	c.logger.Debug().Dur("wait", wait).Msg("device locked, unlocking after wait")
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return c.Unlock(ctx)
}

// Unlock unlocks the screen.
func (c *Commands) Unlock(ctx context.Context) error {
	_, err := c.proxy.ProxyCommand(ctx, wda.Post("/wda/unlock", nil, false))
	return err
}

// IsLocked reports whether the screen is locked.
func (c *Commands) IsLocked(ctx context.Context) (bool, error) {
	raw, err := c.proxy.ProxyCommand(ctx, wda.Get("/wda/locked", false))
	if err != nil {
		return false, err
	}
	var locked bool
	if err := json.Unmarshal(raw, &locked); err != nil {
		return false, fmt.Errorf("isLocked: decode %s: %w", string(raw), err)
	}
	return locked, nil
}
