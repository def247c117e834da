// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session memoizes per-device screen metadata across commands.
package session

import (
	"context"
	"time"

	"github.com/ManuGH/wdagate/internal/cache"
	"github.com/ManuGH/wdagate/internal/commands"
	xglog "github.com/ManuGH/wdagate/internal/log"
	"github.com/ManuGH/wdagate/internal/metrics"
	"github.com/ManuGH/wdagate/internal/wda"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL bounds how long screen metadata is reused. Scale and status bar
// height only change on rotation or a device swap.
const DefaultTTL = 10 * time.Minute

// Screen implements commands.ScreenMetrics on top of a cache. Concurrent
// misses share one endpoint request.
type Screen struct {
	proxy  commands.Proxy
	cache  cache.Cache
	key    string
	ttl    time.Duration
	group  singleflight.Group
	logger zerolog.Logger
}

var _ commands.ScreenMetrics = (*Screen)(nil)

// NewScreen caches /wda/screen for the device identified by deviceKey
// (usually its UDID, otherwise the endpoint URL).
func NewScreen(proxy commands.Proxy, c cache.Cache, deviceKey string, ttl time.Duration) *Screen {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Screen{
		proxy:  proxy,
		cache:  c,
		key:    "screen:" + deviceKey,
		ttl:    ttl,
		logger: xglog.WithComponent("session"),
	}
}

// Info returns cached screen info, fetching it on a miss. The shared fetch is
// detached from ctx cancellation so one caller giving up does not fail the
// others waiting on it.
func (s *Screen) Info(ctx context.Context) (wda.ScreenInfo, error) {
	if info, ok := cache.GetJSON[wda.ScreenInfo](ctx, s.cache, s.key); ok {
		metrics.RecordScreenCacheLookup(true)
		return info, nil
	}
	metrics.RecordScreenCacheLookup(false)

	v, err, _ := s.group.Do(s.key, func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)
		info, err := commands.FetchScreenInfo(fetchCtx, s.proxy)
		if err != nil {
			return wda.ScreenInfo{}, err
		}
		if err := cache.SetJSON(fetchCtx, s.cache, s.key, info, s.ttl); err != nil {
			s.logger.Warn().Err(err).Str("key", s.key).Msg("screen metadata not cached")
		}
		return info, nil
	})
	if err != nil {
		return wda.ScreenInfo{}, err
	}
	return v.(wda.ScreenInfo), nil
}

// PixelRatio returns the cached scale.
func (s *Screen) PixelRatio(ctx context.Context) (float64, error) {
	info, err := s.Info(ctx)
	return info.Scale, err
}

// StatusBarHeight returns the cached status bar height in logical pixels.
func (s *Screen) StatusBarHeight(ctx context.Context) (float64, error) {
	info, err := s.Info(ctx)
	return info.StatusBarSize.Height, err
}

// Invalidate drops the cached metadata, e.g. after an orientation change.
func (s *Screen) Invalidate(ctx context.Context) {
	s.cache.Delete(ctx, s.key)
}
