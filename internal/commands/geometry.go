// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package commands

import (
	"math"

	"github.com/ManuGH/wdagate/internal/wda"
)

// Rect is a window rectangle in logical pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport is the web content area in device pixels.
type Viewport struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ComputeViewport converts a logical window size into the device pixel area
// below the status bar. Height is not clamped and goes negative when the
// status bar is taller than the window.
func ComputeViewport(scale, statusBarHeight float64, window wda.Size) Viewport {
	top := math.Round(statusBarHeight * scale)
	return Viewport{
		Left:   0,
		Top:    top,
		Width:  window.Width * scale,
		Height: window.Height*scale - top,
	}
}
