// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package devicetime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/wdagate/internal/localexec"
	xglog "github.com/ManuGH/wdagate/internal/log"
	"github.com/ManuGH/wdagate/internal/metrics"
	"github.com/rs/zerolog"
)

// Simulators share the host clock, so the host's date(1) is authoritative.
var simulatorDateArgs = []string{"+%Y-%m-%dT%H:%M:%S%z"}

var simulatorLayouts = []string{
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05Z07:00",
}

// ParseSimulatorOutput parses the output of `date +%Y-%m-%dT%H:%M:%S%z`,
// keeping the offset it carries.
func ParseSimulatorOutput(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range simulatorLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("devicetime: unparsable date output %q: %w", s, lastErr)
}

// FormatSimulator reads the host clock via runner and renders it with pattern.
// Output that cannot be parsed is returned trimmed and unmodified.
func FormatSimulator(ctx context.Context, runner localexec.Runner, pattern string, logger zerolog.Logger) (string, error) {
	res, err := runner.Run(ctx, "date", simulatorDateArgs...)
	if err != nil {
		return "", fmt.Errorf("devicetime: read simulator clock: %w", err)
	}

	raw := strings.TrimSpace(res.Stdout)
	t, err := ParseSimulatorOutput(raw)
	if err != nil {
		logger.Warn().
			Err(err).
			Str(xglog.FieldRawOutput, raw).
			Msg("cannot parse simulator time, returning raw output")
		metrics.RecordDeviceTimeResolution("raw")
		return raw, nil
	}
	metrics.RecordDeviceTimeResolution("simulator")
	return Format(t, patternOrDefault(pattern)), nil
}
