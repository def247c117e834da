// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package devicetime

import (
	"math"
	"time"
	_ "time/tzdata" // devices report zones the host may not have installed

	xglog "github.com/ManuGH/wdagate/internal/log"
	"github.com/ManuGH/wdagate/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultFormat is ISO-8601 with a colon separated offset.
const DefaultFormat = "YYYY-MM-DDTHH:mm:ssZ"

const (
	maxOffsetMinutes = 12 * 60
	maxOffsetSeconds = 12 * 60 * 60
)

// Resolution names the branch that produced the zone of a reading.
type Resolution string

const (
	ResolvedUTCOffset   Resolution = "utc_offset"
	ResolvedZoneName    Resolution = "zone"
	ResolvedZoneSeconds Resolution = "zone_seconds"
	ResolvedNone        Resolution = "none"
)

// Resolve converts r into an instant in the device's zone. Ambiguous readings
// never fail: when no offset can be determined the UTC instant is returned.
func Resolve(r Reading, logger zerolog.Logger) (time.Time, Resolution) {
	instant := time.Unix(r.Timestamp, 0).UTC()

	if r.UTCOffset != nil && !math.IsNaN(*r.UTCOffset) && math.Abs(*r.UTCOffset) <= maxOffsetMinutes {
		return instant.In(fixedZone(*r.UTCOffset)), ResolvedUTCOffset
	}

	if r.TimeZone.IsIdentifier() {
		loc, err := time.LoadLocation(r.TimeZone.String())
		if err == nil {
			return instant.In(loc), ResolvedZoneName
		}
		logger.Warn().
			Err(err).
			Str(xglog.FieldTimeZone, r.TimeZone.String()).
			Msg("unknown time zone identifier reported by device")
	}

	if secs, ok := r.TimeZone.Seconds(); ok && math.Abs(secs) <= maxOffsetSeconds {
		return instant.In(fixedZone(secs / 60)), ResolvedZoneSeconds
	}

	ev := logger.Warn().
		Int64(xglog.FieldTimestamp, r.Timestamp).
		Str(xglog.FieldTimeZone, r.TimeZone.String())
	if r.UTCOffset != nil {
		ev = ev.Float64(xglog.FieldUTCOffset, *r.UTCOffset)
	}
	ev.Msg("cannot determine device utc offset, formatting as UTC")
	return instant, ResolvedNone
}

// FormatReading resolves r and renders it with the moment-style pattern.
// An empty pattern selects DefaultFormat.
func FormatReading(r Reading, pattern string, logger zerolog.Logger) string {
	t, res := Resolve(r, logger)
	metrics.RecordDeviceTimeResolution(string(res))
	return Format(t, patternOrDefault(pattern))
}

func fixedZone(minutes float64) *time.Location {
	secs := int(math.Round(minutes * 60))
	if secs == 0 {
		return time.UTC
	}
	return time.FixedZone("", secs)
}

func patternOrDefault(pattern string) string {
	if pattern == "" {
		return DefaultFormat
	}
	return pattern
}
