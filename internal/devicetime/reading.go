// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package devicetime turns raw device clock readings into formatted,
// zone-correct timestamps.
package devicetime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Reading is a clock sample reported by a physical device.
type Reading struct {
	// Timestamp is whole seconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
	// UTCOffset is nominally minutes east of UTC. Firmware has been seen to
	// report seconds here, which is why the zone hint is consulted when the
	// magnitude is implausible. Nil means unknown.
	UTCOffset *float64     `json:"utcOffset,omitempty"`
	TimeZone  TimeZoneHint `json:"timeZone"`
}

// Source supplies clock readings for a physical device.
type Source interface {
	DeviceTime(ctx context.Context, udid string) (Reading, error)
}

// TimeZoneHint is either a zone name ("Europe/Berlin", "GMT") or a numeric
// offset in seconds. Devices send both encodings.
type TimeZoneHint struct {
	raw string
}

// ZoneName builds a hint from a zone identifier.
func ZoneName(name string) TimeZoneHint { return TimeZoneHint{raw: name} }

// ZoneSeconds builds a numeric hint.
func ZoneSeconds(seconds float64) TimeZoneHint {
	return TimeZoneHint{raw: strconv.FormatFloat(seconds, 'f', -1, 64)}
}

// String returns the hint as received.
func (h TimeZoneHint) String() string { return h.raw }

// IsZero reports whether no hint was supplied.
func (h TimeZoneHint) IsZero() bool { return strings.TrimSpace(h.raw) == "" }

// IsIdentifier reports whether the hint looks like an IANA zone (Area/Location).
func (h TimeZoneHint) IsIdentifier() bool { return strings.Contains(h.raw, "/") }

// Seconds returns the hint as a number, if it is one.
func (h TimeZoneHint) Seconds() (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(h.raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// MarshalJSON emits numbers as numbers and names as strings.
func (h TimeZoneHint) MarshalJSON() ([]byte, error) {
	if h.IsZero() {
		return []byte("null"), nil
	}
	if v, ok := h.Seconds(); ok {
		return json.Marshal(v)
	}
	return json.Marshal(h.raw)
}

// UnmarshalJSON accepts a string, a number or null.
func (h *TimeZoneHint) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		h.raw = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		h.raw = s
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("devicetime: time zone hint must be string or number: %w", err)
		}
		h.raw = n.String()
		return nil
	}
}
