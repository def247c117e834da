// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package commands

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/ManuGH/wdagate/internal/wda"
)

// TimingKind tags a TimingSpec.
type TimingKind int

const (
	// TimingAbsent means no duration was supplied.
	TimingAbsent TimingKind = iota
	// TimingNumeric carries a coerced number of seconds.
	TimingNumeric
	// TimingUnparsable means a value was supplied but is not a number.
	TimingUnparsable
)

func (k TimingKind) String() string {
	switch k {
	case TimingAbsent:
		return "absent"
	case TimingNumeric:
		return "numeric"
	case TimingUnparsable:
		return "unparsable"
	}
	return "unknown"
}

// TimingSpec is the backgrounding duration as supplied by the caller,
// classified once at the boundary.
type TimingSpec struct {
	Kind    TimingKind
	Seconds float64
	// Structured is set when the value came from an object's "timeout" field.
	Structured bool
	// Raw is the candidate value before coercion.
	Raw any
}

// Background targets.
const (
	TargetRestoreHome = "restore_home"
	TargetDeactivate  = "deactivate"
)

// NoTiming returns an absent spec.
func NoTiming() TimingSpec { return TimingSpec{Kind: TimingAbsent} }

// TimingSeconds returns a numeric spec.
func TimingSeconds(seconds float64) TimingSpec {
	return TimingSpec{Kind: TimingNumeric, Seconds: seconds, Raw: seconds}
}

// ParseTimingSpec classifies v, which may be nil, a number, a numeric
// string or an object with an optional "timeout" field.
func ParseTimingSpec(v any) TimingSpec {
	spec := TimingSpec{Raw: v}
	if m, ok := v.(map[string]any); ok {
		if t, has := m["timeout"]; has {
			spec.Structured = true
			spec.Raw = t
			v = t
		}
	}

	if v == nil {
		spec.Kind = TimingAbsent
		return spec
	}
	if n, ok := coerceNumber(v); ok {
		spec.Kind = TimingNumeric
		spec.Seconds = n
		return spec
	}
	spec.Kind = TimingUnparsable
	return spec
}

// Resolve maps the spec to exactly one endpoint call. A negative, absent or
// unparsable duration sends the app home with no automatic restore.
// ok is false only for a spec whose Kind is outside the known set.
func (s TimingSpec) Resolve() (req wda.Request, target string, ok bool) {
	switch s.Kind {
	case TimingAbsent, TimingUnparsable:
		return restoreHome(), TargetRestoreHome, true
	case TimingNumeric:
		if s.Seconds >= 0 {
			return wda.Post("/wda/deactivateApp", map[string]any{"duration": s.Seconds}, true), TargetDeactivate, true
		}
		return restoreHome(), TargetRestoreHome, true
	}
	return wda.Request{}, "", false
}

func restoreHome() wda.Request {
	return wda.Post("/wda/homescreen", nil, false)
}

func coerceNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
