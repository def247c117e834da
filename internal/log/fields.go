// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldSessionID     = "session_id"
	FieldDeviceUDID    = "udid"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Command fields
	FieldCommand  = "command"
	FieldEndpoint = "endpoint"
	FieldMethod   = "method"
	FieldStatus   = "status"
	FieldDuration = "duration_ms"
	FieldAttempt  = "attempt"

	// Device fields
	FieldTimeZone  = "time_zone"
	FieldUTCOffset = "utc_offset"
	FieldTimestamp = "timestamp"
	FieldRawOutput = "raw_output"
	FieldButton    = "button"
	FieldBundleID  = "bundle_id"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
