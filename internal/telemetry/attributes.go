// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Command attributes
	CommandNameKey    = "command.name"
	CommandOutcomeKey = "command.outcome"
	CommandSessionKey = "command.session_scoped"

	// Device attributes
	DeviceUDIDKey      = "device.udid"
	DeviceSimulatorKey = "device.simulator"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// CommandAttributes describes a dispatched device command.
func CommandAttributes(name string, sessionScoped bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CommandNameKey, name),
		attribute.Bool(CommandSessionKey, sessionScoped),
	}
}

// DeviceAttributes describes the targeted device. An empty UDID is omitted.
func DeviceAttributes(udid string, simulator bool) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if udid != "" {
		attrs = append(attrs, attribute.String(DeviceUDIDKey, udid))
	}
	return append(attrs, attribute.Bool(DeviceSimulatorKey, simulator))
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
