// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package wda

import (
	"encoding/json"
	"net/http"
)

// Request is one command against the automation endpoint.
type Request struct {
	Method string
	Path   string
	// Body is JSON encoded when non-nil.
	Body any
	// SessionScoped commands are sent below /session/{id}.
	SessionScoped bool
}

// Get builds a GET request.
func Get(path string, sessionScoped bool) Request {
	return Request{Method: http.MethodGet, Path: path, SessionScoped: sessionScoped}
}

// Post builds a POST request.
func Post(path string, body any, sessionScoped bool) Request {
	return Request{Method: http.MethodPost, Path: path, Body: body, SessionScoped: sessionScoped}
}

// envelope is the response shape shared by W3C and legacy JSONWP endpoints.
type envelope struct {
	Value     json.RawMessage `json:"value"`
	SessionID string          `json:"sessionId,omitempty"`
	// Status is only set by legacy endpoints; non-zero means failure.
	Status *int `json:"status,omitempty"`
}

// w3cError is the value of a failed W3C response.
type w3cError struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Stacktrace string `json:"stacktrace,omitempty"`
	Traceback  string `json:"traceback,omitempty"`
}

// Size is a width/height pair in logical pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ScreenInfo is the value of GET /wda/screen.
type ScreenInfo struct {
	StatusBarSize Size    `json:"statusBarSize"`
	Scale         float64 `json:"scale"`
}
