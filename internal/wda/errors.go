// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package wda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnavailable   = errors.New("wda: endpoint unreachable or transport failure")
	ErrTimeout       = errors.New("wda: request timed out")
	ErrCommandFailed = errors.New("wda: command rejected by endpoint")
	ErrUpstreamError = errors.New("wda: endpoint internal error (5xx)")
	ErrBadResponse   = errors.New("wda: invalid response format or malformed data")
	ErrNoSession     = errors.New("wda: no automation session available")
)

// W3C error codes the client reacts to.
const (
	codeInvalidSession = "invalid session id"
)

// CommandError wraps a sentinel with the details the endpoint returned.
type CommandError struct {
	Sentinel  error
	Operation string // "METHOD /path"
	Status    int
	Code      string // W3C error code, e.g. "invalid argument"
	Message   string
	Err       error // lower-level cause (e.g. net.Error)
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Code)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *CommandError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Sentinel, e.Err}
	}
	return []error{e.Sentinel}
}

// IsTransportFailure reports whether err means the endpoint could not be reached
// at all, as opposed to the endpoint answering with a failure.
func IsTransportFailure(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout)
}

// wrapError classifies a failed exchange. body may be nil.
func wrapError(op string, err error, status int, body []byte) *CommandError {
	ce := &CommandError{Operation: op, Status: status, Err: err}

	if err != nil {
		var netErr net.Error
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			ce.Sentinel = ErrTimeout
		case errors.As(err, &netErr) && netErr.Timeout():
			ce.Sentinel = ErrTimeout
		default:
			ce.Sentinel = ErrUnavailable
		}
		return ce
	}

	if werr, ok := decodeW3CError(body); ok {
		ce.Code = werr.Error
		ce.Message = werr.Message
	} else if len(body) > 0 {
		ce.Message = truncate(strings.TrimSpace(string(body)), 256)
	}

	switch {
	case status >= http.StatusInternalServerError && ce.Code == "":
		ce.Sentinel = ErrUpstreamError
	case status >= http.StatusBadRequest || ce.Code != "":
		ce.Sentinel = ErrCommandFailed
	default:
		ce.Sentinel = ErrBadResponse
	}
	return ce
}

func decodeW3CError(body []byte) (w3cError, bool) {
	var env struct {
		Value w3cError `json:"value"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return w3cError{}, false
	}
	if env.Value.Error == "" {
		return w3cError{}, false
	}
	return env.Value, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
