// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/wdagate/internal/commands"
	xglog "github.com/ManuGH/wdagate/internal/log"
	"github.com/ManuGH/wdagate/internal/resilience"
	"github.com/ManuGH/wdagate/internal/wda"
)

// Problem is an RFC 7807 problem document.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Code      string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail, code string) {
	p := Problem{
		Type:      "about:blank",
		Title:     http.StatusText(status),
		Status:    status,
		Detail:    detail,
		Instance:  r.URL.Path,
		RequestID: xglog.RequestIDFromContext(r.Context()),
		Code:      code,
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

// writeError maps a command or endpoint error onto a problem response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Warn().Err(err).Str(xglog.FieldEvent, "request.failed").Int(xglog.FieldStatus, status).Msg("request failed")
	}
	writeProblem(w, r, status, err.Error(), code)
}

func classify(err error) (int, string) {
	var cmdErr *wda.CommandError
	remoteCode := ""
	if errors.As(err, &cmdErr) {
		remoteCode = cmdErr.Code
	}

	switch {
	case errors.Is(err, commands.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, commands.ErrNotImplemented):
		return http.StatusNotImplemented, "not_implemented"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable, "circuit_open"
	case errors.Is(err, wda.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, wda.ErrUnavailable):
		return http.StatusBadGateway, "unavailable"
	case errors.Is(err, wda.ErrBadResponse):
		return http.StatusBadGateway, "bad_response"
	case remoteCode != "":
		return http.StatusBadGateway, remoteCode
	default:
		return http.StatusBadGateway, "remote_failure"
	}
}
