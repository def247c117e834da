// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ManuGH/wdagate/internal/audit"
	"github.com/go-chi/chi/v5"
)

// HeaderActor names the caller in the audit trail.
const HeaderActor = "X-Actor"

const (
	maxBodyBytes      = 1 << 20
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type dispatchResponse struct {
	Command string `json:"command"`
	Value   any    `json:"value"`
}

func (s *Server) handleListCommands(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"commands": s.deps.Dispatcher.Names()})
}

// handleDispatch runs a command. The body, if any, is a JSON object of
// named arguments.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "malformed command name", "invalid_argument")
		return
	}

	args, err := decodeArgs(r.Body)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error(), "invalid_argument")
		return
	}

	actor := strings.TrimSpace(r.Header.Get(HeaderActor))
	if actor == "" {
		actor = "api"
	}
	ctx := audit.ContextWithActor(r.Context(), actor)

	value, err := s.deps.Dispatcher.Dispatch(ctx, name, args)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dispatchResponse{Command: name, Value: value})
}

func decodeArgs(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.UseNumber()
	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, errors.New("request body must be a JSON object")
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func (s *Server) handleWindowRect(w http.ResponseWriter, r *http.Request) {
	rect, err := s.deps.Commands.GetWindowRect(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rect)
}

func (s *Server) handleWindowSize(w http.ResponseWriter, r *http.Request) {
	size, err := s.deps.Commands.GetWindowSize(r.Context(), r.URL.Query().Get("handle"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, size)
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	vp, err := s.deps.Commands.GetViewportRect(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vp)
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.Commands.GetScreenInfo(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleInvalidateScreen(w http.ResponseWriter, r *http.Request) {
	if s.deps.Screen != nil {
		s.deps.Screen.Invalidate(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeviceTime(w http.ResponseWriter, r *http.Request) {
	formatted, err := s.deps.Commands.GetDeviceTime(r.Context(), r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"time": formatted})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		writeProblem(w, r, http.StatusNotImplemented, "command journal is not configured", "not_implemented")
		return
	}

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeProblem(w, r, http.StatusBadRequest, "limit must be a positive integer", "invalid_argument")
			return
		}
		limit = min(n, maxAuditLimit)
	}

	entries, err := s.deps.Journal.Recent(r.Context(), limit)
	if err != nil {
		writeProblem(w, r, http.StatusInternalServerError, err.Error(), "")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
