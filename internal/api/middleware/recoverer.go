// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"runtime/debug"

	xglog "github.com/ManuGH/wdagate/internal/log"
)

// Recoverer turns handler panics into a 500 problem response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger := xglog.WithComponentFromContext(r.Context(), "api")
			logger.Error().
				Str(xglog.FieldEvent, "request.panic").
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str(xglog.FieldPath, r.URL.Path).
				Msg("handler panicked")

			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"type":"about:blank","title":"Internal Server Error","status":500}`))
		}()
		next.ServeHTTP(w, r)
	})
}
