// CLAUDE:SUMMARY HTTP hardening middleware for the editor API: security headers, body caps, trace ids, per-client rate limits.
// Package shield provides the HTTP middleware stack in front of the editor
// API.
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(4 << 20) {
//	    r.Use(mw)
//	}
//	r.With(limiter.Middleware).Post("/v1/drafts/{id}/links", h)
package shield

import (
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// APIStack returns the default middleware for a JSON API, outermost first:
// HeadToGet, SecurityHeaders, MaxBody, TraceID.
func APIStack(maxBody int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(maxBody),
		TraceID,
	}
}

// HeadToGet serves HEAD requests through GET routes. net/http drops the body.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
