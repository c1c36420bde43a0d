// Package middleware holds chi adapters and in house middlewares for the ops API
package middleware

import (
	"net/http"
	"time"

	"ejournal/internal/platform/logger"
	pnet "ejournal/internal/platform/net"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestID attaches or propagates X-Request-ID and copies it onto the logger context
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chimw.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := pnet.RequestID(r.Context())
			w.Header().Set(chimw.RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(logger.WithRequest(r.Context(), id)))
		}))
	}
}

// RealIP sets RemoteAddr to the upstream IP based on X-Forwarded-For headers
func RealIP() func(http.Handler) http.Handler { return chimw.RealIP }

// Timeout cancels the request context after d
func Timeout(d time.Duration) func(http.Handler) http.Handler { return chimw.Timeout(d) }

// AllowContentType rejects bodies that are not one of ct
func AllowContentType(ct ...string) func(http.Handler) http.Handler {
	return chimw.AllowContentType(ct...)
}
