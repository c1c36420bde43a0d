// Package net provides request scoped helpers shared by transports
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// WithRequestID stores id where chi's RequestID middleware would
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, chimw.RequestIDKey, id)
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}
