// Package http provides the grade sync ops endpoints
package http

import (
	"context"
	"net/http"
	"time"

	phttp "ejournal/internal/platform/net/http"
	"ejournal/internal/services/gradesync/domain"
)

// Deps are the handler dependencies
type Deps struct {
	Jobs   domain.JobsPort
	Sync   domain.SyncPort
	Health domain.HealthPort
}

type handlers struct {
	deps Deps
}

// Register mounts the grade sync routes
func Register(r phttp.Router, d Deps) {
	h := &handlers{deps: d}

	r.Get("/healthz", phttp.JSONHandlerNoBody(h.health))
	r.Route("/v1/gradesync", func(r phttp.Router) {
		r.Post("/jobs", phttp.JSONHandler(h.enqueue))
		r.Get("/jobs/{id}", phttp.JSONHandlerNoBody(h.job))
		if d.Sync != nil {
			r.Post("/sync", phttp.JSONHandler(h.sync))
		}
	})
}

// EnqueueResponse is the body of an accepted sync
type EnqueueResponse struct {
	ID string `json:"id"`
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	OK  bool   `json:"ok"`
	Now string `json:"now"`
}

func (h *handlers) enqueue(r *http.Request, req domain.SyncRequest) (any, error) {
	id, err := h.deps.Jobs.Enqueue(r.Context(), req)
	if err != nil {
		return nil, err
	}
	return phttp.Accepted(EnqueueResponse{ID: id}), nil
}

func (h *handlers) job(r *http.Request) (any, error) {
	return h.deps.Jobs.Job(r.Context(), phttp.URLParam(r, "id"))
}

// sync runs a request inline; meant for operators replaying a single journal
func (h *handlers) sync(r *http.Request, req domain.SyncRequest) (any, error) {
	return h.deps.Sync.Sync(r.Context(), req)
}

func (h *handlers) health(r *http.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.deps.Health.Health(ctx); err != nil {
		return nil, err
	}
	return HealthResponse{OK: true, Now: time.Now().UTC().Format(time.RFC3339)}, nil
}
