package service

import (
	"context"

	perr "ejournal/internal/platform/errors"
	"ejournal/internal/platform/net/http/bind"
	"ejournal/internal/platform/store"
	"ejournal/internal/services/gradesync/domain"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Enqueue validates req and queues it for the worker, returning the job id
func (s *Svc) Enqueue(ctx context.Context, req domain.SyncRequest) (string, error) {
	if err := bind.Validate(req); err != nil {
		return "", err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeJSON, "encode sync request")
	}
	id := uuid.NewString()
	if err := s.Repo.Enqueue(ctx, id, payload); err != nil {
		return "", err
	}
	s.log.Info().Str("job_id", id).Int("recipients", len(req.Recipients)).Msg("grade sync queued")
	return id, nil
}

// Job returns a queued sync and the results recorded for it
func (s *Svc) Job(ctx context.Context, id string) (domain.JobView, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.JobView{}, perr.WithField(perr.InvalidArgf("job id %q is not a uuid", id), "id")
	}
	j, err := s.Repo.Job(ctx, id)
	if err != nil {
		return domain.JobView{}, err
	}
	results, err := s.Repo.Results(ctx, id)
	if err != nil {
		return domain.JobView{}, err
	}
	if results == nil {
		results = []domain.Result{}
	}
	return domain.JobView{
		ID:        j.ID,
		Status:    j.Status,
		Attempts:  j.Attempts,
		LastError: j.LastError,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
		Results:   results,
	}, nil
}

// Health reports whether Postgres answers
func (s *Svc) Health(ctx context.Context) error {
	var err error
	if p, ok := s.db.(store.Pinger); ok {
		err = p.Ping(ctx)
	} else {
		_, err = store.Scalar[int](ctx, s.db, "SELECT 1")
	}
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "postgres unreachable")
	}
	return nil
}
