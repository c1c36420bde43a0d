// Package repo provides the grade sync repository implementation
package repo

import (
	"context"
	"time"

	"ejournal/internal/modkit/repokit"
	perr "ejournal/internal/platform/errors"
	"ejournal/internal/services/gradesync/domain"
)

// Repo defines the grade sync repository contract
type Repo interface {
	// NextCounter atomically increments and returns the named counter, creating it at 1
	NextCounter(ctx context.Context, name string) (int64, error)

	// Queue writes and leasing with best effort reservation semantics
	Enqueue(ctx context.Context, id string, payload []byte) error
	Lease(ctx context.Context, n int, leaseFor time.Duration) ([]domain.Job, error)

	// Lease holder updates; a token that no longer holds the job yields ErrorCodeConflict
	Extend(ctx context.Context, id, token string, leaseFor time.Duration) error
	Complete(ctx context.Context, id, token string) error
	Retry(ctx context.Context, id, token string, backoff time.Duration, lastErr string) error
	Bury(ctx context.Context, id, token string, lastErr string) error

	// Result log and read side
	SaveResults(ctx context.Context, jobID string, results []domain.Result) error
	Job(ctx context.Context, id string) (domain.Job, error)
	Results(ctx context.Context, jobID string) ([]domain.Result, error)

	// Registration looks up LTI 1.3 key material
	Registration(ctx context.Context, issuer, clientID string) (domain.Registration, error)
}

type (
	// PG is a Postgres grade sync repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres grade sync repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: repokit.RequireQueryer(q)} }

// dbErr keeps codes already assigned by the store helpers and maps raw pg errors
func dbErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := perr.As(err); ok {
		return perr.WithOp(err, msg)
	}
	return perr.FromPostgres(err, msg)
}
