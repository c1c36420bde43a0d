package repo

import (
	"context"
	"time"

	perr "ejournal/internal/platform/errors"
	"ejournal/internal/platform/store"
	"ejournal/internal/services/gradesync/domain"

	"github.com/google/uuid"
)

// Enqueue stores a new queued job
func (r *queries) Enqueue(ctx context.Context, id string, payload []byte) error {
	const sql = `
		INSERT INTO gradesync_jobs (id, status, payload, next_attempt_at, created_at, updated_at)
		VALUES ($1::uuid, 'queued', $2::jsonb, NOW(), NOW(), NOW())
	`
	return dbErr(store.ExecOne(ctx, r.q, sql, id, string(payload)), "gradesync: enqueue")
}

// Lease leases up to n due jobs for a duration under a fresh lease token.
// Running jobs whose lease ran out are picked up again; every lease counts as an attempt
func (r *queries) Lease(ctx context.Context, n int, leaseFor time.Duration) ([]domain.Job, error) {
	const sql = `
		WITH cte AS (
			SELECT id
			FROM gradesync_jobs
			WHERE status IN ('queued', 'running')
			  AND next_attempt_at <= NOW()
			ORDER BY next_attempt_at ASC, created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE gradesync_jobs j
		SET status = 'running',
		    attempts = j.attempts + 1,
		    lease_token = $3::uuid,
		    next_attempt_at = NOW() + $2::interval,
		    updated_at = NOW()
		FROM cte
		WHERE j.id = cte.id
		RETURNING ` + jobCols
	out, err := store.Many(ctx, r.q, scanJob, sql, n, leaseFor.String(), uuid.NewString())
	if err != nil {
		return nil, dbErr(err, "gradesync: lease")
	}
	return out, nil
}

// Extend pushes the lease deadline of a job the caller still holds
func (r *queries) Extend(ctx context.Context, id, token string, leaseFor time.Duration) error {
	const sql = `
		UPDATE gradesync_jobs
		SET next_attempt_at = NOW() + $3::interval, updated_at = NOW()
		WHERE id = $1::uuid AND status = 'running' AND lease_token = $2::uuid
	`
	return leaseErr(store.ExecOne(ctx, r.q, sql, id, token, leaseFor.String()), id, "gradesync: extend")
}

// Complete marks a held job done
func (r *queries) Complete(ctx context.Context, id, token string) error {
	const sql = `
		UPDATE gradesync_jobs
		SET status = 'done', last_error = NULL, lease_token = NULL, updated_at = NOW()
		WHERE id = $1::uuid AND status = 'running' AND lease_token = $2::uuid
	`
	return leaseErr(store.ExecOne(ctx, r.q, sql, id, token), id, "gradesync: complete")
}

// Retry releases a held job and schedules the next attempt
func (r *queries) Retry(ctx context.Context, id, token string, backoff time.Duration, lastErr string) error {
	const sql = `
		UPDATE gradesync_jobs
		SET status = 'queued',
		    lease_token = NULL,
		    last_error = LEFT($3, 500),
		    next_attempt_at = NOW() + $4::interval,
		    updated_at = NOW()
		WHERE id = $1::uuid AND status = 'running' AND lease_token = $2::uuid
	`
	return leaseErr(store.ExecOne(ctx, r.q, sql, id, token, lastErr, backoff.String()), id, "gradesync: retry")
}

// Bury marks a held job dead
func (r *queries) Bury(ctx context.Context, id, token string, lastErr string) error {
	const sql = `
		UPDATE gradesync_jobs
		SET status = 'dead',
		    lease_token = NULL,
		    last_error = LEFT($3, 500),
		    updated_at = NOW()
		WHERE id = $1::uuid AND status = 'running' AND lease_token = $2::uuid
	`
	return leaseErr(store.ExecOne(ctx, r.q, sql, id, token, lastErr), id, "gradesync: bury")
}

// leaseErr reports a zero row update as a lost lease
func leaseErr(err error, id, op string) error {
	if perr.IsCode(err, perr.ErrorCodeConflict) {
		return perr.WithOp(perr.Wrapf(err, perr.ErrorCodeConflict, "gradesync job %s lease lost", id), op)
	}
	return dbErr(err, op)
}

// Job reads one job by id
func (r *queries) Job(ctx context.Context, id string) (domain.Job, error) {
	const sql = `
		SELECT ` + jobCols + `
		FROM gradesync_jobs
		WHERE id = $1::uuid
	`
	j, err := store.One(ctx, r.q, scanJob, sql, id)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.Job{}, perr.NotFoundf("gradesync job %s not found", id)
		}
		return domain.Job{}, dbErr(err, "gradesync: job")
	}
	return j, nil
}

const jobCols = `id::text, status, attempts, payload::text, COALESCE(last_error, ''),
	COALESCE(lease_token::text, ''), next_attempt_at, created_at, updated_at`

func scanJob(row store.Row) (domain.Job, error) {
	var (
		j       domain.Job
		status  string
		payload string
	)
	if err := row.Scan(&j.ID, &status, &j.Attempts, &payload, &j.LastError, &j.LeaseToken, &j.NextAttemptAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return domain.Job{}, err
	}
	j.Status = domain.JobStatus(status)
	j.Payload = []byte(payload)
	return j, nil
}
