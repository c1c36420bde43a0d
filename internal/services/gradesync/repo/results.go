package repo

import (
	"context"

	"ejournal/internal/core/grading"
	perr "ejournal/internal/platform/errors"
	"ejournal/internal/platform/store"
	"ejournal/internal/services/gradesync/domain"
)

// SaveResults appends results to the job's result log
func (r *queries) SaveResults(ctx context.Context, jobID string, results []domain.Result) error {
	const sql = `
		INSERT INTO gradesync_results
			(job_id, recipient_id, protocol, role, ok, outcome, code_major, severity, description,
			 message_id, error_code, error_message, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), NULLIF(LEFT($12, 500), ''), NOW())
	`
	for _, res := range results {
		_, err := r.q.Exec(ctx, sql,
			jobID, res.RecipientID, string(res.Protocol), string(res.Role), res.OK, res.Outcome(),
			res.Status.CodeMajor, res.Status.Severity, res.Status.Description,
			res.MessageID, res.ErrorCode, res.ErrorText,
		)
		if err != nil {
			return perr.FromPostgresf(err, "gradesync: save result %s", res.RecipientID)
		}
	}
	return nil
}

// Results lists a job's results in insertion order
func (r *queries) Results(ctx context.Context, jobID string) ([]domain.Result, error) {
	const sql = `
		SELECT recipient_id, protocol, role, ok, code_major, severity, description,
		       COALESCE(message_id, ''), COALESCE(error_code, ''), COALESCE(error_message, '')
		FROM gradesync_results
		WHERE job_id = $1::uuid
		ORDER BY id ASC
	`
	out, err := store.Many(ctx, r.q, func(row store.Row) (domain.Result, error) {
		var (
			res            domain.Result
			protocol, role string
		)
		err := row.Scan(&res.RecipientID, &protocol, &role, &res.OK,
			&res.Status.CodeMajor, &res.Status.Severity, &res.Status.Description,
			&res.MessageID, &res.ErrorCode, &res.ErrorText)
		res.Protocol = domain.Protocol(protocol)
		res.Role = grading.Role(role)
		return res, err
	}, sql, jobID)
	if err != nil {
		return nil, dbErr(err, "gradesync: results")
	}
	return out, nil
}
