package repo

import (
	"context"

	perr "ejournal/internal/platform/errors"
	"ejournal/internal/platform/store"
)

// NextCounter is a single upsert so concurrent callers serialize on the row lock
// and never observe the same value
func (r *queries) NextCounter(ctx context.Context, name string) (int64, error) {
	const sql = `
		INSERT INTO correlation_counters (name, value, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (name) DO UPDATE
		SET value = correlation_counters.value + 1,
		    updated_at = NOW()
		RETURNING value
	`
	v, err := store.Scalar[int64](ctx, r.q, sql, name)
	if err != nil {
		return 0, perr.FromPostgresf(err, "counter %s: next", name)
	}
	return v, nil
}
