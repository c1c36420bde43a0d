package store

import (
	"context"
	"fmt"
	"time"

	perr "ejournal/internal/platform/errors"

	"github.com/cenkalti/backoff/v5"
)

// ExecOne runs a write and asserts exactly 1 row affected
func ExecOne(ctx context.Context, q RowQuerier, sql string, args ...any) error {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if n := tag.RowsAffected(); n != 1 {
		return perr.Newf(perr.ErrorCodeConflict, "expected exactly one row affected, got %d", n)
	}
	return nil
}

// Scalar queries the first row, first column into T
func Scalar[T any](ctx context.Context, q RowQuerier, sql string, args ...any) (T, error) {
	var v T
	if err := q.QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// One uses a custom scanner to map a single row into T
// no rows is perr.ErrNotFound
func One[T any](ctx context.Context, q RowQuerier, scan func(Row) (T, error), sql string, args ...any) (T, error) {
	var zero T
	rs, err := q.Query(ctx, sql, args...)
	if err != nil {
		return zero, err
	}
	defer rs.Close()
	if !rs.Next() {
		if err := rs.Err(); err != nil {
			return zero, err
		}
		return zero, perr.ErrNotFound
	}
	item, err := scan(rs)
	if err != nil {
		return zero, err
	}
	if rs.Next() {
		return zero, fmt.Errorf("expected 1 row, got more")
	}
	return item, rs.Err()
}

// Many uses a custom scanner to map all rows into []T
func Many[T any](ctx context.Context, q RowQuerier, scan func(Row) (T, error), sql string, args ...any) ([]T, error) {
	rs, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out []T
	for rs.Next() {
		item, err := scan(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rs.Err()
}

// RetryTx runs fn in a transaction and retries it while the failure is a
// transient Postgres condition (serialization failure, deadlock, lock timeout)
func RetryTx(ctx context.Context, tx TxRunner, attempts int, fn func(q RowQuerier) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond

	var err error
	for i := 0; i < attempts; i++ {
		err = tx.Tx(ctx, fn)
		if err == nil || !perr.IsRetryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
	return err
}
