//go:build integration_pg

package store

import (
	"context"
	"io"
	"testing"
	"time"

	perr "ejournal/internal/platform/errors"
	kit "ejournal/internal/platform/testkit"

	"github.com/rs/zerolog"
)

func TestSQLAdapter_Integration_TxRollbackAndCommit(t *testing.T) {
	dsn := kit.StartPostgres(t)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	s, err := Open(ctx, Config{
		AppName: "ejournal-store-it",
		PG:      PGConfig{Enabled: true, URL: dsn, MaxConns: 2, LogSQL: true},
	}, WithLogger(zerolog.New(io.Discard)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	if err := s.Guard(ctx); err != nil {
		t.Fatalf("Guard: %v", err)
	}

	if _, err := s.PG.Exec(ctx, `CREATE TABLE it_results (id SERIAL PRIMARY KEY, status TEXT NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	// rollback path
	_ = s.PG.Tx(ctx, func(q RowQuerier) error {
		if _, err := q.Exec(ctx, `INSERT INTO it_results (status) VALUES ('sent')`); err != nil {
			return err
		}
		return perr.Internalf("abort")
	})
	n, err := Scalar[int64](ctx, s.PG, `SELECT count(*) FROM it_results`)
	if err != nil || n != 0 {
		t.Fatalf("rollback left %d rows (err=%v)", n, err)
	}

	// commit path through RetryTx
	err = RetryTx(ctx, s.PG, 3, func(q RowQuerier) error {
		return ExecOne(ctx, q, `INSERT INTO it_results (status) VALUES ($1)`, "failed")
	})
	if err != nil {
		t.Fatalf("RetryTx: %v", err)
	}

	got, err := Many(ctx, s.PG, func(r Row) (string, error) {
		var st string
		err := r.Scan(&st)
		return st, err
	}, `SELECT status FROM it_results ORDER BY id`)
	if err != nil || len(got) != 1 || got[0] != "failed" {
		t.Fatalf("Many = %v, %v", got, err)
	}

	_, err = One(ctx, s.PG, func(r Row) (string, error) {
		var st string
		err := r.Scan(&st)
		return st, err
	}, `SELECT status FROM it_results WHERE id = -1`)
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("One on empty = %v", err)
	}
}
