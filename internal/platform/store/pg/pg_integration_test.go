//go:build integration_pg

package pg

import (
	"context"
	"testing"
	"time"

	kit "ejournal/internal/platform/testkit"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// openSession opens a client tagged with appName and pins one connection,
// so temp tables and session settings stay visible for the whole test
func openSession(t *testing.T, ctx context.Context, dsn, appName string) *pgxpool.Conn {
	t.Helper()
	client, err := Open(ctx, Config{URL: dsn}, nil, func(pc *pgxpool.Config) {
		if pc.ConnConfig.RuntimeParams == nil {
			pc.ConnConfig.RuntimeParams = map[string]string{}
		}
		pc.ConnConfig.RuntimeParams["application_name"] = appName
		pc.MinConns = 1
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(client.Close)

	conn, err := client.Pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	t.Cleanup(conn.Release)
	return conn
}

func TestOpen_And_BasicQueries_Integration(t *testing.T) {
	dsn := kit.StartPostgres(t)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	const appName = "ejournal-pg-integration"
	conn := openSession(t, ctx, dsn, appName)

	if _, err := conn.Exec(ctx, `create temporary table counters (name text primary key, value bigint not null)`); err != nil {
		t.Fatalf("create temp table failed: %v", err)
	}

	const bump = `insert into counters (name, value) values ($1, 1)
		on conflict (name) do update set value = counters.value + 1
		returning value`

	batch := &pgx.Batch{}
	batch.Queue(bump, "grades")
	batch.Queue(bump, "grades")
	br := conn.SendBatch(ctx, batch)
	for want := int64(1); want <= 2; want++ {
		var got int64
		if err := br.QueryRow().Scan(&got); err != nil {
			_ = br.Close()
			t.Fatalf("bump failed: %v", err)
		}
		if got != want {
			_ = br.Close()
			t.Fatalf("bump = %d, want %d", got, want)
		}
	}
	if err := br.Close(); err != nil {
		t.Fatalf("batch close: %v", err)
	}

	var gotApp string
	if err := conn.QueryRow(ctx, `select current_setting('application_name')`).Scan(&gotApp); err != nil {
		t.Fatalf("check app name: %v", err)
	}
	if gotApp != appName {
		t.Fatalf("application_name mismatch: got %q want %q", gotApp, appName)
	}
}
