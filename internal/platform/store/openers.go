package store

import (
	"context"
	"fmt"
	"time"

	"ejournal/internal/platform/store/pg"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// openPG opens pg and wraps it with our sql adapter
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	var mut func(*pgxpool.Config)
	if cfg.AppName != "" {
		mut = func(pc *pgxpool.Config) {
			if pc.ConnConfig.RuntimeParams == nil {
				pc.ConnConfig.RuntimeParams = map[string]string{}
			}
			pc.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
		}
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
	}, tracer, mut)
	if err != nil {
		return nil, err
	}

	attempts := cfg.PG.ConnectRetries
	if attempts <= 0 {
		attempts = 20
	}
	pingTimeout := cfg.PG.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 150 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	var lastErr error
	for i := 0; i < attempts; i++ {
		toCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = p.Pool.Ping(toCtx) // pool directly so boot pings skip the tracer
		cancel()

		if lastErr == nil {
			a := newPGAdapter(p)
			s.PG = a
			return a, nil
		}

		s.Log.Debug().Int("attempt", i+1).Err(lastErr).Msg("postgres not ready")

		select {
		case <-ctx.Done():
			p.Close()
			return nil, ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}

	p.Close()
	return nil, fmt.Errorf("postgres ping failed after %d attempts: %w", attempts, lastErr)
}
