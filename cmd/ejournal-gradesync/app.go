package main

import (
	"context"
	"time"

	"ejournal/internal/core/version"
	"ejournal/internal/modkit"
	"ejournal/internal/modkit/repokit"
	"ejournal/internal/platform/alert"
	"ejournal/internal/platform/config"
	"ejournal/internal/platform/logger"
	"ejournal/internal/platform/store"
	"ejournal/internal/platform/telemetry"

	"go.opentelemetry.io/otel/metric"
)

// app holds the process wide dependencies every subcommand shares
type app struct {
	cfg   config.Conf
	log   *logger.Logger
	store *store.Store
	alert alert.Reporter
	meter metric.Meter

	stopMetrics func(context.Context) error
}

// boot brings up metrics, alerting and, when withDB is set, Postgres
func boot(ctx context.Context, withDB bool) (*app, error) {
	a := &app{
		cfg:   config.New(),
		log:   logger.Get(),
		alert: alert.New(alert.FromEnv(version.Info().Version)),
	}

	mp, stop, err := telemetry.Init(ctx, telemetry.ConfigFromEnv(version.Service))
	if err != nil {
		return nil, err
	}
	a.meter = mp.Meter(version.Service)
	a.stopMetrics = stop

	if withDB {
		st, err := store.Open(ctx, store.ConfigFromEnv(version.Service), store.WithLogger(*a.log))
		if err != nil {
			a.close()
			return nil, err
		}
		a.store = st
		if err := repokit.Ready(ctx, "postgres", st); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) deps() modkit.Deps {
	d := modkit.Deps{Log: *a.log, Cfg: a.cfg, Alert: a.alert, Meter: a.meter}
	if a.store != nil {
		d.PG = a.store.PG
	}
	return d
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			a.log.Error().Err(err).Msg("failed to close store")
		}
	}
	if err := a.alert.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to flush alerts")
	}
	if a.stopMetrics != nil {
		if err := a.stopMetrics(ctx); err != nil {
			a.log.Warn().Err(err).Msg("failed to flush metrics")
		}
	}
}
