// Package migrate applies the embedded SQL migrations with golang-migrate
package migrate

import (
	"context"
	"database/sql"
	stderrs "errors"
	"io/fs"

	perr "ejournal/internal/platform/errors"
	"ejournal/internal/platform/logger"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver "pgx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Direction selects what Run does
type Direction string

// Directions
const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Runner applies migrations from Source to the database at DSN
type Runner struct {
	DSN    string
	Source fs.FS
	Meter  metric.Meter
}

// Run migrates in dir; down reverts a single step. ErrNoChange is not an error
func (r Runner) Run(ctx context.Context, dir Direction) (uint, error) {
	log := logger.Named("migrate")

	m, closeFn, err := r.open(ctx)
	if err != nil {
		return 0, err
	}
	defer closeFn()

	switch dir {
	case Up:
		err = m.Up()
	case Down:
		err = m.Steps(-1)
	default:
		return 0, perr.InvalidArgf("migrate: unknown direction %q", dir)
	}

	result := "applied"
	if stderrs.Is(err, migrate.ErrNoChange) {
		result, err = "noop", nil
	}
	if err != nil {
		r.record(ctx, dir, "failed")
		return 0, perr.Wrap(err, perr.ErrorCodeDB, "migrate: apply")
	}
	r.record(ctx, dir, result)

	v, dirty, verr := m.Version()
	if verr != nil && !stderrs.Is(verr, migrate.ErrNilVersion) {
		return 0, perr.Wrap(verr, perr.ErrorCodeDB, "migrate: read version")
	}
	log.Info().Str("direction", string(dir)).Str("result", result).Uint("version", v).Bool("dirty", dirty).Msg("migrations done")
	return v, nil
}

func (r Runner) open(ctx context.Context) (*migrate.Migrate, func(), error) {
	if r.DSN == "" {
		return nil, nil, perr.Configf("migrate: dsn required")
	}
	if r.Source == nil {
		return nil, nil, perr.Configf("migrate: source required")
	}

	db, err := sql.Open("pgx", r.DSN)
	if err != nil {
		return nil, nil, perr.Wrap(err, perr.ErrorCodeConfig, "migrate: open")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "migrate: ping")
	}

	driver, err := pgxv5.WithInstance(db, &pgxv5.Config{})
	if err != nil {
		_ = db.Close()
		return nil, nil, perr.Wrap(err, perr.ErrorCodeDB, "migrate: pgx5 driver")
	}
	src, err := iofs.New(r.Source, ".")
	if err != nil {
		_ = db.Close()
		return nil, nil, perr.Wrap(err, perr.ErrorCodeConfig, "migrate: source")
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, perr.Wrap(err, perr.ErrorCodeDB, "migrate: init")
	}

	return m, func() {
		serr, derr := m.Close()
		_ = db.Close()
		if serr != nil || derr != nil {
			logger.Named("migrate").Warn().AnErr("source", serr).AnErr("db", derr).Msg("migrate close")
		}
	}, nil
}

func (r Runner) record(ctx context.Context, dir Direction, result string) {
	meter := r.Meter
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("migrate")
	}
	c, err := meter.Int64Counter("ejournal_db_migrations",
		metric.WithDescription("Migration runs via golang-migrate"),
		metric.WithUnit("{run}"))
	if err != nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(
		attribute.String("direction", string(dir)),
		attribute.String("result", result)))
}
