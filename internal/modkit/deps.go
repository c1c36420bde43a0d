// Package modkit provides module wiring and core deps
package modkit

import (
	"ejournal/internal/modkit/repokit"
	"ejournal/internal/platform/alert"
	"ejournal/internal/platform/config"
	"ejournal/internal/platform/logger"

	"go.opentelemetry.io/otel/metric"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log   logger.Logger
	Cfg   config.Conf
	PG    repokit.TxRunner
	Alert alert.Reporter
	Meter metric.Meter
}
