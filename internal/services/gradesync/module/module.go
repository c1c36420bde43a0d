// Package module wires the grade sync service and exposes its ports
package module

import (
	"ejournal/internal/modkit"
	phttp "ejournal/internal/platform/net/http"

	gshttp "ejournal/internal/services/gradesync/http"
	"ejournal/internal/services/gradesync/service"
)

// Module defines the grade sync module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

var _ modkit.Module = (*Module)(nil)

// New constructs the grade sync module with its ports
func New(deps modkit.Deps, overrides Options, svcOpts ...service.Option) *Module {
	// Load defaults from config then apply overrides from CLI (if provided)
	opts := FromConfig(deps.Cfg)

	if overrides.BaseURL != "" {
		opts.BaseURL = overrides.BaseURL
	}
	if overrides.GroupConcurrency != 0 {
		opts.GroupConcurrency = overrides.GroupConcurrency
	}
	if overrides.RatePerSec != 0 {
		opts.RatePerSec = overrides.RatePerSec
	}
	if overrides.PollEvery != 0 {
		opts.PollEvery = overrides.PollEvery
	}
	if overrides.QueueTakeBatch != 0 {
		opts.QueueTakeBatch = overrides.QueueTakeBatch
	}
	if overrides.InlineSync {
		opts.InlineSync = true
	}

	svc := service.New(deps, opts.serviceConfig(), svcOpts...)
	return &Module{
		deps: deps,
		opts: opts,
		ports: Ports{
			Sync:   svc,
			Jobs:   svc,
			Worker: svc,
			Health: svc,
		},
	}
}

// Name returns the module name
func (m *Module) Name() string { return "gradesync" }

// Ports returns the module ports (Sync, Jobs, Worker, Health)
func (m *Module) Ports() any { return m.ports }

// MountRoutes mounts the ops API; the inline sync route only when enabled
func (m *Module) MountRoutes(r phttp.Router) {
	d := gshttp.Deps{Jobs: m.ports.Jobs, Health: m.ports.Health}
	if m.opts.InlineSync {
		d.Sync = m.ports.Sync
	}
	gshttp.Register(r, d)
}
