// Package service contains grade sync workflows: dispatch, queueing and the worker
package service

import (
	"context"
	"time"

	"ejournal/internal/adapters/lti/ags"
	"ejournal/internal/adapters/lti/ltihttp"
	"ejournal/internal/adapters/lti/oauth1"
	"ejournal/internal/adapters/lti/pox"
	"ejournal/internal/modkit"
	"ejournal/internal/modkit/repokit"
	"ejournal/internal/platform/alert"
	"ejournal/internal/platform/logger"
	"ejournal/internal/services/gradesync/domain"
	"ejournal/internal/services/gradesync/repo"
)

// Service defines the grade sync service contract
type Service interface {
	domain.SyncPort
	domain.JobsPort
	domain.WorkerPort
	domain.HealthPort
}

// Config carries runtime knobs for dispatch and the worker
type Config struct {
	// BaseURL is the public eJournal origin used for deep links
	BaseURL string

	// LTI 1.1 consumer credentials
	LTIKey    string
	LTISecret string

	// LMS transport
	HTTPTimeout time.Duration
	MaxRetries  int
	RetryBase   time.Duration
	RatePerSec  float64
	Burst       int

	// GroupConcurrency bounds how many dispatch groups send at once
	GroupConcurrency int

	// queue knobs
	QueueTakeBatch int
	LeaseFor       time.Duration
	PollEvery      time.Duration
	MaxAttempts    int

	// CounterName is the correlation counter POX message ids come from
	CounterName string
}

// DefaultCounterName names the counter message ids are drawn from
const DefaultCounterName = "lti_message_id"

// Svc implements the grade sync service
type Svc struct {
	Repo    repo.Repo
	binder  repokit.Binder[repo.Repo]
	db      repokit.TxRunner
	deps    modkit.Deps
	config  Config
	log     logger.Logger
	senders map[domain.Protocol]GradeSender
	metrics *metrics
	now     func() time.Time
}

var _ Service = (*Svc)(nil)

// Option adjusts a Svc after defaults are wired
type Option func(*Svc)

// WithSenders replaces the protocol senders
func WithSenders(senders ...GradeSender) Option {
	return func(s *Svc) {
		for _, g := range senders {
			s.senders[g.Protocol()] = g
		}
	}
}

// WithRepo swaps the repository binder
func WithRepo(b repokit.Binder[repo.Repo]) Option {
	return func(s *Svc) {
		s.binder = b
		s.Repo = b.Bind(s.db)
	}
}

// WithClock sets the clock used for latency and backoff
func WithClock(now func() time.Time) Option {
	return func(s *Svc) { s.now = now }
}

// New constructs a grade sync service
func New(deps modkit.Deps, cfg Config, opts ...Option) *Svc {
	if deps.PG == nil {
		panic("gradesync.Service requires a non nil TxRunner")
	}
	if deps.Alert == nil {
		deps.Alert = alert.Nop{}
	}
	cfg = withDefaults(cfg)

	b := repo.NewPG()
	s := &Svc{
		Repo:    b.Bind(deps.PG),
		binder:  b,
		db:      deps.PG,
		deps:    deps,
		config:  cfg,
		log:     *logger.Named("gradesync"),
		senders: map[domain.Protocol]GradeSender{},
		metrics: newMetrics(deps.Meter),
		now:     time.Now,
	}

	hc := ltihttp.NewClient(ltihttp.Options{
		Timeout:    cfg.HTTPTimeout,
		MaxRetries: cfg.MaxRetries,
		RetryBase:  cfg.RetryBase,
		RPS:        cfg.RatePerSec,
		Burst:      cfg.Burst,
	})
	ids := pox.MessageIDFunc(func(ctx context.Context) (int64, error) {
		return s.Repo.NextCounter(ctx, s.config.CounterName)
	})
	s.senders[domain.ProtocolLegacy] = NewLegacySender(
		pox.NewClient(ids, oauth1.New(cfg.LTIKey, cfg.LTISecret), hc), cfg.BaseURL)
	s.senders[domain.ProtocolModern] = NewModernSender(
		ags.NewClient(registry{s}, ags.NewTokenSource(hc), hc), cfg.BaseURL)

	for _, o := range opts {
		o(s)
	}
	return s
}

func withDefaults(cfg Config) Config {
	if cfg.GroupConcurrency <= 0 {
		cfg.GroupConcurrency = 4
	}
	if cfg.QueueTakeBatch <= 0 {
		cfg.QueueTakeBatch = 16
	}
	if cfg.LeaseFor <= 0 {
		cfg.LeaseFor = 2 * time.Minute
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.CounterName == "" {
		cfg.CounterName = DefaultCounterName
	}
	return cfg
}

// registry serves AGS registrations out of the repo
type registry struct{ s *Svc }

func (r registry) Registration(ctx context.Context, issuer, clientID string) (ags.Registration, error) {
	reg, err := r.s.Repo.Registration(ctx, issuer, clientID)
	if err != nil {
		return ags.Registration{}, err
	}
	return ags.Registration{
		Issuer:        reg.Issuer,
		ClientID:      reg.ClientID,
		TokenURL:      reg.TokenURL,
		Audience:      reg.Audience,
		KeyID:         reg.KeyID,
		PrivateKeyPEM: reg.PrivateKeyPEM,
	}, nil
}
