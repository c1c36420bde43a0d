package module

import (
	"time"

	"ejournal/internal/platform/config"
	"ejournal/internal/services/gradesync/service"
)

// Options controls grade sync behavior. Values may also be read from env
type Options struct {
	BaseURL string

	// LTI 1.1 consumer credentials
	LTIKey    string
	LTISecret string

	// LMS transport; MaxRetries of zero or less disables retries
	HTTPTimeout time.Duration
	MaxRetries  int
	RetryBase   time.Duration
	RatePerSec  float64
	Burst       int

	GroupConcurrency int

	// DB knobs
	QueueTakeBatch int
	LeaseFor       time.Duration
	PollEvery      time.Duration
	MaxAttempts    int
	CounterName    string

	// InlineSync mounts POST /v1/gradesync/sync
	InlineSync bool
}

// FromConfig reads options using the GRADESYNC_ prefix
func FromConfig(cfg config.Conf) Options {
	gs := cfg.Prefix("GRADESYNC_")
	return Options{
		BaseURL:          gs.MayURL("BASE_URL", "http://localhost:8000"),
		LTIKey:           gs.MayString("LTI_KEY", ""),
		LTISecret:        gs.MayString("LTI_SECRET", ""),
		HTTPTimeout:      gs.MayDuration("HTTP_TIMEOUT", 10*time.Second),
		MaxRetries:       gs.MayInt("MAX_RETRIES", 3),
		RetryBase:        gs.MayDuration("RETRY_BASE", 500*time.Millisecond),
		RatePerSec:       gs.MayFloat64("RPS", 0),
		Burst:            gs.MayInt("BURST", 4),
		GroupConcurrency: gs.MayInt("GROUP_CONCURRENCY", 4),
		QueueTakeBatch:   gs.MayInt("QUEUE_TAKE_BATCH", 16),
		LeaseFor:         gs.MayDuration("LEASE_FOR", 2*time.Minute),
		PollEvery:        gs.MayDuration("POLL_EVERY", time.Second),
		MaxAttempts:      gs.MayInt("MAX_ATTEMPTS", 8),
		CounterName:      gs.MayString("COUNTER_NAME", service.DefaultCounterName),
		InlineSync:       gs.MayBool("INLINE_SYNC", false),
	}
}

func (o Options) serviceConfig() service.Config {
	// the LMS client reads zero as its own default
	retries := o.MaxRetries
	if retries == 0 {
		retries = -1
	}
	return service.Config{
		BaseURL:          o.BaseURL,
		LTIKey:           o.LTIKey,
		LTISecret:        o.LTISecret,
		HTTPTimeout:      o.HTTPTimeout,
		MaxRetries:       retries,
		RetryBase:        o.RetryBase,
		RatePerSec:       o.RatePerSec,
		Burst:            o.Burst,
		GroupConcurrency: o.GroupConcurrency,
		QueueTakeBatch:   o.QueueTakeBatch,
		LeaseFor:         o.LeaseFor,
		PollEvery:        o.PollEvery,
		MaxAttempts:      o.MaxAttempts,
		CounterName:      o.CounterName,
	}
}
