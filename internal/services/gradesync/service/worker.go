package service

import (
	"context"
	"time"

	"ejournal/internal/modkit/repokit"
	perr "ejournal/internal/platform/errors"
	"ejournal/internal/platform/logger"
	"ejournal/internal/services/gradesync/domain"
	"ejournal/internal/services/gradesync/repo"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
)

// Run leases queued syncs and processes them until ctx ends
func (s *Svc) Run(ctx context.Context) error {
	t := time.NewTicker(s.config.PollEvery)
	defer t.Stop()

	s.log.Info().
		Int("batch", s.config.QueueTakeBatch).
		Dur("lease_for", s.config.LeaseFor).
		Dur("poll_every", s.config.PollEvery).
		Msg("grade sync worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if _, err := s.Drain(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Error().Err(err).Msg("lease failed")
			}
		}
	}
}

// Drain processes one leased batch and reports how many jobs it touched
func (s *Svc) Drain(ctx context.Context) (int, error) {
	jobs, err := s.Repo.Lease(ctx, s.config.QueueTakeBatch, s.config.LeaseFor)
	if err != nil {
		return 0, err
	}
	for _, j := range jobs {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		s.handle(logger.WithJob(ctx, j.ID), j)
	}
	return len(jobs), nil
}

// handle runs one leased job while holding its lease
func (s *Svc) handle(ctx context.Context, j domain.Job) {
	log := logger.C(ctx)

	// jobs further down a batch may have waited past their deadline
	if err := s.Repo.Extend(ctx, j.ID, j.LeaseToken, s.config.LeaseFor); err != nil {
		if perr.IsCode(err, perr.ErrorCodeConflict) {
			log.Warn().Err(err).Msg("lease lost before start, skipping")
			return
		}
		log.Error().Err(err).Msg("extend lease failed")
		return
	}

	// leased more often than allowed means earlier holders never reported back
	if j.Attempts > s.config.MaxAttempts {
		s.fail(ctx, j, perr.Newf(perr.ErrorCodeUnavailable, "job unfinished after %d leases", j.Attempts-1), true)
		return
	}

	var req domain.SyncRequest
	if err := json.Unmarshal(j.Payload, &req); err != nil {
		s.fail(ctx, j, perr.Wrap(err, perr.ErrorCodeJSON, "decode sync request"), true)
		return
	}

	syncCtx, release := s.holdLease(ctx, j)
	batch, err := s.Sync(syncCtx, req)
	release()
	if ctx.Err() != nil {
		log.Warn().Msg("stopped mid job, lease left to expire")
		return
	}
	if err != nil {
		s.fail(ctx, j, err, true)
		return
	}

	err = repokit.InTx(ctx, s.db, s.binder, func(r repo.Repo) error {
		if err := r.SaveResults(ctx, j.ID, batch.Results); err != nil {
			return err
		}
		return r.Complete(ctx, j.ID, j.LeaseToken)
	})
	if err != nil {
		s.fail(ctx, j, err, false)
		return
	}
	s.metrics.job(ctx, "done")
	log.Info().Int("results", len(batch.Results)).Msg("grade sync job done")
}

// holdLease extends the lease of j every half lease until release is called.
// The returned ctx is cancelled once the lease is taken by someone else
func (s *Svc) holdLease(ctx context.Context, j domain.Job) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(s.config.LeaseFor / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				err := s.Repo.Extend(ctx, j.ID, j.LeaseToken, s.config.LeaseFor)
				switch {
				case err == nil || ctx.Err() != nil:
				case perr.IsCode(err, perr.ErrorCodeConflict):
					logger.C(ctx).Warn().Err(err).Msg("lease lost mid sync, stopping sends")
					cancel()
					return
				default:
					logger.C(ctx).Warn().Err(err).Msg("extend lease failed")
				}
			}
		}
	}()
	return ctx, func() {
		cancel()
		<-done
	}
}

// fail requeues j with backoff, or buries it when the error is permanent or attempts ran out.
// A lost lease leaves the job to its new holder
func (s *Svc) fail(ctx context.Context, j domain.Job, cause error, permanent bool) {
	log := logger.C(ctx)
	if perr.IsCode(cause, perr.ErrorCodeConflict) {
		log.Warn().Err(cause).Msg("lease lost, results discarded")
		return
	}
	msg := trimErr(cause)
	if permanent || j.Attempts >= s.config.MaxAttempts {
		if err := s.Repo.Bury(ctx, j.ID, j.LeaseToken, msg); err != nil {
			log.Error().Err(err).Msg("bury failed")
			return
		}
		s.metrics.job(ctx, "dead")
		log.Error().Err(cause).Int("attempts", j.Attempts).Msg("grade sync job dead")
		s.deps.Alert.Report(ctx, cause, map[string]any{"job_id": j.ID, "attempts": j.Attempts})
		return
	}

	back := backoffFor(j.Attempts-1, s.config.RetryBase)
	if perr.IsCode(cause, perr.ErrorCodeTooManyRequests) {
		back += 5 * time.Second
	}
	if err := s.Repo.Retry(ctx, j.ID, j.LeaseToken, back, msg); err != nil {
		log.Error().Err(err).Msg("retry failed")
		return
	}
	s.metrics.job(ctx, "retried")
	log.Warn().Err(cause).Dur("backoff", back).Msg("grade sync job failed scheduled retry")
}

func trimErr(err error) string {
	const n = 500
	s := err.Error()
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// backoffFor is the deterministic exponential delay after the given number of earlier retries
func backoffFor(attempts int, base time.Duration) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = 10 * time.Minute
	d := b.NextBackOff()
	for i := 0; i < attempts; i++ {
		d = b.NextBackOff()
	}
	return d
}
