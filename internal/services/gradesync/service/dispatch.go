package service

import (
	"context"
	"fmt"

	"ejournal/internal/core/grading"
	perr "ejournal/internal/platform/errors"
	"ejournal/internal/platform/logger"
	"ejournal/internal/platform/net/http/bind"
	"ejournal/internal/services/gradesync/domain"

	"github.com/sourcegraph/conc/pool"
)

// group is the unit of dispatch: recipients sharing a protocol endpoint
type group struct {
	key    string
	sender GradeSender
	items  []Planned
}

// Sync plans, groups and sends every snapshot req needs.
// Failures are recorded per result; only an empty request is an error
func (s *Svc) Sync(ctx context.Context, req domain.SyncRequest) (domain.Batch, error) {
	if len(req.Recipients) == 0 {
		return domain.Batch{}, perr.WithField(perr.Validationf("recipients is required"), "recipients")
	}

	groups, rejected := s.plan(req)

	out := make([][]domain.Result, len(groups))
	p := pool.New().WithMaxGoroutines(s.config.GroupConcurrency)
	for i, g := range groups {
		p.Go(func() { out[i] = s.sendGroup(ctx, g) })
	}
	p.Wait()

	batch := domain.Batch{Groups: len(groups), Results: rejected}
	for _, rs := range out {
		batch.Results = append(batch.Results, rs...)
	}

	logger.C(ctx).Info().
		Int("recipients", len(req.Recipients)).
		Int("groups", batch.Groups).
		Int("ok", batch.Count(domain.OutcomeOK)).
		Int("failed", batch.Count(domain.OutcomeFailed)).
		Int("rejected", batch.Count(domain.OutcomeRejected)).
		Int("skipped", batch.Count(domain.OutcomeSkipped)).
		Msg("grade sync finished")
	return batch, nil
}

// plan groups recipients in first appearance order. Recipients that fail
// validation become failed results without reaching a sender
func (s *Svc) plan(req domain.SyncRequest) ([]*group, []domain.Result) {
	var (
		groups   []*group
		byKey    = map[string]*group{}
		rejected []domain.Result
	)
	for _, r := range req.Recipients {
		if !r.LinkActive {
			s.log.Debug().Str("recipient_id", r.ID).Msg("no active lms link, skipping")
			continue
		}
		sender, ok := s.senders[r.Protocol]
		if !ok {
			err := perr.WithField(perr.Validationf("unknown protocol %q", r.Protocol), "protocol")
			rejected = append(rejected, s.reject(r, err))
			continue
		}
		if err := bind.Validate(r); err != nil {
			rejected = append(rejected, s.reject(r, err))
			continue
		}

		key := fmt.Sprintf("%s:%s", r.Protocol, sender.GroupKey(r))
		g, ok := byKey[key]
		if !ok {
			g = &group{key: key, sender: sender}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, sender.Plan(r, req.LeftGroup)...)
	}
	return groups, rejected
}

func (s *Svc) reject(r domain.Recipient, err error) domain.Result {
	res := failed(domain.Result{RecipientID: r.ID, Protocol: r.Protocol, Role: grading.RoleStudent}, err)
	s.log.Warn().Str("recipient_id", r.ID).Err(err).Msg("recipient rejected before dispatch")
	s.metrics.send(context.Background(), res, 0)
	return res
}

// sendGroup delivers a group's snapshots one after another
func (s *Svc) sendGroup(ctx context.Context, g *group) []domain.Result {
	out := make([]domain.Result, 0, len(g.items))
	for _, item := range g.items {
		rctx := logger.WithRecipient(ctx, item.RecipientID)
		start := s.now()
		res := g.sender.Send(rctx, item)
		s.metrics.send(rctx, res, s.now().Sub(start))
		s.observe(rctx, g.key, res)
		out = append(out, res)
	}
	return out
}

// observe logs and alerts on anything that is not a clean delivery
func (s *Svc) observe(ctx context.Context, key string, res domain.Result) {
	log := logger.C(ctx)
	switch res.Outcome() {
	case domain.OutcomeOK:
		log.Debug().Str("group", key).Str("role", string(res.Role)).Str("message_id", res.MessageID).Msg("grade delivered")
	case domain.OutcomeSkipped:
		log.Debug().Str("group", key).Msg("no outcome address, grade not sent")
	case domain.OutcomeRejected:
		log.Warn().
			Str("group", key).
			Str("code_major", res.Status.CodeMajor).
			Str("severity", res.Status.Severity).
			Str("description", res.Status.Description).
			Msg("lms rejected grade")
		s.deps.Alert.Report(ctx, perr.Upstreamf("lms rejected grade: %s", res.Status.CodeMajor), extras(res))
	default:
		log.Warn().Str("group", key).Str("code", res.ErrorCode).Err(res.Err).Msg("grade delivery failed")
		s.deps.Alert.Report(ctx, res.Err, extras(res))
	}
}

func extras(res domain.Result) map[string]any {
	return map[string]any{
		"recipient_id": res.RecipientID,
		"protocol":     string(res.Protocol),
		"role":         string(res.Role),
		"message_id":   res.MessageID,
	}
}
