package service

import (
	"context"

	"ejournal/internal/adapters/lti/ags"
	"ejournal/internal/adapters/lti/pox"
	"ejournal/internal/core/grading"
	perr "ejournal/internal/platform/errors"
	"ejournal/internal/services/gradesync/domain"
)

// Planned is one snapshot waiting in a dispatch group.
// Err set means the snapshot could not be built and must be reported, not sent
type Planned struct {
	RecipientID string
	Role        grading.Role
	Snapshot    grading.Snapshot
	Service     domain.ServiceDescriptor
	Err         error
}

// GradeSender is one LMS protocol behind the dispatch router
type GradeSender interface {
	Protocol() domain.Protocol
	// GroupKey places r in a dispatch group; recipients sharing a key share an endpoint
	GroupKey(r domain.Recipient) string
	// Plan builds the snapshots r needs
	Plan(r domain.Recipient, leftGroup bool) []Planned
	// Send delivers one planned snapshot and never returns a bare error
	Send(ctx context.Context, p Planned) domain.Result
}

// LegacySender delivers POX envelopes. It owns the rule that a pending grading
// action travels as a second, scoreless teacher snapshot
type LegacySender struct {
	client  *pox.Client
	baseURL string
}

// NewLegacySender wires a LegacySender
func NewLegacySender(client *pox.Client, baseURL string) *LegacySender {
	return &LegacySender{client: client, baseURL: baseURL}
}

// Protocol implements GradeSender
func (*LegacySender) Protocol() domain.Protocol { return domain.ProtocolLegacy }

// GroupKey implements GradeSender; every legacy recipient shares one group
func (*LegacySender) GroupKey(domain.Recipient) string { return "" }

// Plan implements GradeSender
func (l *LegacySender) Plan(r domain.Recipient, leftGroup bool) []Planned {
	link := grading.DeepLink(l.baseURL, r.CourseID, r.AssignmentID, r.JournalID)
	addr := grading.Address{OutcomeURL: r.Legacy.OutcomeURL, SourcedID: r.Legacy.SourcedID}

	s, err := grading.BuildLegacy(r.Input(grading.RoleStudent, leftGroup), addr, link)
	out := []Planned{{RecipientID: r.ID, Role: grading.RoleStudent, Snapshot: s, Err: err}}

	// POX cannot carry a score and a pending flag for the same line item.
	// Without an address the student record already reports the skip
	if !leftGroup && r.HasPendingAction() && addr.OutcomeURL != "" && addr.SourcedID != "" {
		t, err := grading.BuildLegacy(r.Input(grading.RoleTeacher, false), addr, link)
		out = append(out, Planned{RecipientID: r.ID, Role: grading.RoleTeacher, Snapshot: t, Err: err})
	}
	return out
}

// Send implements GradeSender
func (l *LegacySender) Send(ctx context.Context, p Planned) domain.Result {
	res := domain.Result{RecipientID: p.RecipientID, Protocol: domain.ProtocolLegacy, Role: p.Role}
	if p.Err != nil {
		return failed(res, p.Err)
	}
	out, err := l.client.Send(ctx, p.Snapshot)
	res.MessageID = out.MessageID
	if err != nil {
		return failed(res, err)
	}
	res.Status = domain.StatusRecord(out.Status)
	res.OK = out.Status.Success()
	return res
}

// ScorePoster is the AGS capability ModernSender needs
type ScorePoster interface {
	PostScore(ctx context.Context, d ags.ServiceDescriptor, payload map[string]any) error
}

// ModernSender delivers AGS score objects; pending work rides on gradingProgress
type ModernSender struct {
	client  ScorePoster
	baseURL string
}

// NewModernSender wires a ModernSender
func NewModernSender(client ScorePoster, baseURL string) *ModernSender {
	return &ModernSender{client: client, baseURL: baseURL}
}

// Protocol implements GradeSender
func (*ModernSender) Protocol() domain.Protocol { return domain.ProtocolModern }

// GroupKey implements GradeSender; one group per line item
func (*ModernSender) GroupKey(r domain.Recipient) string {
	if r.Modern == nil {
		return ""
	}
	return toAGS(r.Modern.Service).Key()
}

// Plan implements GradeSender
func (m *ModernSender) Plan(r domain.Recipient, leftGroup bool) []Planned {
	p := Planned{RecipientID: r.ID, Role: grading.RoleStudent}
	if r.Modern == nil {
		p.Err = perr.WithField(perr.Configf("recipient %s has no ags service", r.ID), "modern")
		return []Planned{p}
	}
	link := grading.DeepLink(m.baseURL, r.CourseID, r.AssignmentID, r.JournalID)
	p.Service = r.Modern.Service
	p.Snapshot, p.Err = grading.BuildModern(r.Input(grading.RoleStudent, leftGroup), grading.Address{UserID: r.Modern.UserID}, link)
	return []Planned{p}
}

// Send implements GradeSender
func (m *ModernSender) Send(ctx context.Context, p Planned) domain.Result {
	res := domain.Result{RecipientID: p.RecipientID, Protocol: domain.ProtocolModern, Role: p.Role}
	if p.Err != nil {
		return failed(res, p.Err)
	}
	if err := m.client.PostScore(ctx, toAGS(p.Service), ags.Payload(p.Snapshot)); err != nil {
		return failed(res, err)
	}
	res.OK = true
	res.Status = domain.StatusRecord{CodeMajor: "success", Severity: "status", Description: "score accepted"}
	return res
}

func toAGS(d domain.ServiceDescriptor) ags.ServiceDescriptor {
	return ags.ServiceDescriptor{Issuer: d.Issuer, ClientID: d.ClientID, LineItem: d.LineItem}
}

// failed fills the error side of a result
func failed(res domain.Result, err error) domain.Result {
	res.OK = false
	res.Err = err
	res.ErrorCode = perr.CodeOf(err).String()
	res.ErrorText = err.Error()
	return res
}
