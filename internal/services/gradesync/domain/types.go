// Package domain holds the grade sync types and ports
package domain

import (
	"time"

	"ejournal/internal/core/grading"

	"github.com/shopspring/decimal"
)

// Protocol selects how a recipient's LMS receives grades
type Protocol string

const (
	// ProtocolLegacy is LTI 1.1 Basic Outcomes (POX)
	ProtocolLegacy Protocol = "legacy"
	// ProtocolModern is LTI 1.3 Assignment and Grade Services
	ProtocolModern Protocol = "modern"
)

// LegacyAddress is where POX envelopes for a recipient go
type LegacyAddress struct {
	OutcomeURL string `json:"outcome_url,omitempty" validate:"endpoint"`
	SourcedID  string `json:"sourced_id,omitempty"`
}

// ServiceDescriptor identifies an AGS line item on a platform registration
type ServiceDescriptor struct {
	Issuer   string `json:"issuer" validate:"required"`
	ClientID string `json:"client_id" validate:"required"`
	LineItem string `json:"lineitem" validate:"required,endpoint"`
}

// ModernAddress is the AGS target of a recipient
type ModernAddress struct {
	Service ServiceDescriptor `json:"service"`
	UserID  string            `json:"user_id" validate:"required"`
}

// GradingFacts is the journal state a snapshot is computed from
type GradingFacts struct {
	Grade             *decimal.Decimal      `json:"grade"`
	PointsPossible    decimal.Decimal       `json:"points_possible"`
	GradePublishedAt  *time.Time            `json:"grade_published_at,omitempty"`
	JournalCreatedAt  time.Time             `json:"journal_created_at" validate:"required"`
	EntryCount        int                   `json:"entry_count" validate:"gte=0"`
	PendingNodes      []grading.PendingNode `json:"pending_nodes,omitempty" validate:"dive"`
	ClearGradeOnLeave bool                  `json:"clear_grade_on_leave"`
}

// Recipient is a student/journal pairing targeted by a sync
type Recipient struct {
	ID           string `json:"id" validate:"required"`
	CourseID     int64  `json:"course_id" validate:"gt=0"`
	AssignmentID int64  `json:"assignment_id" validate:"gt=0"`
	JournalID    int64  `json:"journal_id" validate:"gt=0"`

	// LinkActive is false when the assignment has no active LMS link
	LinkActive bool     `json:"link_active"`
	Protocol   Protocol `json:"protocol" validate:"oneof=legacy modern"`

	Legacy LegacyAddress  `json:"legacy"`
	Modern *ModernAddress `json:"modern,omitempty" validate:"required_if=Protocol modern"`

	Grading GradingFacts `json:"grading"`
}

// HasPendingAction reports whether the journal waits on a grader
func (r Recipient) HasPendingAction() bool { return len(r.Grading.PendingNodes) > 0 }

// Input turns the recipient's facts into a builder input for role
func (r Recipient) Input(role grading.Role, leftGroup bool) grading.Input {
	g := r.Grading
	return grading.Input{
		Role:              role,
		Grade:             g.Grade,
		PointsPossible:    g.PointsPossible,
		GradePublishedAt:  g.GradePublishedAt,
		JournalCreatedAt:  g.JournalCreatedAt,
		EntryCount:        g.EntryCount,
		PendingNodes:      g.PendingNodes,
		LeftGroup:         leftGroup,
		ClearGradeOnLeave: g.ClearGradeOnLeave,
	}
}

// SyncRequest is one background unit of grade sync work
type SyncRequest struct {
	Recipients []Recipient `json:"recipients" validate:"required,min=1,dive"`
	// LeftGroup scopes the sync to recipients that just left a collaborative journal
	LeftGroup bool `json:"left_group"`
}

// StatusRecord is the LMS verdict on one snapshot
type StatusRecord struct {
	CodeMajor   string `json:"code_major"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Outcome labels for results, used in metrics and storage
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Result is the uniform per snapshot outcome of both protocols
type Result struct {
	RecipientID string       `json:"recipient_id"`
	Protocol    Protocol     `json:"protocol"`
	Role        grading.Role `json:"role"`
	OK          bool         `json:"ok"`
	Status      StatusRecord `json:"status"`
	MessageID   string       `json:"message_id,omitempty"`

	Err       error  `json:"-"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorText string `json:"error,omitempty"`
}

// Outcome classifies r: ok, rejected by the LMS, skipped for lack of address, or failed
func (r Result) Outcome() string {
	switch {
	case r.OK:
		return OutcomeOK
	case r.Err != nil || r.ErrorCode != "":
		return OutcomeFailed
	case r.Status.CodeMajor == NoAddressCode:
		return OutcomeSkipped
	default:
		return OutcomeRejected
	}
}

// NoAddressCode is the code major of the synthetic record for recipients without an outcome address
const NoAddressCode = "No grade passback url set"

// Batch is everything one Sync produced
type Batch struct {
	Groups  int      `json:"groups"`
	Results []Result `json:"results"`
}

// Count returns how many results have the given outcome
func (b Batch) Count(outcome string) int {
	n := 0
	for _, r := range b.Results {
		if r.Outcome() == outcome {
			n++
		}
	}
	return n
}

// JobStatus is the lifecycle state of a queued sync
type JobStatus string

// Job states
const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobDead    JobStatus = "dead"
)

// Job is one queued SyncRequest
// Attempts counts leases, so a job whose worker died still moves toward MaxAttempts
type Job struct {
	ID            string
	Status        JobStatus
	Attempts      int
	Payload       []byte // json SyncRequest
	LastError     string
	LeaseToken    string // set while running
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// JobView is the read model returned by the ops API
type JobView struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Results   []Result  `json:"results"`
}

// Registration is a platform's LTI 1.3 key material for this tool
type Registration struct {
	Issuer        string
	ClientID      string
	TokenURL      string
	Audience      string
	KeyID         string
	PrivateKeyPEM string
}
