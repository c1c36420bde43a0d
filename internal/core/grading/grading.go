// Package grading builds protocol neutral grade snapshots from journal state
package grading

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role selects what a snapshot is for
type Role string

const (
	// RoleStudent carries the journal's score
	RoleStudent Role = "student"
	// RoleTeacher carries no score and flags pending grading work
	RoleTeacher Role = "teacher"
)

// ActivityProgress is the learner side progress value
type ActivityProgress string

// Activity progress wire values
const (
	ActivityInitialized ActivityProgress = "Initialized" // no submission
	ActivitySubmitted   ActivityProgress = "Submitted"   // has submissions
	ActivityCompleted   ActivityProgress = "Completed"   // never emitted, the LMS stops accepting updates
)

// GradingProgress is the grader side progress value
type GradingProgress string

// Grading progress wire values
const (
	GradingNotReady      GradingProgress = "NotReady"
	GradingPendingManual GradingProgress = "PendingManual"
	GradingPending       GradingProgress = "Pending"
	GradingFullyGraded   GradingProgress = "FullyGraded"
)

// PendingNode is a journal node that still needs a grader's action
type PendingNode struct {
	ID           int64     `json:"id" validate:"required"`
	CreatedAt    time.Time `json:"created_at" validate:"required"`
	LastEditedAt time.Time `json:"last_edited_at" validate:"required"`
}

// Input enumerates every fact a snapshot is built from
type Input struct {
	Role Role `validate:"oneof=student teacher"`

	// Grade is the journal's current grade, nil when ungraded
	Grade *decimal.Decimal
	// PointsPossible is the assignment maximum
	PointsPossible decimal.Decimal

	// GradePublishedAt is when the most recent grade was published, nil if never
	GradePublishedAt *time.Time
	JournalCreatedAt time.Time `validate:"required"`

	EntryCount   int           `validate:"gte=0"`
	PendingNodes []PendingNode `validate:"dive"`

	// LeftGroup marks a recipient that just left a collaborative journal
	LeftGroup bool
	// ClearGradeOnLeave is the assignment policy for LeftGroup recipients
	ClearGradeOnLeave bool
}

// Address is where a snapshot goes; legacy uses OutcomeURL+SourcedID, modern uses UserID
type Address struct {
	OutcomeURL string
	SourcedID  string
	UserID     string
}

// ResultData is the legacy extra payload
type ResultData struct {
	URL       string
	Text      string
	LaunchURL string
}

// Empty reports whether no field is set
func (d ResultData) Empty() bool { return d.URL == "" && d.Text == "" && d.LaunchURL == "" }

// Snapshot is one fully computed grade message, independent of wire format
type Snapshot struct {
	Role      Role
	SendScore bool

	// ScoreGiven nil with SendScore set clears the grade on the LMS
	ScoreGiven   *decimal.Decimal
	ScoreMaximum decimal.Decimal
	Percentage   *decimal.Decimal

	Activity ActivityProgress
	Grading  GradingProgress

	// Timestamp zero means absent
	Timestamp time.Time

	Address    Address
	ResultData ResultData
	Claims     map[string]any
}

// ScoreText renders Percentage with at least one fractional digit ("1.0", "0.5")
// Empty when there is no score
func (s Snapshot) ScoreText() string {
	if s.Percentage == nil {
		return ""
	}
	txt := s.Percentage.String()
	if strings.ContainsRune(txt, '.') {
		return txt
	}
	return txt + ".0"
}
