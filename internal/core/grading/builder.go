package grading

import (
	"errors"
	"fmt"
	"sync"

	perr "ejournal/internal/platform/errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	vOnce    sync.Once
	validate *validator.Validate
)

func validatorInstance() *validator.Validate {
	vOnce.Do(func() { validate = validator.New(validator.WithRequiredStructEnabled()) })
	return validate
}

// Validate checks the input is complete for its role
func (in Input) Validate() error {
	if err := validatorInstance().Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return perr.WithField(perr.Validationf("grading input: %s failed %s", fe.Field(), fe.Tag()), fe.Field())
		}
		return perr.Wrap(err, perr.ErrorCodeValidation, "grading input")
	}
	if in.Role == RoleStudent && !in.PointsPossible.IsPositive() {
		return perr.WithField(perr.Validationf("grading input: points possible must be positive"), "PointsPossible")
	}
	if in.Role == RoleTeacher && len(in.PendingNodes) == 0 {
		return perr.WithField(perr.Validationf("grading input: teacher snapshot needs a pending node"), "PendingNodes")
	}
	return nil
}

// Build computes the protocol neutral part of a snapshot
func Build(in Input) (Snapshot, error) {
	if err := in.Validate(); err != nil {
		return Snapshot{}, err
	}

	s := Snapshot{
		Role:     in.Role,
		Activity: activityProgress(in),
		Grading:  gradingProgress(in),
	}

	switch {
	case in.Role == RoleTeacher:
		s.SendScore = false
		s.Timestamp = earliestPending(in.PendingNodes).LastEditedAt
	default:
		s.SendScore = true
		s.ScoreMaximum = in.PointsPossible
		if !(in.LeftGroup && in.ClearGradeOnLeave) && in.Grade != nil {
			g := *in.Grade
			s.ScoreGiven = &g
			s.Percentage = percentage(g, in.PointsPossible)
		}
		s.Timestamp = in.JournalCreatedAt
		if in.GradePublishedAt != nil {
			s.Timestamp = *in.GradePublishedAt
		}
	}
	return s, nil
}

// BuildLegacy builds a snapshot addressed to a POX outcome service with a {url} result data blob
func BuildLegacy(in Input, addr Address, deepLink string) (Snapshot, error) {
	s, err := Build(in)
	if err != nil {
		return Snapshot{}, err
	}
	s.Address = Address{OutcomeURL: addr.OutcomeURL, SourcedID: addr.SourcedID}
	s.ResultData = ResultData{URL: deepLink}
	return s, nil
}

// BuildModern builds a snapshot addressed to an AGS user with the submission claim
func BuildModern(in Input, addr Address, deepLink string) (Snapshot, error) {
	s, err := Build(in)
	if err != nil {
		return Snapshot{}, err
	}
	s.Address = Address{UserID: addr.UserID}
	s.Claims = SubmissionClaims(deepLink)
	return s, nil
}

func activityProgress(in Input) ActivityProgress {
	if in.LeftGroup || (in.Grade == nil && in.EntryCount == 0) {
		return ActivityInitialized
	}
	return ActivitySubmitted
}

// gradingProgress: a recipient that left the group is final, reported as FullyGraded
func gradingProgress(in Input) GradingProgress {
	switch {
	case in.LeftGroup:
		return GradingFullyGraded
	case in.Grade == nil && in.EntryCount == 0:
		return GradingNotReady
	case len(in.PendingNodes) > 0:
		return GradingPendingManual
	default:
		return GradingFullyGraded
	}
}

// percentage is min(max(given, 0), max) / max
func percentage(given, maximum decimal.Decimal) *decimal.Decimal {
	capped := decimal.Min(decimal.Max(given, decimal.Zero), maximum)
	p := capped.Div(maximum)
	return &p
}

func earliestPending(nodes []PendingNode) PendingNode {
	first := nodes[0]
	for _, n := range nodes[1:] {
		if n.CreatedAt.Before(first.CreatedAt) {
			first = n
		}
	}
	return first
}

// DeepLink is the in-app address of a journal
func DeepLink(base string, course, assignment, journal int64) string {
	return fmt.Sprintf("%s/Home/Course/%d/Assignment/%d/Journal/%d", base, course, assignment, journal)
}
