package grading

import (
	"testing"
	"time"

	perr "ejournal/internal/platform/errors"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

var decEq = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func at(s string) time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return ts
}

func studentInput() Input {
	return Input{
		Role:             RoleStudent,
		Grade:            dec("7"),
		PointsPossible:   decimal.NewFromInt(10),
		JournalCreatedAt: at("2024-01-10T09:00:00Z"),
		EntryCount:       3,
	}
}

func TestBuild_ProgressTable(t *testing.T) {
	t.Parallel()

	pending := []PendingNode{{ID: 1, CreatedAt: at("2024-02-01T10:00:00Z"), LastEditedAt: at("2024-02-02T10:00:00Z")}}

	cases := []struct {
		name       string
		grade      *decimal.Decimal
		entries    int
		pending    []PendingNode
		leftGroup  bool
		activity   ActivityProgress
		gradingWas GradingProgress
	}{
		{"empty journal", nil, 0, nil, false, ActivityInitialized, GradingNotReady},
		{"empty journal, left", nil, 0, nil, true, ActivityInitialized, GradingFullyGraded},
		{"entries, nothing pending", nil, 2, nil, false, ActivitySubmitted, GradingFullyGraded},
		{"entries, pending", nil, 2, pending, false, ActivitySubmitted, GradingPendingManual},
		{"entries, pending, left", nil, 2, pending, true, ActivityInitialized, GradingFullyGraded},
		{"graded, no entries", dec("4"), 0, nil, false, ActivitySubmitted, GradingFullyGraded},
		{"graded, pending", dec("4"), 1, pending, false, ActivitySubmitted, GradingPendingManual},
		{"graded, left", dec("4"), 1, nil, true, ActivityInitialized, GradingFullyGraded},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			in := studentInput()
			in.Grade, in.EntryCount, in.PendingNodes, in.LeftGroup = c.grade, c.entries, c.pending, c.leftGroup

			s, err := Build(in)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if s.Activity != c.activity || s.Grading != c.gradingWas {
				t.Fatalf("progress = %s/%s, want %s/%s", s.Activity, s.Grading, c.activity, c.gradingWas)
			}
			if s.Activity == ActivityCompleted {
				t.Fatalf("Completed must never be emitted")
			}
		})
	}
}

func TestBuild_PercentageCappedAndPresentIffScore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		grade *decimal.Decimal
		max   int64
		want  string
	}{
		{nil, 10, ""},
		{dec("12"), 10, "1.0"},
		{dec("10"), 10, "1.0"},
		{dec("5"), 10, "0.5"},
		{dec("0"), 10, "0.0"},
		{dec("-2"), 10, "0.0"},
		{dec("1"), 3, "0.3333333333333333"},
		{dec("7.5"), 20, "0.375"},
	}
	for _, c := range cases {
		in := studentInput()
		in.Grade = c.grade
		in.PointsPossible = decimal.NewFromInt(c.max)

		s, err := Build(in)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if (s.ScoreGiven == nil) != (s.Percentage == nil) {
			t.Fatalf("percentage presence must follow score presence: given=%v pct=%v", s.ScoreGiven, s.Percentage)
		}
		if s.Percentage != nil && (s.Percentage.IsNegative() || s.Percentage.GreaterThan(decimal.NewFromInt(1))) {
			t.Fatalf("percentage out of range: %s", s.Percentage)
		}
		if got := s.ScoreText(); got != c.want {
			t.Fatalf("ScoreText(%v/%d) = %q, want %q", c.grade, c.max, got, c.want)
		}
	}
}

func TestBuild_StudentSnapshot(t *testing.T) {
	t.Parallel()

	in := studentInput()
	published := at("2024-03-01T12:00:00Z")
	in.GradePublishedAt = &published

	got, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := Snapshot{
		Role:         RoleStudent,
		SendScore:    true,
		ScoreGiven:   dec("7"),
		ScoreMaximum: decimal.NewFromInt(10),
		Percentage:   dec("0.7"),
		Activity:     ActivitySubmitted,
		Grading:      GradingFullyGraded,
		Timestamp:    published,
	}
	if diff := cmp.Diff(want, got, decEq); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	in.GradePublishedAt = nil
	got, _ = Build(in)
	if !got.Timestamp.Equal(in.JournalCreatedAt) {
		t.Fatalf("timestamp without published grade = %v, want journal creation", got.Timestamp)
	}
}

func TestBuild_ClearGradeOnLeave(t *testing.T) {
	t.Parallel()

	in := studentInput()
	in.LeftGroup = true
	in.ClearGradeOnLeave = true

	s, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !s.SendScore || s.ScoreGiven != nil || s.Percentage != nil {
		t.Fatalf("expected explicit clear, got send=%v given=%v pct=%v", s.SendScore, s.ScoreGiven, s.Percentage)
	}
	if !s.ScoreMaximum.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("score maximum should still be sent, got %s", s.ScoreMaximum)
	}

	in.ClearGradeOnLeave = false
	s, _ = Build(in)
	if s.ScoreGiven == nil || !s.ScoreGiven.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("grade should be kept when policy keeps it, got %v", s.ScoreGiven)
	}
}

func TestBuild_TeacherSnapshotUsesEarliestPendingNode(t *testing.T) {
	t.Parallel()

	in := studentInput()
	in.Role = RoleTeacher
	in.PendingNodes = []PendingNode{
		{ID: 2, CreatedAt: at("2024-02-05T10:00:00Z"), LastEditedAt: at("2024-02-06T10:00:00Z")},
		{ID: 1, CreatedAt: at("2024-02-01T10:00:00Z"), LastEditedAt: at("2024-02-09T10:00:00Z")},
		{ID: 3, CreatedAt: at("2024-02-03T10:00:00Z"), LastEditedAt: at("2024-02-03T11:00:00Z")},
	}

	s, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if s.SendScore || s.ScoreGiven != nil || s.Percentage != nil {
		t.Fatalf("teacher snapshot must not carry a score: %+v", s)
	}
	if !s.Timestamp.Equal(at("2024-02-09T10:00:00Z")) {
		t.Fatalf("timestamp = %v, want last edit of earliest node", s.Timestamp)
	}
	if s.Grading != GradingPendingManual {
		t.Fatalf("grading = %s, want PendingManual", s.Grading)
	}
}

func TestInput_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		mut   func(*Input)
		field string
	}{
		{"bad role", func(in *Input) { in.Role = "parent" }, "Role"},
		{"no creation time", func(in *Input) { in.JournalCreatedAt = time.Time{} }, "JournalCreatedAt"},
		{"negative entries", func(in *Input) { in.EntryCount = -1 }, "EntryCount"},
		{"zero points", func(in *Input) { in.PointsPossible = decimal.Zero }, "PointsPossible"},
		{"pending node without id", func(in *Input) {
			in.PendingNodes = []PendingNode{{CreatedAt: at("2024-01-01T00:00:00Z"), LastEditedAt: at("2024-01-01T00:00:00Z")}}
		}, "ID"},
		{"teacher without pending", func(in *Input) { in.Role = RoleTeacher }, "PendingNodes"},
	}
	for _, c := range cases {
		in := studentInput()
		c.mut(&in)
		err := in.Validate()
		if !perr.IsCode(err, perr.ErrorCodeValidation) {
			t.Fatalf("%s: want validation error, got %v", c.name, err)
		}
		if e, _ := perr.As(err); e.Field() != c.field {
			t.Fatalf("%s: field = %q, want %q", c.name, e.Field(), c.field)
		}
		if _, err := Build(in); err == nil {
			t.Fatalf("%s: Build should reject invalid input", c.name)
		}
	}
}

func TestBuildLegacyAndModern(t *testing.T) {
	t.Parallel()

	link := DeepLink("https://ejournal.app", 4, 17, 230)
	if link != "https://ejournal.app/Home/Course/4/Assignment/17/Journal/230" {
		t.Fatalf("DeepLink = %q", link)
	}

	addr := Address{OutcomeURL: "https://lms.example/outcomes", SourcedID: "src-1", UserID: "user-1"}

	legacy, err := BuildLegacy(studentInput(), addr, link)
	if err != nil {
		t.Fatalf("BuildLegacy: %v", err)
	}
	if diff := cmp.Diff(Address{OutcomeURL: addr.OutcomeURL, SourcedID: addr.SourcedID}, legacy.Address); diff != "" {
		t.Fatalf("legacy address (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(ResultData{URL: link}, legacy.ResultData); diff != "" {
		t.Fatalf("legacy result data (-want +got):\n%s", diff)
	}
	if legacy.Claims != nil {
		t.Fatalf("legacy snapshot should not carry claims")
	}

	modern, err := BuildModern(studentInput(), addr, link)
	if err != nil {
		t.Fatalf("BuildModern: %v", err)
	}
	want := map[string]any{
		SubmissionClaim: map[string]any{"submission_type": "basic_lti_launch", "submission_data": link},
	}
	if diff := cmp.Diff(want, modern.Claims); diff != "" {
		t.Fatalf("claims (-want +got):\n%s", diff)
	}
	if modern.Address != (Address{UserID: "user-1"}) || !modern.ResultData.Empty() {
		t.Fatalf("modern addressing leaked legacy fields: %+v", modern)
	}
}
