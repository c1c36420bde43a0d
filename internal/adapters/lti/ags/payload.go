package ags

import (
	"maps"

	"ejournal/internal/core/grading"
)

// timestampLayout is ISO 8601 with millisecond precision
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Payload builds the score object for s.
// Keys without a value are left out; scoreGiven and scoreMaximum only appear when the score is sent
func Payload(s grading.Snapshot) map[string]any {
	p := map[string]any{
		"activityProgress": string(s.Activity),
		"gradingProgress":  string(s.Grading),
	}
	if !s.Timestamp.IsZero() {
		p["timestamp"] = s.Timestamp.UTC().Format(timestampLayout)
	}
	if s.Address.UserID != "" {
		p["userId"] = s.Address.UserID
	}
	if s.SendScore {
		if s.ScoreGiven != nil {
			p["scoreGiven"] = s.ScoreGiven.InexactFloat64()
		}
		if !s.ScoreMaximum.IsZero() {
			p["scoreMaximum"] = s.ScoreMaximum.InexactFloat64()
		}
	}
	maps.Copy(p, s.Claims)
	return p
}
