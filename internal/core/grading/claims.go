package grading

// SubmissionClaim is the Canvas extension claim that links a score to a launchable submission
const SubmissionClaim = "https://canvas.instructure.com/lti/submission"

// SubmissionClaims builds the extra claims map pointing the LMS at the journal
func SubmissionClaims(deepLink string) map[string]any {
	if deepLink == "" {
		return nil
	}
	return map[string]any{
		SubmissionClaim: map[string]any{
			"submission_type": "basic_lti_launch",
			"submission_data": deepLink,
		},
	}
}
