package judge

import (
	"strings"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
)

// compareOutput applies the judging rule: trim leading and trailing
// whitespace on both sides, then require exact equality. Internal
// whitespace is significant.
//
// With presentation checking enabled, output that only differs in
// whitespace is reported as PRESENTATION_ERROR instead of WRONG_ANSWER.
func compareOutput(actual, expected string, presentation bool) domain.SubmissionStatus {
	if strings.TrimSpace(actual) == strings.TrimSpace(expected) {
		return domain.StatusAccepted
	}
	if presentation && squashWhitespace(actual) == squashWhitespace(expected) {
		return domain.StatusPresentationError
	}
	return domain.StatusWrongAnswer
}

func squashWhitespace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
