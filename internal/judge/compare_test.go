package judge

import (
	"testing"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
)

func TestCompareOutput(t *testing.T) {
	tests := []struct {
		name         string
		actual       string
		expected     string
		presentation bool
		want         domain.SubmissionStatus
	}{
		{"trailing newline", "5\n", "5", false, domain.StatusAccepted},
		{"trailing space", "5 ", "5", false, domain.StatusAccepted},
		{"leading whitespace", "\n\t 5", "5\n", false, domain.StatusAccepted},
		{"different line", "5\n6", "5\n7", false, domain.StatusWrongAnswer},
		{"empty vs empty", "", "", false, domain.StatusAccepted},
		{"whitespace only vs empty", " \n", "", false, domain.StatusAccepted},
		{"empty vs value", "", "5", false, domain.StatusWrongAnswer},
		{"internal whitespace significant", "1  2", "1 2", false, domain.StatusWrongAnswer},
		{"internal whitespace with presentation", "1  2", "1 2", true, domain.StatusPresentationError},
		{"line break vs space with presentation", "1\n2", "1 2", true, domain.StatusPresentationError},
		{"real mismatch with presentation", "1 3", "1 2", true, domain.StatusWrongAnswer},
		{"crlf is not trimmed inside", "1\r\n2", "1\n2", false, domain.StatusWrongAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compareOutput(tt.actual, tt.expected, tt.presentation); got != tt.want {
				t.Errorf("compareOutput(%q, %q) = %s, want %s", tt.actual, tt.expected, got, tt.want)
			}
		})
	}
}
