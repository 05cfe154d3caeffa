package domain

import "sort"

// TestCase is one input/expected-output pair owned by a problem.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	IsSample       bool   `json:"is_sample"`
	Order          int    `json:"order"`
	Points         int    `json:"points"`
	Active         bool   `json:"active"`
}

// ActiveInOrder returns the active test cases sorted by ascending Order.
// Cases sharing an Order keep their relative position.
func ActiveInOrder(cases []TestCase) []TestCase {
	active := make([]TestCase, 0, len(cases))
	for _, tc := range cases {
		if tc.Active {
			active = append(active, tc)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Order < active[j].Order
	})
	return active
}

// ResourceLimits are the per-request execution limits.
type ResourceLimits struct {
	TimeLimitMs   int `json:"time_limit_ms"`
	MemoryLimitMB int `json:"memory_limit_mb"`
}

// Valid reports whether both limits are positive.
func (l ResourceLimits) Valid() bool {
	return l.TimeLimitMs > 0 && l.MemoryLimitMB > 0
}

// Command is a process invocation expressed in sandbox paths.
type Command struct {
	Args []string
	Env  []string
}

// CompilationResult is produced once per submission.
// Success implies ArtifactPath is set; failure implies ErrorOutput is set.
type CompilationResult struct {
	Success      bool
	ArtifactPath string
	ErrorOutput  string
	TimeUsedMs   int
}

// JudgeRequest is the input of the execution orchestrator.
type JudgeRequest struct {
	// SubmissionID only labels logs; it may be empty.
	SubmissionID string
	SourceCode   string
	Language     Language
	TestCases    []TestCase
	Limits       ResourceLimits
}

// TestCaseVerdict is the outcome of one test case.
type TestCaseVerdict struct {
	Order           int              `json:"order"`
	Passed          bool             `json:"passed"`
	Status          SubmissionStatus `json:"status"`
	ActualOutput    string           `json:"actual_output"`
	ExpectedOutput  string           `json:"expected_output"`
	ExecutionTimeMs int              `json:"execution_time_ms"`
	MemoryUsedKB    int              `json:"memory_used_kb"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	Points          int              `json:"points"`
}

// ExecutionVerdict is the terminal result handed back to the judging pipeline.
type ExecutionVerdict struct {
	Status          SubmissionStatus  `json:"status"`
	PassedCount     int               `json:"passed_count"`
	TotalCount      int               `json:"total_count"`
	ExecutionTimeMs int               `json:"execution_time_ms"`
	MaxTimeMs       int               `json:"max_time_ms"`
	MemoryUsedKB    int               `json:"memory_used_kb"`
	Score           float64           `json:"score"`
	EarnedPoints    int               `json:"earned_points"`
	TotalPoints     int               `json:"total_points"`
	CompileOutput   string            `json:"compile_output,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	Cases           []TestCaseVerdict `json:"cases"`
}

// Score computes passed/total*100, or 0 for an empty set.
func Score(passed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}
