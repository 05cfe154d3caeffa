package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JudgeJob is a judging request received from the queue.
type JudgeJob struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	ProblemID    int64     `json:"problem_id"`
	Username     string    `json:"username"`
	Language     Language  `json:"language"`
	SourceCode   string    `json:"source_code"`
	CreatedAt    time.Time `json:"created_at"`
}

// JudgeJobMessage wraps a JudgeJob with its broker acknowledgement callbacks.
type JudgeJobMessage struct {
	Job  *JudgeJob
	Ack  func() error
	Nack func(requeue bool) error
}

// Problem carries the limits and test data the engine needs.
type Problem struct {
	ID        int64          `json:"id"`
	Limits    ResourceLimits `json:"limits"`
	TestCases []TestCase     `json:"test_cases"`
}

// VerdictEvent is published after a verdict has been persisted.
type VerdictEvent struct {
	SubmissionID uuid.UUID        `json:"submission_id"`
	ProblemID    int64            `json:"problem_id"`
	Username     string           `json:"username"`
	Language     Language         `json:"language"`
	Status       SubmissionStatus `json:"status"`
	Score        float64          `json:"score"`
	PassedCount  int              `json:"passed_count"`
	TotalCount   int              `json:"total_count"`
	JudgedAt     time.Time        `json:"judged_at"`
}

// SubmissionResult is the verdict as persisted on the submission record.
type SubmissionResult struct {
	Status          SubmissionStatus
	Score           float64
	ExecutionTimeMs int
	MemoryUsedKB    int
	PassedTests     int
	TotalTests      int
	CompileError    string
	RuntimeError    string
	JudgeMessage    string
}

// NewSubmissionResult maps an ExecutionVerdict onto the persisted fields.
func NewSubmissionResult(v *ExecutionVerdict) *SubmissionResult {
	r := &SubmissionResult{
		Status:          v.Status,
		Score:           v.Score,
		ExecutionTimeMs: v.ExecutionTimeMs,
		MemoryUsedKB:    v.MemoryUsedKB,
		PassedTests:     v.PassedCount,
		TotalTests:      v.TotalCount,
	}

	switch v.Status {
	case StatusAccepted:
		r.JudgeMessage = "All test cases passed successfully"
	case StatusWrongAnswer, StatusPresentationError:
		r.JudgeMessage = fmt.Sprintf("Passed %d out of %d test cases", v.PassedCount, v.TotalCount)
	case StatusCompileError:
		r.CompileError = v.CompileOutput
		r.JudgeMessage = v.ErrorMessage
	case StatusRuntimeError, StatusSystemError:
		r.RuntimeError = v.ErrorMessage
		r.JudgeMessage = v.ErrorMessage
	default:
		r.JudgeMessage = v.ErrorMessage
	}
	return r
}
