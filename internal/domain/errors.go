package domain

import "errors"

var (
	// ErrUnsupportedLanguage is returned when no strategy is registered for a language.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrSandboxUnavailable marks failures of the isolation layer itself
	// (runtime missing, daemon down, image absent), as opposed to failures
	// of the judged program.
	ErrSandboxUnavailable = errors.New("sandbox unavailable")

	// ErrProblemNotFound is returned when a problem cannot be found by ID.
	ErrProblemNotFound = errors.New("problem not found")

	// ErrSubmissionNotFound is returned when a submission row does not exist.
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrNoTestCases is returned when a problem has no active test cases.
	ErrNoTestCases = errors.New("problem has no active test cases")

	// ErrJudgingCancelled is returned when the enclosing request was cancelled.
	ErrJudgingCancelled = errors.New("judging cancelled")
)
