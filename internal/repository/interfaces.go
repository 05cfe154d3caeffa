package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
)

// SubmissionRepository writes judging progress and verdicts onto submissions.
type SubmissionRepository interface {
	// UpdateStatus atomically updates the status of a submission.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus) error

	// SaveResult stores the terminal verdict for a judged submission.
	SaveResult(ctx context.Context, id uuid.UUID, result *domain.SubmissionResult) error
}

// ProblemRepository loads the limits and test cases of a problem.
type ProblemRepository interface {
	// GetProblem returns domain.ErrProblemNotFound for unknown ids.
	GetProblem(ctx context.Context, id int64) (*domain.Problem, error)
}

// IdempotencyStore defines the interface for distributed deduplication locks.
type IdempotencyStore interface {
	// AcquireLock attempts to acquire an exclusive processing lock for a submission.
	// Returns true if the lock was acquired (first time), false if already locked (duplicate).
	AcquireLock(ctx context.Context, id uuid.UUID) (bool, error)

	// ReleaseLock releases the processing lock with a TTL for eventual cleanup.
	ReleaseLock(ctx context.Context, id uuid.UUID) error

	// Unlock drops the lock immediately so a redelivered message is judged again.
	Unlock(ctx context.Context, id uuid.UUID) error
}

// VerdictPublisher announces persisted verdicts to downstream consumers.
type VerdictPublisher interface {
	PublishVerdict(ctx context.Context, event *domain.VerdictEvent) error
}
