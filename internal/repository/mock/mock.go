package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
	"github.com/Harsh-BH/Sentinel/judge/internal/repository"
)

// ---- SubmissionRepository mock ----

var _ repository.SubmissionRepository = (*SubmissionRepository)(nil)

// SubmissionRepository is a test double for repository.SubmissionRepository.
type SubmissionRepository struct {
	mu sync.Mutex

	UpdateStatusFn func(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus) error
	SaveResultFn   func(ctx context.Context, id uuid.UUID, result *domain.SubmissionResult) error

	// Recorded calls for assertions.
	StatusUpdates []StatusUpdate
	Results       []ResultUpdate
}

type StatusUpdate struct {
	ID     uuid.UUID
	Status domain.SubmissionStatus
}

type ResultUpdate struct {
	ID     uuid.UUID
	Result *domain.SubmissionResult
}

func (m *SubmissionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus) error {
	m.mu.Lock()
	m.StatusUpdates = append(m.StatusUpdates, StatusUpdate{ID: id, Status: status})
	m.mu.Unlock()
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *SubmissionRepository) SaveResult(ctx context.Context, id uuid.UUID, result *domain.SubmissionResult) error {
	m.mu.Lock()
	m.Results = append(m.Results, ResultUpdate{ID: id, Result: result})
	m.mu.Unlock()
	if m.SaveResultFn != nil {
		return m.SaveResultFn(ctx, id, result)
	}
	return nil
}

// ---- ProblemRepository mock ----

var _ repository.ProblemRepository = (*ProblemRepository)(nil)

// ProblemRepository is a test double for repository.ProblemRepository.
type ProblemRepository struct {
	mu sync.Mutex

	GetProblemFn func(ctx context.Context, id int64) (*domain.Problem, error)

	GetCalls []int64
}

func (m *ProblemRepository) GetProblem(ctx context.Context, id int64) (*domain.Problem, error) {
	m.mu.Lock()
	m.GetCalls = append(m.GetCalls, id)
	m.mu.Unlock()
	if m.GetProblemFn != nil {
		return m.GetProblemFn(ctx, id)
	}
	return nil, domain.ErrProblemNotFound
}

// ---- IdempotencyStore mock ----

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore is a test double for repository.IdempotencyStore.
type IdempotencyStore struct {
	mu sync.Mutex

	AcquireLockFn func(ctx context.Context, id uuid.UUID) (bool, error)
	ReleaseLockFn func(ctx context.Context, id uuid.UUID) error
	UnlockFn      func(ctx context.Context, id uuid.UUID) error

	AcquireCalls []uuid.UUID
	ReleaseCalls []uuid.UUID
	UnlockCalls  []uuid.UUID
}

func (m *IdempotencyStore) AcquireLock(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, id)
	m.mu.Unlock()
	if m.AcquireLockFn != nil {
		return m.AcquireLockFn(ctx, id)
	}
	return true, nil // default: lock acquired
}

func (m *IdempotencyStore) ReleaseLock(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	m.ReleaseCalls = append(m.ReleaseCalls, id)
	m.mu.Unlock()
	if m.ReleaseLockFn != nil {
		return m.ReleaseLockFn(ctx, id)
	}
	return nil
}

func (m *IdempotencyStore) Unlock(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	m.UnlockCalls = append(m.UnlockCalls, id)
	m.mu.Unlock()
	if m.UnlockFn != nil {
		return m.UnlockFn(ctx, id)
	}
	return nil
}

// ---- VerdictPublisher mock ----

var _ repository.VerdictPublisher = (*VerdictPublisher)(nil)

// VerdictPublisher is a test double for repository.VerdictPublisher.
type VerdictPublisher struct {
	mu sync.Mutex

	PublishFn func(ctx context.Context, event *domain.VerdictEvent) error

	Events []*domain.VerdictEvent
}

func (m *VerdictPublisher) PublishVerdict(ctx context.Context, event *domain.VerdictEvent) error {
	m.mu.Lock()
	m.Events = append(m.Events, event)
	m.mu.Unlock()
	if m.PublishFn != nil {
		return m.PublishFn(ctx, event)
	}
	return nil
}
