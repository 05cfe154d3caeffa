package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
	"github.com/Harsh-BH/Sentinel/judge/internal/judge"
	"github.com/Harsh-BH/Sentinel/judge/internal/repository"
)

// unlockTimeout bounds the lock cleanup that runs after the job context is gone.
const unlockTimeout = 5 * time.Second

// Judge produces a verdict for one request.
type Judge interface {
	Judge(ctx context.Context, req *domain.JudgeRequest, onStatus judge.StatusFunc) *domain.ExecutionVerdict
}

// JudgeSubmissionUsecase runs the judging pipeline for one queued submission.
type JudgeSubmissionUsecase struct {
	submissions repository.SubmissionRepository
	problems    repository.ProblemRepository
	idempotent  repository.IdempotencyStore
	publisher   repository.VerdictPublisher
	judge       Judge
	logger      *zap.Logger
}

// NewJudgeSubmissionUsecase creates a new JudgeSubmissionUsecase.
// publisher may be nil, in which case no verdict events are emitted.
func NewJudgeSubmissionUsecase(
	submissions repository.SubmissionRepository,
	problems repository.ProblemRepository,
	idempotent repository.IdempotencyStore,
	publisher repository.VerdictPublisher,
	judger Judge,
	logger *zap.Logger,
) *JudgeSubmissionUsecase {
	return &JudgeSubmissionUsecase{
		submissions: submissions,
		problems:    problems,
		idempotent:  idempotent,
		publisher:   publisher,
		judge:       judger,
		logger:      logger,
	}
}

// Execute processes a single job: idempotency check → load problem → judge →
// store verdict → publish. Returns (isDuplicate, error).
//
// domain.ErrJudgingCancelled is returned when ctx ends mid-judgement; the
// lock is dropped so the redelivered message is judged again.
func (uc *JudgeSubmissionUsecase) Execute(ctx context.Context, job *domain.JudgeJob) (bool, error) {
	log := uc.logger.With(
		zap.String("submission_id", job.SubmissionID.String()),
		zap.String("language", string(job.Language)),
	)

	// Step 1: Idempotency check
	acquired, err := uc.idempotent.AcquireLock(ctx, job.SubmissionID)
	if err != nil {
		log.Error("Failed to acquire idempotency lock", zap.Error(err))
		return false, err
	}
	if !acquired {
		log.Info("Duplicate message detected, skipping")
		return true, nil
	}

	// Step 2: Load limits and test data
	problem, err := uc.problems.GetProblem(ctx, job.ProblemID)
	var verdict *domain.ExecutionVerdict
	switch {
	case errors.Is(err, domain.ErrProblemNotFound):
		log.Warn("Problem not found", zap.Int64("problem_id", job.ProblemID))
		verdict = &domain.ExecutionVerdict{
			Status:       domain.StatusSystemError,
			ErrorMessage: fmt.Sprintf("problem %d not found", job.ProblemID),
			Cases:        []domain.TestCaseVerdict{},
		}
	case err != nil:
		log.Error("Failed to load problem", zap.Error(err))
		_ = uc.submissions.UpdateStatus(ctx, job.SubmissionID, domain.StatusSystemError)
		return false, err
	default:
		// Step 3: Judge in the sandbox
		verdict = uc.judge.Judge(ctx, &domain.JudgeRequest{
			SubmissionID: job.SubmissionID.String(),
			SourceCode:   job.SourceCode,
			Language:     job.Language,
			TestCases:    problem.TestCases,
			Limits:       problem.Limits,
		}, func(status domain.SubmissionStatus) {
			if err := uc.submissions.UpdateStatus(ctx, job.SubmissionID, status); err != nil {
				log.Warn("Failed to update submission status",
					zap.String("status", string(status)), zap.Error(err))
			}
		})
	}

	if ctx.Err() != nil {
		uc.unlock(ctx, job, log)
		return false, fmt.Errorf("%w: %v", domain.ErrJudgingCancelled, ctx.Err())
	}

	// Step 4: Store verdict
	if err := uc.submissions.SaveResult(ctx, job.SubmissionID, domain.NewSubmissionResult(verdict)); err != nil {
		log.Error("Failed to store verdict", zap.Error(err))
		return false, err
	}

	// Step 5: Announce verdict (best-effort)
	if uc.publisher != nil {
		event := &domain.VerdictEvent{
			SubmissionID: job.SubmissionID,
			ProblemID:    job.ProblemID,
			Username:     job.Username,
			Language:     job.Language,
			Status:       verdict.Status,
			Score:        verdict.Score,
			PassedCount:  verdict.PassedCount,
			TotalCount:   verdict.TotalCount,
			JudgedAt:     time.Now().UTC(),
		}
		if err := uc.publisher.PublishVerdict(ctx, event); err != nil {
			log.Warn("Failed to publish verdict event", zap.Error(err))
		}
	}

	// Step 6: Release idempotency lock (set TTL for eventual cleanup)
	_ = uc.idempotent.ReleaseLock(ctx, job.SubmissionID)

	log.Info("Submission judged",
		zap.String("status", string(verdict.Status)),
		zap.Int("passed", verdict.PassedCount),
		zap.Int("total", verdict.TotalCount),
		zap.Float64("score", verdict.Score),
	)
	return false, nil
}

func (uc *JudgeSubmissionUsecase) unlock(ctx context.Context, job *domain.JudgeJob, log *zap.Logger) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
	defer cancel()
	if err := uc.idempotent.Unlock(cleanupCtx, job.SubmissionID); err != nil {
		log.Warn("Failed to drop idempotency lock", zap.Error(err))
	}
}
