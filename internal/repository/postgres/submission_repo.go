package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
	"github.com/Harsh-BH/Sentinel/judge/internal/repository"
)

var _ repository.SubmissionRepository = (*pgSubmissionRepo)(nil)

type pgSubmissionRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresSubmissionRepository creates a PostgreSQL-backed submission repository.
func NewPostgresSubmissionRepository(pool *pgxpool.Pool) repository.SubmissionRepository {
	return &pgSubmissionRepo{pool: pool}
}

func (r *pgSubmissionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus) error {
	query := `UPDATE submissions SET status = $1, updated_at = $2 WHERE id = $3`
	tag, err := r.pool.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("postgres: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: %w: %s", domain.ErrSubmissionNotFound, id)
	}
	return nil
}

func (r *pgSubmissionRepo) SaveResult(ctx context.Context, id uuid.UUID, result *domain.SubmissionResult) error {
	query := `
		UPDATE submissions
		SET status = $1, score = $2, execution_time = $3, memory_used = $4,
		    passed_tests = $5, total_tests = $6, compile_error = $7,
		    runtime_error = $8, judge_message = $9, updated_at = $10
		WHERE id = $11`

	tag, err := r.pool.Exec(ctx, query,
		result.Status, result.Score, result.ExecutionTimeMs, result.MemoryUsedKB,
		result.PassedTests, result.TotalTests, nullIfEmpty(result.CompileError),
		nullIfEmpty(result.RuntimeError), result.JudgeMessage, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("postgres: save result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: %w: %s", domain.ErrSubmissionNotFound, id)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
