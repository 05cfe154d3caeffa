package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
	"github.com/Harsh-BH/Sentinel/judge/internal/repository"
)

var _ repository.ProblemRepository = (*pgProblemRepo)(nil)

type pgProblemRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresProblemRepository creates a read-only repository over problems
// and their test cases.
func NewPostgresProblemRepository(pool *pgxpool.Pool) repository.ProblemRepository {
	return &pgProblemRepo{pool: pool}
}

func (r *pgProblemRepo) GetProblem(ctx context.Context, id int64) (*domain.Problem, error) {
	p := &domain.Problem{ID: id}
	err := r.pool.QueryRow(ctx,
		`SELECT time_limit, memory_limit FROM problems WHERE id = $1`, id,
	).Scan(&p.Limits.TimeLimitMs, &p.Limits.MemoryLimitMB)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: %w: %d", domain.ErrProblemNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get problem: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT input, expected_output, is_sample, COALESCE(test_order, 0),
		       COALESCE(points, 1), is_active
		FROM test_cases
		WHERE problem_id = $1
		ORDER BY test_order NULLS LAST, id`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: get test cases: %w", err)
	}

	p.TestCases, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TestCase, error) {
		var tc domain.TestCase
		err := row.Scan(&tc.Input, &tc.ExpectedOutput, &tc.IsSample, &tc.Order, &tc.Points, &tc.Active)
		return tc, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan test cases: %w", err)
	}
	return p, nil
}
