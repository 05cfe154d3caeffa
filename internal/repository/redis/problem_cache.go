package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
	"github.com/Harsh-BH/Sentinel/judge/internal/repository"
)

var _ repository.ProblemRepository = (*problemCache)(nil)

const (
	problemKeyPrefix  = "sentinel:judge:problem:"
	defaultProblemTTL = 5 * time.Minute
)

type problemCache struct {
	client goredis.UniversalClient
	next   repository.ProblemRepository
	ttl    time.Duration
	logger *zap.Logger
}

// NewProblemCache wraps next with a read-through Redis cache of problem
// limits and test data. Cache errors degrade to reading from next.
func NewProblemCache(client goredis.UniversalClient, next repository.ProblemRepository, ttl time.Duration, logger *zap.Logger) repository.ProblemRepository {
	if ttl <= 0 {
		ttl = defaultProblemTTL
	}
	return &problemCache{client: client, next: next, ttl: ttl, logger: logger}
}

func (c *problemCache) GetProblem(ctx context.Context, id int64) (*domain.Problem, error) {
	key := problemKeyPrefix + strconv.FormatInt(id, 10)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p domain.Problem
		if jerr := json.Unmarshal(data, &p); jerr == nil {
			return &p, nil
		}
		c.logger.Warn("Discarding corrupt cached problem", zap.Int64("problem_id", id))
	case !errors.Is(err, goredis.Nil):
		c.logger.Warn("Problem cache read failed", zap.Int64("problem_id", id), zap.Error(err))
	}

	p, err := c.next.GetProblem(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("redis: encode problem: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Problem cache write failed", zap.Int64("problem_id", id), zap.Error(err))
	}
	return p, nil
}
