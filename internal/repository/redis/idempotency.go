package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Harsh-BH/Sentinel/judge/internal/repository"
)

var _ repository.IdempotencyStore = (*redisIdempotency)(nil)

const (
	lockKeyPrefix = "sentinel:judge:lock:"
	lockTTL       = 10 * time.Minute
)

type redisIdempotency struct {
	client goredis.UniversalClient
}

// NewRedisIdempotencyStore creates a Redis-backed idempotency store using SETNX.
func NewRedisIdempotencyStore(client goredis.UniversalClient) repository.IdempotencyStore {
	return &redisIdempotency{client: client}
}

// AcquireLock uses Redis SETNX to atomically acquire a judging lock for a submission.
func (r *redisIdempotency) AcquireLock(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := r.client.SetNX(ctx, lockKeyPrefix+id.String(), time.Now().Unix(), lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire lock: %w", err)
	}
	return ok, nil
}

// ReleaseLock refreshes the TTL so redeliveries within the window are still
// recognised as duplicates, then lets the key expire.
func (r *redisIdempotency) ReleaseLock(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Expire(ctx, lockKeyPrefix+id.String(), lockTTL).Err(); err != nil {
		return fmt.Errorf("redis: release lock: %w", err)
	}
	return nil
}

// Unlock deletes the lock key. Used when judging was interrupted and the
// message goes back to the queue.
func (r *redisIdempotency) Unlock(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, lockKeyPrefix+id.String()).Err(); err != nil {
		return fmt.Errorf("redis: unlock: %w", err)
	}
	return nil
}
