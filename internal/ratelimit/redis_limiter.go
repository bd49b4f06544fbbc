package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// RedisLimiter implements Limiter using Redis sorted sets and a sliding window.
type RedisLimiter struct {
	client redis.Cmdable
	log    *slog.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a Redis-backed Limiter implementation.
func NewRedisLimiter(client redis.Cmdable, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{
		client: client,
		log:    log,
	}
}

// Check evaluates the rate limit for a given key using a sliding window algorithm.
// Rejected requests are not counted against the window.
func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("redis client is not configured for rate limiting")
	}

	if limit <= 0 {
		return &Result{Allowed: false, Remaining: 0, ResetAt: time.Now().Add(window)}, nil
	}

	now := time.Now()
	windowStart := now.Add(-window)
	redisKey := redisKeyPrefix + key
	member := uuid.NewString()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("(%d", windowStart.UnixMilli()))
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: member,
	})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("rate limiter pipeline failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	count := countCmd.Val()
	allowed := count <= int64(limit)
	if !allowed {
		if err := l.client.ZRem(ctx, redisKey, member).Err(); err != nil {
			l.log.Warn("rate limiter failed to drop rejected request", slog.String("key", key), slog.Any("error", err))
		}
		count = int64(limit)
	}

	return &Result{
		Allowed:   allowed,
		Remaining: limit - int(count),
		ResetAt:   now.Add(window),
	}, nil
}
