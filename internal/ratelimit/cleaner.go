package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cleaner periodically scans rate-limit keys and removes stale entries.
type Cleaner struct {
	redisClient redis.Cmdable
	log         *slog.Logger
	interval    time.Duration
	maxAge      time.Duration
}

// NewCleaner constructs a Cleaner that drops entries older than maxAge.
func NewCleaner(client redis.Cmdable, log *slog.Logger, interval, maxAge time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		redisClient: client,
		log:         log,
		interval:    interval,
		maxAge:      maxAge,
	}
}

// Run starts the cleaner loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c.redisClient == nil || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("rate limit cleaner stopped", slog.String("reason", ctx.Err().Error()))
			return
		case <-ticker.C:
			c.Cleanup(ctx)
		}
	}
}

// Cleanup trims every rate-limit set and deletes the ones left empty. It
// returns the number of deleted keys.
func (c *Cleaner) Cleanup(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	cutoff := fmt.Sprintf("(%d", time.Now().Add(-c.maxAge).UnixMilli())
	cleaned := 0

	iter := c.redisClient.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		pipe := c.redisClient.TxPipeline()
		pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
		cardCmd := pipe.ZCard(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			c.log.Warn("cleanup pipeline failed", slog.String("key", key), slog.Any("error", err))
			continue
		}

		if cardCmd.Val() > 0 {
			continue
		}
		if err := c.redisClient.Del(ctx, key).Err(); err != nil {
			c.log.Warn("failed to delete empty rate limit key", slog.String("key", key), slog.Any("error", err))
			continue
		}
		cleaned++
	}
	if err := iter.Err(); err != nil {
		c.log.Error("rate limit scan failed", slog.Any("error", err))
	}

	if cleaned > 0 {
		c.log.Info("rate limit keys cleaned", slog.Int("keys_removed", cleaned))
	}
	return cleaned
}
