// Package redis provides the Redis client used by the stores, rate limiter and job queue.
package redis

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultTimeout = 2 * time.Second

// Config defines connection parameters for initializing the Redis client.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Client wraps the go-redis client.
type Client struct {
	*redis.Client
}

// Options converts cfg into go-redis options. Commands are never retried and
// every timeout falls back to two seconds.
func (cfg Config) Options() *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  orDefault(cfg.DialTimeout),
		ReadTimeout:  orDefault(cfg.ReadTimeout),
		WriteTimeout: orDefault(cfg.WriteTimeout),
		MaxRetries:   -1,
	}
}

// New creates a Redis client configured with cfg, instruments it and verifies the connection with Ping.
func New(ctx context.Context, cfg Config) (*Client, error) {
	rdb := redis.NewClient(cfg.Options())
	rdb.AddHook(MetricsHook{})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Client{rdb}, nil
}

// Name identifies the client in health reports.
func (c *Client) Name() string {
	return "redis"
}

// Check pings the server.
func (c *Client) Check(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}
