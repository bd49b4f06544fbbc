// Package ratelimit throttles commands per chat with a sliding window.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one Check. Remaining never goes below zero.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long a rejected caller has to wait, rounded up to a second.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r == nil || r.Allowed || !r.ResetAt.After(now) {
		return 0
	}
	return (r.ResetAt.Sub(now) + time.Second - 1).Truncate(time.Second)
}

// Limiter counts requests per key. A rejected request is reported through
// Result.Allowed; an error means the limiter itself failed.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// ChatKey is the limiter key for a chat.
func ChatKey(chatID string) string {
	return "chat:" + chatID
}
