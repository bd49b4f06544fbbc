package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type bucket struct {
	requests []time.Time
}

// MemoryLimiter is a simple in-memory fallback implementation of Limiter.
type MemoryLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	now     func() time.Time
	log     *slog.Logger
}

// NewMemoryLimiter returns an in-memory limiter implementation.
func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
		log:     log,
	}
}

// Run drops idle buckets every interval until ctx is cancelled.
func (m *MemoryLimiter) Run(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Cleanup(maxAge); removed > 0 {
				m.log.Debug("rate limit buckets cleaned", slog.Int("buckets_removed", removed))
			}
		}
	}
}

// Check enforces a sliding-window limit for the provided key.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := m.now()
	windowStart := now.Add(-window)

	bkt := m.loadOrCreateBucket(key)

	m.mu.Lock()
	defer m.mu.Unlock()

	// Cleanup may have dropped the bucket between locks.
	bkt = m.ensureBucketLocked(key, bkt)

	bkt.requests = keepRecent(bkt.requests, windowStart)
	count := len(bkt.requests)

	allowed := count < limit
	if allowed {
		bkt.requests = append(bkt.requests, now)
		count++
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now.Add(window)
	if len(bkt.requests) > 0 {
		resetAt = bkt.requests[0].Add(window)
	}

	return &Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Cleanup removes buckets that have been inactive for more than maxAge and
// returns how many were dropped.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, bkt := range m.buckets {
		if len(bkt.requests) == 0 || bkt.requests[len(bkt.requests)-1].Before(cutoff) {
			delete(m.buckets, key)
			removed++
		}
	}
	return removed
}

func (m *MemoryLimiter) loadOrCreateBucket(key string) *bucket {
	m.mu.RLock()
	bkt := m.buckets[key]
	m.mu.RUnlock()

	if bkt != nil {
		return bkt
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if bkt = m.buckets[key]; bkt == nil {
		bkt = &bucket{requests: make([]time.Time, 0, 8)}
		m.buckets[key] = bkt
	}

	return bkt
}

func (m *MemoryLimiter) ensureBucketLocked(key string, seen *bucket) *bucket {
	if bkt, ok := m.buckets[key]; ok {
		return bkt
	}

	if seen == nil {
		seen = &bucket{requests: make([]time.Time, 0, 8)}
	}
	m.buckets[key] = seen
	return seen
}

func keepRecent(reqs []time.Time, windowStart time.Time) []time.Time {
	firstIdx := 0
	for firstIdx < len(reqs) && reqs[firstIdx].Before(windowStart) {
		firstIdx++
	}

	if firstIdx == 0 {
		return reqs
	}

	if firstIdx >= len(reqs) {
		return reqs[:0]
	}

	copy(reqs, reqs[firstIdx:])
	return reqs[:len(reqs)-firstIdx]
}
