// Package idempotency makes redelivered chat updates return the reply of the
// first delivery instead of running the command again.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrRequestInProgress = errors.New("request with this key is already in progress")

const lockTTL = 30 * time.Second

// Operation produces the reply to remember.
type Operation func(ctx context.Context) (string, error)

type Result struct {
	Reply     string
	FromCache bool
}

type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error)
}

type manager struct {
	store Store
	log   *slog.Logger
}

func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store: store,
		log:   log,
	}
}

// Execute runs fn once per key within ttl. A concurrent call for a key that
// is still running gets ErrRequestInProgress; a later one gets the stored
// reply. Errors from fn are returned and not remembered.
func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	record, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record != nil && record.Status == StatusCompleted {
		return &Result{Reply: record.Reply, FromCache: true}, nil
	}

	locked, err := m.store.Lock(ctx, key, lockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrRequestInProgress
	}
	defer func() {
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
			m.log.Warn("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	reply, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.store.Set(ctx, key, &Record{Status: StatusCompleted, Reply: reply}, ttl); err != nil {
		m.log.Warn("failed to remember reply", slog.String("key", key), slog.Any("error", err))
	}

	return &Result{Reply: reply}, nil
}
