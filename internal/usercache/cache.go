// Package usercache keeps user records in Redis in front of a slower user store.
package usercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/birthday-bot/internal/domain"
	"github.com/Proton-105/birthday-bot/internal/repository"
)

// Store is a read-through cache over a repository.UserStore. Writes go to the
// backing store first and then drop the cached entry. Cache failures are
// logged and never fail the call.
type Store struct {
	next   repository.UserStore
	client redis.Cmdable
	ttl    time.Duration
	log    *slog.Logger
}

var _ repository.UserStore = (*Store)(nil)

// NewStore wraps next with a cache whose entries live for ttl.
func NewStore(next repository.UserStore, client redis.Cmdable, ttl time.Duration, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{next: next, client: client, ttl: ttl, log: log}
}

func (s *Store) Get(ctx context.Context, chatID string) (*domain.User, error) {
	if u, err := s.cached(ctx, chatID); err != nil {
		s.log.Warn("user cache read failed", slog.String("chat_id", chatID), slog.Any("error", err))
	} else if u != nil {
		return u, nil
	}

	u, err := s.next.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if err := s.set(ctx, u); err != nil {
		s.log.Warn("user cache write failed", slog.String("chat_id", chatID), slog.Any("error", err))
	}
	return u, nil
}

// LoadByReminderHour is not cached.
func (s *Store) LoadByReminderHour(ctx context.Context, hour int) ([]domain.User, error) {
	return s.next.LoadByReminderHour(ctx, hour)
}

func (s *Store) Store(ctx context.Context, user domain.User) error {
	if err := s.next.Store(ctx, user); err != nil {
		return err
	}
	s.invalidate(ctx, user.ChatID)
	return nil
}

func (s *Store) UpdateReminderHour(ctx context.Context, chatID string, hour int) error {
	if err := s.next.UpdateReminderHour(ctx, chatID, hour); err != nil {
		return err
	}
	s.invalidate(ctx, chatID)
	return nil
}

func (s *Store) cached(ctx context.Context, chatID string) (*domain.User, error) {
	data, err := s.client.Get(ctx, cacheKey(chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached user: %w", err)
	}

	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	return &u, nil
}

func (s *Store) set(ctx context.Context, u *domain.User) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user for cache: %w", err)
	}

	if err := s.client.Set(ctx, cacheKey(u.ChatID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("set cached user: %w", err)
	}
	return nil
}

func (s *Store) invalidate(ctx context.Context, chatID string) {
	if err := s.client.Del(ctx, cacheKey(chatID)).Err(); err != nil {
		s.log.Warn("user cache invalidation failed", slog.String("chat_id", chatID), slog.Any("error", err))
	}
}

func cacheKey(chatID string) string {
	return "usercache:" + chatID
}
