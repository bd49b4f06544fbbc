package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Proton-105/birthday-bot/internal/domain"
	"github.com/Proton-105/birthday-bot/pkg/metrics"
)

// instrumented bounds every call with a timeout, counts it and logs failures
// with their backend, operation and chat.
type instrumented struct {
	backend string
	timeout time.Duration
	log     *slog.Logger
}

func (i instrumented) call(ctx context.Context, op, chatID string, fn func(context.Context) error) error {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	err := fn(ctx)
	// a missing preference is an answer, not a failure
	if errors.Is(err, ErrUserNotFound) {
		metrics.RecordStorageOp(i.backend, op, nil)
		return err
	}

	metrics.RecordStorageOp(i.backend, op, err)
	if err != nil {
		attrs := []any{
			slog.String("backend", i.backend),
			slog.String("op", op),
			slog.Any("error", err),
		}
		if chatID != "" {
			attrs = append(attrs, slog.String("chat_id", chatID))
		}
		i.log.ErrorContext(ctx, "storage operation failed", attrs...)
	}
	return err
}

type instrumentedBirthdayStore struct {
	instrumented
	next BirthdayStore
}

// InstrumentBirthdays wraps store with timeouts, metrics and error logging.
func InstrumentBirthdays(store BirthdayStore, backend string, timeout time.Duration, log *slog.Logger) BirthdayStore {
	if log == nil {
		log = slog.Default()
	}
	return &instrumentedBirthdayStore{
		instrumented: instrumented{backend: backend, timeout: timeout, log: log},
		next:         store,
	}
}

func (s *instrumentedBirthdayStore) LoadByChat(ctx context.Context, chatID string) (out []domain.Birthday, err error) {
	err = s.call(ctx, "load_by_chat", chatID, func(ctx context.Context) error {
		out, err = s.next.LoadByChat(ctx, chatID)
		return err
	})
	return out, err
}

func (s *instrumentedBirthdayStore) LoadByDay(ctx context.Context, day time.Time) (out []domain.ChatBirthday, err error) {
	err = s.call(ctx, "load_by_day", "", func(ctx context.Context) error {
		out, err = s.next.LoadByDay(ctx, day)
		return err
	})
	return out, err
}

func (s *instrumentedBirthdayStore) Get(ctx context.Context, chatID, name string) (out *domain.Birthday, err error) {
	err = s.call(ctx, "get", chatID, func(ctx context.Context) error {
		out, err = s.next.Get(ctx, chatID, name)
		return err
	})
	return out, err
}

func (s *instrumentedBirthdayStore) Store(ctx context.Context, chatID string, birthday domain.Birthday) error {
	return s.call(ctx, "store", chatID, func(ctx context.Context) error {
		return s.next.Store(ctx, chatID, birthday)
	})
}

func (s *instrumentedBirthdayStore) Delete(ctx context.Context, chatID, name string) (removed bool, err error) {
	err = s.call(ctx, "delete", chatID, func(ctx context.Context) error {
		removed, err = s.next.Delete(ctx, chatID, name)
		return err
	})
	return removed, err
}

type instrumentedUserStore struct {
	instrumented
	next UserStore
}

// InstrumentUsers wraps store with timeouts, metrics and error logging.
func InstrumentUsers(store UserStore, backend string, timeout time.Duration, log *slog.Logger) UserStore {
	if log == nil {
		log = slog.Default()
	}
	return &instrumentedUserStore{
		instrumented: instrumented{backend: backend, timeout: timeout, log: log},
		next:         store,
	}
}

func (s *instrumentedUserStore) Get(ctx context.Context, chatID string) (out *domain.User, err error) {
	err = s.call(ctx, "user_get", chatID, func(ctx context.Context) error {
		out, err = s.next.Get(ctx, chatID)
		return err
	})
	return out, err
}

func (s *instrumentedUserStore) LoadByReminderHour(ctx context.Context, hour int) (out []domain.User, err error) {
	err = s.call(ctx, "user_load_by_hour", "", func(ctx context.Context) error {
		out, err = s.next.LoadByReminderHour(ctx, hour)
		return err
	})
	return out, err
}

func (s *instrumentedUserStore) Store(ctx context.Context, user domain.User) error {
	return s.call(ctx, "user_store", user.ChatID, func(ctx context.Context) error {
		return s.next.Store(ctx, user)
	})
}

func (s *instrumentedUserStore) UpdateReminderHour(ctx context.Context, chatID string, hour int) error {
	return s.call(ctx, "user_update_hour", chatID, func(ctx context.Context) error {
		return s.next.UpdateReminderHour(ctx, chatID, hour)
	})
}
