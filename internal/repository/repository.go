// Package repository stores birthdays and reminder preferences behind
// backend-independent contracts.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Proton-105/birthday-bot/internal/domain"
)

var (
	// ErrUserNotFound is returned by UserStore.Get when the chat has no preference record.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnsupportedChat is returned by single-owner backends for writes from other chats.
	ErrUnsupportedChat = errors.New("chat not supported by this backend")
	// ErrInvalidChatID is returned by the redis backend for chat ids containing ':',
	// which its key layout cannot encode.
	ErrInvalidChatID = errors.New("chat id cannot be stored by this backend")
	// ErrCorruptObject is returned when a stored CSV object cannot be parsed.
	ErrCorruptObject = errors.New("corrupt birthdays object")
)

// BirthdayStore persists birthdays per chat. Names are matched through
// domain.NameKey; Store keeps the casing of the latest write.
type BirthdayStore interface {
	LoadByChat(ctx context.Context, chatID string) ([]domain.Birthday, error)
	// LoadByDay returns every birthday, in any chat, whose month and day match day.
	LoadByDay(ctx context.Context, day time.Time) ([]domain.ChatBirthday, error)
	// Get returns nil, nil when no birthday is stored under name.
	Get(ctx context.Context, chatID, name string) (*domain.Birthday, error)
	Store(ctx context.Context, chatID string, birthday domain.Birthday) error
	Delete(ctx context.Context, chatID, name string) (bool, error)
}

// UserStore persists reminder preferences.
type UserStore interface {
	Get(ctx context.Context, chatID string) (*domain.User, error)
	LoadByReminderHour(ctx context.Context, hour int) ([]domain.User, error)
	Store(ctx context.Context, user domain.User) error
	// UpdateReminderHour creates the record when it does not exist.
	UpdateReminderHour(ctx context.Context, chatID string, hour int) error
}
