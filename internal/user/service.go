// Package user applies reminder preference policy on top of the user store.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Proton-105/birthday-bot/internal/domain"
	"github.com/Proton-105/birthday-bot/internal/repository"
)

// Service provides business operations over reminder preferences. Chats
// without a record are reminded at the default hour.
type Service struct {
	repo        repository.UserStore
	defaultHour int
	log         *slog.Logger
}

// NewService constructs a new Service instance.
func NewService(repo repository.UserStore, defaultHour int, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, defaultHour: defaultHour, log: log}
}

func (s *Service) DefaultHour() int {
	return s.defaultHour
}

// Register records the sender of /start. A new chat gets the default hour; an
// existing one keeps its hour and has its names refreshed.
func (s *Service) Register(ctx context.Context, chatID string, sender domain.Sender) (*domain.User, error) {
	hour := s.defaultHour

	existing, err := s.repo.Get(ctx, chatID)
	switch {
	case err == nil:
		hour = existing.ReminderHour
	case !errors.Is(err, repository.ErrUserNotFound):
		s.logError("register.get", chatID, err)
		return nil, fmt.Errorf("get user: %w", err)
	}

	u := domain.User{
		ChatID:       chatID,
		UserName:     sender.UserName,
		FirstName:    sender.FirstName,
		LastName:     sender.LastName,
		ReminderHour: hour,
	}
	if err := s.repo.Store(ctx, u); err != nil {
		s.logError("register.store", chatID, err)
		return nil, fmt.Errorf("store user: %w", err)
	}

	return &u, nil
}

// SetReminderHour validates and saves hour, creating the record if needed.
func (s *Service) SetReminderHour(ctx context.Context, chatID string, hour int) error {
	if err := domain.ValidateReminderHour(hour); err != nil {
		return err
	}

	if err := s.repo.UpdateReminderHour(ctx, chatID, hour); err != nil {
		s.logError("set_reminder_hour", chatID, err)
		return fmt.Errorf("update reminder hour: %w", err)
	}

	return nil
}

// ReminderHour returns the chat's hour, or the default when it has no record.
func (s *Service) ReminderHour(ctx context.Context, chatID string) (int, error) {
	u, err := s.repo.Get(ctx, chatID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return s.defaultHour, nil
	}
	if err != nil {
		s.logError("reminder_hour", chatID, err)
		return 0, fmt.Errorf("get user: %w", err)
	}
	return u.ReminderHour, nil
}

// ChatsAt returns the chats that explicitly chose hour.
func (s *Service) ChatsAt(ctx context.Context, hour int) (map[string]struct{}, error) {
	users, err := s.repo.LoadByReminderHour(ctx, hour)
	if err != nil {
		s.logError("chats_at", "", err)
		return nil, fmt.Errorf("load users by hour: %w", err)
	}

	out := make(map[string]struct{}, len(users))
	for _, u := range users {
		out[u.ChatID] = struct{}{}
	}
	return out, nil
}

func (s *Service) logError(operation, chatID string, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("user service operation failed",
		slog.String("operation", operation),
		slog.String("chat_id", chatID),
		slog.Any("error", err),
	)
}
