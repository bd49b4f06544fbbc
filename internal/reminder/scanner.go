// Package reminder sends the birthday reminders that are due at a given hour.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Proton-105/birthday-bot/internal/errors"
	"github.com/Proton-105/birthday-bot/internal/repository"
	"github.com/Proton-105/birthday-bot/internal/user"
	"github.com/Proton-105/birthday-bot/pkg/metrics"
)

// Sender delivers a message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// Result summarizes one scan.
type Result struct {
	Matched int
	Sent    int
	Failed  int
}

// Message is the reminder text for name.
func Message(name string) string {
	return fmt.Sprintf("It's %s's birthday today!", name)
}

// Scanner matches today's birthdays against the chats whose reminder hour is now.
type Scanner struct {
	birthdays repository.BirthdayStore
	users     *user.Service
	sender    Sender
	errors    *apperrors.Handler
	log       *slog.Logger
}

func NewScanner(birthdays repository.BirthdayStore, users *user.Service, sender Sender, errHandler *apperrors.Handler, log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}

	return &Scanner{
		birthdays: birthdays,
		users:     users,
		sender:    sender,
		errors:    errHandler,
		log:       log,
	}
}

// Run performs one scan for the hour and date of now in UTC. Failures for a
// single chat are logged and counted; a failed load ends the scan early.
func (s *Scanner) Run(ctx context.Context, now time.Time) Result {
	start := time.Now()
	now = now.UTC()
	hour := now.Hour()

	var result Result
	defer func() {
		metrics.RecordReminderScan(result.Sent, result.Failed, time.Since(start))
		s.log.Info("reminder scan finished",
			slog.Int("hour", hour),
			slog.Int("matched", result.Matched),
			slog.Int("sent", result.Sent),
			slog.Int("failed", result.Failed),
			slog.Duration("duration", time.Since(start)),
		)
	}()

	todays, err := s.birthdays.LoadByDay(ctx, now)
	if err != nil {
		s.errors.Handle(ctx, apperrors.NewStorageError("reminder.load_by_day", err))
		return result
	}
	if len(todays) == 0 {
		return result
	}

	chats, err := s.users.ChatsAt(ctx, hour)
	if err != nil {
		s.errors.Handle(ctx, apperrors.NewStorageError("reminder.load_by_reminder_hour", err))
		return result
	}

	due := make(map[string]bool, len(chats))
	for _, cb := range todays {
		ok, known := due[cb.ChatID]
		if !known {
			ok, err = s.isDue(ctx, cb.ChatID, hour, chats)
			if err != nil {
				s.errors.Handle(ctx, apperrors.NewStorageError("reminder.reminder_hour", err))
				result.Failed++
				continue
			}
			due[cb.ChatID] = ok
		}
		if !ok {
			continue
		}

		result.Matched++
		if err := s.sender.Send(ctx, cb.ChatID, Message(cb.Birthday.Name)); err != nil {
			s.errors.Handle(ctx, apperrors.NewDeliveryError(cb.ChatID, err))
			result.Failed++
			continue
		}
		result.Sent++
	}

	return result
}

// isDue reports whether chatID is reminded at hour. Chats without a
// preference record follow the default hour.
func (s *Scanner) isDue(ctx context.Context, chatID string, hour int, chats map[string]struct{}) (bool, error) {
	if _, ok := chats[chatID]; ok {
		return true, nil
	}
	if hour != s.users.DefaultHour() {
		return false, nil
	}

	chatHour, err := s.users.ReminderHour(ctx, chatID)
	if err != nil {
		return false, err
	}
	return chatHour == hour, nil
}
