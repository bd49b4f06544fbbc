package command

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Proton-105/birthday-bot/internal/domain"
	apperrors "github.com/Proton-105/birthday-bot/internal/errors"
	"github.com/Proton-105/birthday-bot/internal/repository"
	"github.com/Proton-105/birthday-bot/internal/user"
)

// User-facing replies.
const (
	msgAddUsage          = "Invalid input. Please use /add <name> <dd/mm(/yyyy)>"
	msgInvalidDate       = "Invalid date format. Please use dd/mm or dd/mm/yyyy"
	msgGetUsage          = "Invalid input. Please use /get <name>"
	msgDeleteUsage       = "Invalid input. Please use /delete <name>"
	msgDeleted           = "Birthday correctly deleted"
	msgNoBirthdays       = "No birthdays found"
	msgInvalidDays       = "Invalid number of days. Please use /listupcoming <n>"
	msgDaysOutOfRange    = "Number of days must be between 0 and 365"
	msgInvalidHour       = "Invalid hour. Please use /setreminderhour <hour>"
	msgHourOutOfRange    = "Hour must be between 0 and 23"
	fmtBirthdaySet       = "Birthday for %s was correctly set"
	fmtNoBirthdayFor     = "No birthday found for %s"
	fmtNoUpcoming        = "No upcoming birthdays in the next %d days"
	fmtReminderHourSet   = "Reminder hour set to %d:00 UTC"
	fmtBirthdayListEntry = "%s - %s"
)

// Handlers implements the birthday commands for one store and user service.
type Handlers struct {
	birthdays repository.BirthdayStore
	users     *user.Service
	now       func() time.Time
	log       *slog.Logger
}

// NewHandlers wires command handlers to their dependencies.
func NewHandlers(birthdays repository.BirthdayStore, users *user.Service, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}

	return &Handlers{
		birthdays: birthdays,
		users:     users,
		now:       time.Now,
		log:       log,
	}
}

// Register adds every command handler to r.
func (h *Handlers) Register(r *Router) {
	r.Register(CommandStart, h.Start)
	r.Register(CommandAdd, h.Add)
	r.Register(CommandGet, h.Get)
	r.Register(CommandDelete, h.Delete)
	r.Register(CommandList, h.List)
	r.Register(CommandListUpcoming, h.ListUpcoming)
	r.Register(CommandSetReminderHour, h.SetReminderHour)
}

// Start records the chat's preference and replies with the help text.
func (h *Handlers) Start(ctx context.Context, req Request) (string, error) {
	if _, err := h.users.Register(ctx, req.ChatID, req.Sender); err != nil {
		return "", apperrors.NewStorageError(CommandStart, err)
	}
	return HelpText(), nil
}

// Add stores a birthday. The last token is the date and the rest the name.
func (h *Handlers) Add(ctx context.Context, req Request) (string, error) {
	tokens := strings.Fields(req.Args)
	if len(tokens) < 2 {
		return "", apperrors.NewValidationError(msgAddUsage)
	}

	name := strings.Join(tokens[:len(tokens)-1], " ")
	b, err := domain.NewBirthday(name, tokens[len(tokens)-1])
	if err != nil {
		return "", apperrors.NewValidationError(msgInvalidDate)
	}

	if err := h.birthdays.Store(ctx, req.ChatID, b); err != nil {
		return "", apperrors.NewStorageError(CommandAdd, err)
	}

	h.log.Debug("birthday stored", slog.String("chat_id", req.ChatID), slog.String("name", b.Name))
	return fmt.Sprintf(fmtBirthdaySet, b.Name), nil
}

// Get replies with the formatted date stored for a name.
func (h *Handlers) Get(ctx context.Context, req Request) (string, error) {
	name := normalizeName(req.Args)
	if name == "" {
		return "", apperrors.NewValidationError(msgGetUsage)
	}

	b, err := h.birthdays.Get(ctx, req.ChatID, name)
	if err != nil {
		return "", apperrors.NewStorageError(CommandGet, err)
	}
	if b == nil {
		return fmt.Sprintf(fmtNoBirthdayFor, name), nil
	}
	return b.Format(), nil
}

// Delete removes the birthday stored for a name.
func (h *Handlers) Delete(ctx context.Context, req Request) (string, error) {
	name := normalizeName(req.Args)
	if name == "" {
		return "", apperrors.NewValidationError(msgDeleteUsage)
	}

	removed, err := h.birthdays.Delete(ctx, req.ChatID, name)
	if err != nil {
		return "", apperrors.NewStorageError(CommandDelete, err)
	}
	if !removed {
		return fmt.Sprintf(fmtNoBirthdayFor, name), nil
	}
	return msgDeleted, nil
}

// List replies with every birthday of the chat.
func (h *Handlers) List(ctx context.Context, req Request) (string, error) {
	birthdays, err := h.birthdays.LoadByChat(ctx, req.ChatID)
	if err != nil {
		return "", apperrors.NewStorageError(CommandList, err)
	}
	if len(birthdays) == 0 {
		return msgNoBirthdays, nil
	}
	return formatList(birthdays), nil
}

// ListUpcoming replies with the birthdays of the next n days, n defaulting to
// two weeks.
func (h *Handlers) ListUpcoming(ctx context.Context, req Request) (string, error) {
	days := domain.DefaultUpcomingDays
	if req.Args != "" {
		n, err := strconv.Atoi(req.Args)
		if err != nil {
			return "", apperrors.NewValidationError(msgInvalidDays)
		}
		if n < 0 || n > domain.MaxUpcomingDays {
			return "", apperrors.NewValidationError(msgDaysOutOfRange)
		}
		days = n
	}

	birthdays, err := h.birthdays.LoadByChat(ctx, req.ChatID)
	if err != nil {
		return "", apperrors.NewStorageError(CommandListUpcoming, err)
	}

	upcoming := domain.Upcoming(birthdays, h.now().UTC(), days)
	if len(upcoming) == 0 {
		return fmt.Sprintf(fmtNoUpcoming, days), nil
	}
	return formatList(upcoming), nil
}

// SetReminderHour changes the UTC hour at which the chat is reminded.
func (h *Handlers) SetReminderHour(ctx context.Context, req Request) (string, error) {
	hour, err := strconv.Atoi(req.Args)
	if err != nil {
		return "", apperrors.NewValidationError(msgInvalidHour)
	}
	if domain.ValidateReminderHour(hour) != nil {
		return "", apperrors.NewValidationError(msgHourOutOfRange)
	}

	if err := h.users.SetReminderHour(ctx, req.ChatID, hour); err != nil {
		return "", apperrors.NewStorageError(CommandSetReminderHour, err)
	}
	return fmt.Sprintf(fmtReminderHourSet, hour), nil
}

func normalizeName(args string) string {
	return strings.Join(strings.Fields(args), " ")
}

func formatList(birthdays []domain.Birthday) string {
	lines := make([]string, 0, len(birthdays))
	for _, b := range birthdays {
		lines = append(lines, fmt.Sprintf(fmtBirthdayListEntry, b.Name, b.Format()))
	}
	return strings.Join(lines, "\n")
}
