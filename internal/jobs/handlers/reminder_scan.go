// Package handlers holds the asynq task handlers.
package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/birthday-bot/internal/jobs"
	"github.com/Proton-105/birthday-bot/internal/reminder"
)

// ScanRunner runs one reminder scan.
type ScanRunner interface {
	Run(ctx context.Context, now time.Time) reminder.Result
}

type ReminderScanHandler struct {
	scanner ScanRunner
	now     func() time.Time
	log     *slog.Logger
}

func NewReminderScanHandler(scanner ScanRunner, log *slog.Logger) *ReminderScanHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ReminderScanHandler{scanner: scanner, now: time.Now, log: log}
}

// ProcessTask runs the scan and always reports success: per-chat failures have
// been logged by the scanner and a retry would send duplicates.
func (h *ReminderScanHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	at := h.now()

	payload, err := jobs.ParseReminderScanPayload(t.Payload())
	if err != nil {
		h.log.ErrorContext(ctx, "reminder scan: failed to decode payload, using current time",
			slog.String("task_type", t.Type()),
			slog.Any("error", err),
		)
	} else if !payload.At.IsZero() {
		at = payload.At
	}

	attrs := []any{slog.String("task_type", t.Type()), slog.Time("at", at.UTC())}
	if id, ok := asynq.GetTaskID(ctx); ok {
		attrs = append(attrs, slog.String("task_id", id))
	}
	h.log.InfoContext(ctx, "running reminder scan", attrs...)

	h.scanner.Run(ctx, at)
	return nil
}
