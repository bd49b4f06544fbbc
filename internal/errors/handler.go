package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/birthday-bot/pkg/logger"
	"github.com/Proton-105/birthday-bot/pkg/metrics"
)

type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle logs err, reports it when severe, and returns the text to show the user.
func (h *Handler) Handle(ctx context.Context, err error) string {
	if err == nil {
		return ""
	}

	if ctx == nil {
		ctx = context.Background()
	}

	log := slog.Default()
	if h != nil && h.log != nil {
		log = h.log
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		attrs := []slog.Attr{
			slog.String("code", appErr.Code),
			slog.String("message", appErr.Message),
			slog.String("severity", string(appErr.Severity)),
		}
		if cause := appErr.Unwrap(); cause != nil {
			attrs = append(attrs, slog.String("cause", cause.Error()))
		}

		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			attrs = append(attrs, slog.String("correlation_id", correlationID))
		}

		level := slog.LevelError
		if appErr.Severity == SeverityLow {
			level = slog.LevelInfo
		}
		log.LogAttrs(ctx, level, "application error", attrs...)
		metrics.RecordError(appErr.Code, string(appErr.Severity))

		if h != nil && h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
			h.sendToSentry(err)
		}

		if appErr.UserMessage == "" {
			return GenericUserMessage
		}

		return appErr.UserMessage
	}

	attrs := []slog.Attr{
		slog.String("message", err.Error()),
		slog.String("severity", string(SeverityHigh)),
	}

	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	log.LogAttrs(ctx, slog.LevelError, "unknown error", attrs...)
	metrics.RecordError("unknown", string(SeverityHigh))

	if h != nil && h.sentryEnabled {
		h.sendToSentry(err)
	}

	return GenericUserMessage
}

func (h *Handler) sendToSentry(err error) {
	if err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		var appErr *AppError
		if errors.As(err, &appErr) && appErr != nil {
			if appErr.Code != "" {
				scope.SetTag("code", appErr.Code)
			}

			if appErr.Severity != "" {
				scope.SetTag("severity", string(appErr.Severity))
			}
		}

		sentry.CaptureException(err)
	})
}
