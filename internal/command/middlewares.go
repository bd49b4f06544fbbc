package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	apperrors "github.com/Proton-105/birthday-bot/internal/errors"
	"github.com/Proton-105/birthday-bot/internal/idempotency"
	"github.com/Proton-105/birthday-bot/internal/ratelimit"
	"github.com/Proton-105/birthday-bot/pkg/logger"
	"github.com/Proton-105/birthday-bot/pkg/metrics"
)

// RecoveryMiddleware turns a handler panic into the generic error reply.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler) Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (reply string, err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler",
						slog.String("command", req.Command),
						slog.String("chat_id", req.ChatID),
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)

					reply = apperrors.GenericUserMessage
					if errHandler != nil {
						reply = errHandler.Handle(ctx, fmt.Errorf("panic recovered: %v", r))
					}
					err = nil
				}
			}()

			return next(ctx, req)
		}
	}
}

// ErrorHandlingMiddleware replaces handler errors with the user message chosen
// by the central error handler.
func ErrorHandlingMiddleware(errHandler *apperrors.Handler) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (string, error) {
			reply, err := next(ctx, req)
			if err == nil {
				return reply, nil
			}
			return errHandler.Handle(ctx, err), nil
		}
	}
}

// LoggingMiddleware logs every handled command.
func LoggingMiddleware(log *slog.Logger) Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (string, error) {
			start := time.Now()
			reply, err := next(ctx, req)

			attrs := []slog.Attr{
				slog.String("chat_id", req.ChatID),
				slog.String("command", req.Command),
				slog.Duration("duration", time.Since(start)),
			}
			if id := logger.CorrelationIDFromContext(ctx); id != "" {
				attrs = append(attrs, slog.String("correlation_id", id))
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			log.LogAttrs(ctx, slog.LevelInfo, "handled command", attrs...)

			return reply, err
		}
	}
}

// RateLimitMiddleware rejects commands from chats over their per-chat limit.
func RateLimitMiddleware(guard *ratelimit.Guard) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (string, error) {
			if !guard.Allow(ctx, req.ChatID) {
				return "", apperrors.NewRateLimitError(req.ChatID)
			}
			return next(ctx, req)
		}
	}
}

// MetricsMiddleware reports command counts and latency to Prometheus.
func MetricsMiddleware(next Handler) Handler {
	return func(ctx context.Context, req Request) (string, error) {
		start := time.Now()
		reply, err := next(ctx, req)

		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordCommand(metricLabel(req.Command), status, time.Since(start))

		return reply, err
	}
}

func metricLabel(cmd string) string {
	for _, d := range Descriptions {
		if d.Name == cmd {
			return cmd
		}
	}
	return "unknown"
}

// IdempotencyMiddleware answers a redelivered message with the reply of its
// first delivery. Requests without a message id pass through; store failures
// fail open.
func IdempotencyMiddleware(manager idempotency.Manager, ttl time.Duration, log *slog.Logger) Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, req Request) (string, error) {
			if req.MessageID == 0 {
				return next(ctx, req)
			}

			ran := false
			result, err := manager.Execute(ctx, idempotency.UpdateKey(req.ChatID, req.MessageID), ttl,
				func(ctx context.Context) (string, error) {
					ran = true
					return next(ctx, req)
				})
			switch {
			case err != nil && ran:
				return "", err
			case err == nil:
				if result.FromCache {
					log.Info("duplicate update answered from cache",
						slog.String("chat_id", req.ChatID),
						slog.Int("message_id", req.MessageID),
					)
				}
				return result.Reply, nil
			case errors.Is(err, idempotency.ErrRequestInProgress):
				log.Info("duplicate update dropped while in progress",
					slog.String("chat_id", req.ChatID),
					slog.Int("message_id", req.MessageID),
				)
				return "", nil
			default:
				log.Warn("idempotency store unavailable", slog.String("chat_id", req.ChatID), slog.Any("error", err))
				return next(ctx, req)
			}
		}
	}
}

// RouterOptions enables the optional middlewares of the default chain.
type RouterOptions struct {
	Guard          *ratelimit.Guard
	Idempotency    idempotency.Manager
	IdempotencyTTL time.Duration
}

// NewDefaultRouter builds the router with the standard middleware chain and
// every command registered.
func NewDefaultRouter(h *Handlers, errHandler *apperrors.Handler, opts RouterOptions, log *slog.Logger) *Router {
	r := NewRouter(log)
	r.Use(RecoveryMiddleware(log, errHandler))
	if opts.Idempotency != nil {
		r.Use(IdempotencyMiddleware(opts.Idempotency, opts.IdempotencyTTL, log))
	}
	r.Use(ErrorHandlingMiddleware(errHandler))
	r.Use(LoggingMiddleware(log))
	if opts.Guard != nil {
		r.Use(RateLimitMiddleware(opts.Guard))
	}
	r.Use(MetricsMiddleware)
	h.Register(r)
	return r
}
