package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Proton-105/birthday-bot/pkg/config"
)

// Rules encapsulates configured rate limits and helper methods.
type Rules struct {
	config    config.RateLimitConfig
	whitelist map[string]struct{}
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	whitelist := make(map[string]struct{}, len(cfg.Whitelist))
	for _, id := range cfg.Whitelist {
		whitelist[id] = struct{}{}
	}
	return &Rules{config: cfg, whitelist: whitelist}
}

// IsWhitelisted returns true if the chat bypasses rate limits.
func (r *Rules) IsWhitelisted(chatID string) bool {
	_, ok := r.whitelist[chatID]
	return ok
}

// PerChatLimit returns the per-chat rate limiting rule.
func (r *Rules) PerChatLimit() (int, time.Duration, error) {
	return parseRule(r.config.PerChat)
}

// MaxAge is how long cleaners keep window entries: the configured window, and
// never less than a minute. An unparsable window keeps entries a minute.
func (r *Rules) MaxAge() time.Duration {
	_, window, err := r.PerChatLimit()
	if err != nil {
		return time.Minute
	}
	return max(window, time.Minute)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	return rule.Limit, window, nil
}

// Guard applies Rules through a Limiter. Limiter and rule errors fail open.
type Guard struct {
	limiter Limiter
	rules   *Rules
	log     *slog.Logger
}

func NewGuard(limiter Limiter, rules *Rules, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}
	return &Guard{limiter: limiter, rules: rules, log: log}
}

// Allow reports whether chatID may issue another command now.
func (g *Guard) Allow(ctx context.Context, chatID string) bool {
	if g == nil || g.limiter == nil || g.rules == nil || g.rules.IsWhitelisted(chatID) {
		return true
	}

	limit, window, err := g.rules.PerChatLimit()
	if err != nil {
		g.log.Error("failed to load per-chat rate limit", slog.String("chat_id", chatID), slog.Any("error", err))
		return true
	}

	result, err := g.limiter.Check(ctx, ChatKey(chatID), limit, window)
	if err != nil {
		g.log.Warn("rate limiter error", slog.String("chat_id", chatID), slog.Any("error", err))
		return true
	}

	if !result.Allowed {
		g.log.Warn("rate limit exceeded",
			slog.String("chat_id", chatID),
			slog.Duration("retry_after", result.RetryAfter(time.Now())),
		)
	}
	return result.Allowed
}
