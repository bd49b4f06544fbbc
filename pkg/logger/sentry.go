package logger

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/birthday-bot/pkg/config"
)

const sentryFlushTimeout = 2 * time.Second

// InitSentry configures the global Sentry hub used by the error handler and
// the slog-sentry handler. The returned func flushes buffered events; it is a
// no-op when Sentry is disabled.
func InitSentry(cfg config.SentryConfig, appEnv string) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}

	env := cfg.Environment
	if env == "" {
		env = appEnv
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      env,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, fmt.Errorf("init sentry: %w", err)
	}

	return func() { sentry.Flush(sentryFlushTimeout) }, nil
}
