// Package logger builds the application's slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Proton-105/birthday-bot/pkg/config"
)

// New builds a logger from cfg. The returned LevelVar can be adjusted at
// runtime to change the minimum level without rebuilding the handler chain.
func New(cfg *config.Config) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(cfg.Logger.Level))

	var out io.Writer = os.Stdout
	if cfg.Logger.File.Path != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Logger.File.Path,
			MaxSize:    cfg.Logger.File.MaxSizeMB,
			MaxBackups: cfg.Logger.File.MaxBackups,
			MaxAge:     cfg.Logger.File.MaxAgeDays,
			Compress:   cfg.Logger.File.Compress,
		})
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Logger.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	if cfg.Sentry.Enabled {
		handler = NewFanoutHandler(handler, slogsentry.Option{Level: slog.LevelError}.NewSentryHandler())
	}

	log := slog.New(NewMaskingHandler(handler)).With(
		slog.String("app", "birthday-bot"),
		slog.String("env", cfg.AppEnv),
	)

	return log, level
}

// ParseLevel maps a config level name to a slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
