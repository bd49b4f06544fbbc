package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Proton-105/birthday-bot/internal/app"
	"github.com/Proton-105/birthday-bot/pkg/config"
	"github.com/Proton-105/birthday-bot/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}

	log, level := logger.New(cfg)
	slog.SetDefault(log)

	application, err := app.New(ctx, cfg, v, log, level)
	if err != nil {
		log.Error("app init failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		log.Error("app shutdown finished with errors", slog.Any("error", err))
		os.Exit(1)
	}
}
