// Command botctl performs one-off operator tasks against the bot's
// configuration: webhook and menu management, a single reminder scan, and
// database migrations.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Proton-105/birthday-bot/internal/app"
	"github.com/Proton-105/birthday-bot/internal/bot"
	"github.com/Proton-105/birthday-bot/internal/database"
	"github.com/Proton-105/birthday-bot/internal/jobs"
	"github.com/Proton-105/birthday-bot/pkg/config"
	"github.com/Proton-105/birthday-bot/pkg/logger"
)

const usage = `usage: botctl <command> [flags]

commands:
  set-webhook <url>   point Telegram at url (defaults to bot.webhook_url)
  delete-webhook      remove the webhook so the bot can poll
  set-commands        publish the command menu
  remind [--at T]     run one reminder scan now, or for RFC 3339 time T
  enqueue-remind      push a reminder scan onto the asynq queue
  migrate             apply SQL migrations
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}

	log, _ := logger.New(cfg)
	slog.SetDefault(log)

	if err := run(ctx, cfg, log, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		log.Error("botctl failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	name, rest := args[0], args[1:]
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	at := flags.String("at", "", "scan time in RFC 3339 (default now)")
	if err := flags.Parse(rest); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	switch name {
	case "set-webhook":
		url := cfg.Bot.WebhookURL
		if flags.NArg() > 0 {
			url = flags.Arg(0)
		}
		gateway, err := bot.New(cfg.Bot, nil, log)
		if err != nil {
			return err
		}
		if err := gateway.SetWebhook(url); err != nil {
			return err
		}
		fmt.Fprintf(out, "webhook set to %s\n", url)
		return nil

	case "delete-webhook":
		gateway, err := bot.New(cfg.Bot, nil, log)
		if err != nil {
			return err
		}
		if err := gateway.DeleteWebhook(); err != nil {
			return err
		}
		fmt.Fprintln(out, "webhook deleted")
		return nil

	case "set-commands":
		gateway, err := bot.New(cfg.Bot, nil, log)
		if err != nil {
			return err
		}
		if err := gateway.SetCommands(); err != nil {
			return err
		}
		fmt.Fprintln(out, "commands set")
		return nil

	case "remind":
		when, err := parseAt(*at)
		if err != nil {
			return err
		}
		return remind(ctx, cfg, log, when, out)

	case "enqueue-remind":
		var scanAt time.Time
		if *at != "" {
			t, err := parseAt(*at)
			if err != nil {
				return err
			}
			scanAt = t
		}
		if cfg.Redis.Addr == "" {
			return errors.New("redis.addr is required to enqueue a reminder scan")
		}
		manager := jobs.NewManager(jobs.RedisOpt(cfg.Redis), log)
		defer manager.Close()

		info, err := jobs.EnqueueReminderScan(ctx, manager, scanAt, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "enqueued %s on %s\n", info.ID, info.Queue)
		return nil

	case "migrate":
		return migrate(ctx, cfg, log, out)
	}

	return fmt.Errorf("%w: unknown command %q", errUsage, name)
}

func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: --at: %v", errUsage, err)
	}
	return t, nil
}

// remind runs one scan. Per-chat failures are reported but do not fail the
// command.
func remind(ctx context.Context, cfg *config.Config, log *slog.Logger, at time.Time, out io.Writer) error {
	core, err := app.NewCore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = core.Shutdown.Execute(context.Background()) }()

	gateway, err := bot.New(cfg.Bot, nil, log)
	if err != nil {
		return err
	}

	result := core.NewScanner(gateway).Run(ctx, at)
	fmt.Fprintf(out, "matched=%d sent=%d failed=%d\n", result.Matched, result.Sent, result.Failed)
	return nil
}

func migrate(ctx context.Context, cfg *config.Config, log *slog.Logger, out io.Writer) error {
	sqlCfg := cfg.Storage.SQL
	db, err := database.Open(ctx, sqlCfg.Driver, sqlCfg.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.NewMigrator(db, log).Apply(ctx); err != nil {
		return err
	}

	fmt.Fprintln(out, "migrations applied")
	return nil
}
