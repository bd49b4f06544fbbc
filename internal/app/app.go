// Package app wires configuration, storage, the telegram gateway, the
// reminder scheduler and the HTTP server into a running bot.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"

	"github.com/Proton-105/birthday-bot/internal/bot"
	"github.com/Proton-105/birthday-bot/internal/command"
	apperrors "github.com/Proton-105/birthday-bot/internal/errors"
	"github.com/Proton-105/birthday-bot/internal/health"
	"github.com/Proton-105/birthday-bot/internal/idempotency"
	"github.com/Proton-105/birthday-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/birthday-bot/internal/jobs/handlers"
	"github.com/Proton-105/birthday-bot/internal/lifecycle"
	"github.com/Proton-105/birthday-bot/internal/middleware"
	"github.com/Proton-105/birthday-bot/internal/ratelimit"
	"github.com/Proton-105/birthday-bot/internal/reminder"
	"github.com/Proton-105/birthday-bot/internal/repository"
	"github.com/Proton-105/birthday-bot/internal/user"
	"github.com/Proton-105/birthday-bot/internal/usercache"
	"github.com/Proton-105/birthday-bot/pkg/config"
	"github.com/Proton-105/birthday-bot/pkg/graceful"
	"github.com/Proton-105/birthday-bot/pkg/logger"
	pkgredis "github.com/Proton-105/birthday-bot/pkg/redis"
)

const (
	SchedulerAsynq  = "asynq"
	SchedulerTicker = "ticker"
	SchedulerOff    = "off"

	limiterCleanupInterval = time.Minute
	idempotencyTTL         = 24 * time.Hour
)

// Core holds what both the bot process and the operator CLI need.
type Core struct {
	Config     *config.Config
	Log        *slog.Logger
	Redis      *pkgredis.Client
	Stores     *repository.Stores
	Users      *user.Service
	ErrHandler *apperrors.Handler
	Shutdown   *lifecycle.Shutdown
}

// NewCore opens Redis when needed and builds the stores. Resources are
// registered on Core.Shutdown.
func NewCore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Core, error) {
	if log == nil {
		log = slog.Default()
	}

	c := &Core{
		Config:     cfg,
		Log:        log,
		ErrHandler: apperrors.NewHandler(log, cfg.Sentry.Enabled),
		Shutdown:   lifecycle.NewShutdown(log),
	}

	flush, err := logger.InitSentry(cfg.Sentry, cfg.AppEnv)
	if err != nil {
		return nil, err
	}
	c.Shutdown.Register("sentry", func(context.Context) error {
		flush()
		return nil
	})

	var deps repository.Deps
	if cfg.UsesRedis() {
		client, err := pkgredis.New(ctx, pkgredis.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return nil, err
		}
		c.Redis = client
		c.Shutdown.Register("redis", lifecycle.Closer(client.Close))
		deps.Redis = client
	}

	stores, err := repository.NewStores(ctx, cfg, deps, log)
	if err != nil {
		_ = c.Shutdown.Execute(ctx)
		return nil, err
	}
	c.Stores = stores
	c.Shutdown.Register("stores", lifecycle.Closer(stores.Close))

	users := stores.Users
	if c.Redis != nil && cfg.Storage.UserCacheTTL > 0 && stores.UsersBackend != "memory" && stores.UsersBackend != "redis" {
		users = usercache.NewStore(users, c.Redis, cfg.Storage.UserCacheTTL, log)
	}
	c.Users = user.NewService(users, cfg.Reminder.DefaultHour, log)
	return c, nil
}

// NewScanner builds the reminder scanner delivering through sender.
func (c *Core) NewScanner(sender reminder.Sender) *reminder.Scanner {
	return reminder.NewScanner(c.Stores.Birthdays, c.Users, sender, c.ErrHandler, c.Log)
}

// App is the long-running bot process.
type App struct {
	*Core

	viper   *viper.Viper
	level   *slog.LevelVar
	serial  serial
	gateway *bot.Gateway
	scanner jobhandlers.ScanRunner
	checker *health.Checker
	server  *graceful.Server
}

// New builds the bot process. level is adjusted when the config file changes.
func New(ctx context.Context, cfg *config.Config, v *viper.Viper, log *slog.Logger, level *slog.LevelVar) (*App, error) {
	core, err := NewCore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{Core: core, viper: v, level: level}

	handlers := command.NewHandlers(core.Stores.Birthdays, core.Users, log)
	opts := command.RouterOptions{Guard: a.rateLimitGuard(ctx)}
	if core.Redis != nil {
		opts.Idempotency = idempotency.NewManager(idempotency.NewRedisStore(core.Redis, log), log)
		opts.IdempotencyTTL = idempotencyTTL
	}
	router := command.NewDefaultRouter(handlers, core.ErrHandler, opts, log)

	gateway, err := bot.New(cfg.Bot, a.serial.Dispatcher(router), log)
	if err != nil {
		_ = core.Shutdown.Execute(ctx)
		return nil, err
	}
	a.gateway = gateway
	a.scanner = a.serial.Scanner(core.NewScanner(gateway))

	a.checker = health.NewChecker(log)
	a.checker.AddCheck("telegram", gateway)
	if core.Redis != nil {
		a.checker.AddCheck("redis", health.NewRedisChecker(core.Redis))
	}
	if core.Stores.DB != nil {
		a.checker.AddCheck("sql", health.NewDBChecker(core.Stores.DB))
	}

	a.server = graceful.NewServer(log, &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}, cfg.Server.ShutdownTimeout)

	return a, nil
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", a.checker.Handler())
	mux.Handle("/metrics", promhttp.Handler())
	if wh := a.gateway.WebhookHandler(); wh != nil {
		mux.Handle("/webhook", wh)
	}
	return middleware.New(a.Log)(mux)
}

// rateLimitGuard returns nil when rate limiting is disabled. With Redis the
// limit is shared across processes and falls back to memory on errors.
func (a *App) rateLimitGuard(ctx context.Context) *ratelimit.Guard {
	cfg := a.Config.RateLimit
	if !cfg.Enabled {
		return nil
	}

	rules := ratelimit.NewRules(cfg)
	maxAge := rules.MaxAge()

	memory := ratelimit.NewMemoryLimiter(a.Log)
	go memory.Run(ctx, limiterCleanupInterval, maxAge)

	var limiter ratelimit.Limiter = memory
	if a.Redis != nil {
		limiter = ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(a.Redis, a.Log), memory, a.Log)
		go ratelimit.NewCleaner(a.Redis, a.Log, limiterCleanupInterval, maxAge).Run(ctx)
	}

	return ratelimit.NewGuard(limiter, rules, a.Log)
}

// Run starts every component and blocks until ctx is cancelled, then shuts
// down in reverse start order.
func (a *App) Run(ctx context.Context) error {
	a.Log.Info("starting birthday bot",
		slog.String("env", a.Config.AppEnv),
		slog.String("mode", a.Config.Bot.Mode),
		slog.String("scheduler", a.Config.Scheduler.Mode),
		slog.String("addr", a.Config.Server.Addr),
	)

	a.watchConfig()

	if err := a.startScheduler(ctx); err != nil {
		_ = a.Shutdown.Execute(context.Background())
		return err
	}

	if err := a.server.Start(); err != nil {
		_ = a.Shutdown.Execute(context.Background())
		return err
	}
	a.Shutdown.Register("http", a.server.Shutdown)

	go a.gateway.Start()
	a.Shutdown.Register("telegram", func(context.Context) error {
		a.gateway.Stop()
		return nil
	})

	<-ctx.Done()
	a.Log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown.Execute(shutdownCtx)
}

func (a *App) startScheduler(ctx context.Context) error {
	switch a.Config.Scheduler.Mode {
	case SchedulerAsynq:
		opt := jobs.RedisOpt(a.Config.Redis)

		worker := jobs.NewWorker(opt, a.Log)
		worker.RegisterHandler(jobs.TaskTypeReminderScan, jobhandlers.NewReminderScanHandler(a.scanner, a.Log))
		if err := worker.Start(); err != nil {
			return fmt.Errorf("start jobs worker: %w", err)
		}
		a.Shutdown.Register("worker", func(context.Context) error {
			worker.Shutdown()
			return nil
		})

		scheduler := jobs.NewScheduler(opt, a.Config.Reminder.Cron, a.Log)
		if err := scheduler.RegisterTasks(); err != nil {
			return err
		}
		scheduler.Run()
		a.Shutdown.Register("scheduler", func(context.Context) error {
			scheduler.Shutdown()
			return nil
		})
	case SchedulerTicker:
		tickerCtx, stop := context.WithCancel(ctx)
		go jobs.NewTicker(a.scanner.Run, a.Log).Run(tickerCtx)
		a.Shutdown.Register("ticker", func(context.Context) error {
			stop()
			return nil
		})
	case SchedulerOff:
		a.Log.Info("reminder scheduling disabled")
	default:
		return fmt.Errorf("unknown scheduler mode %q", a.Config.Scheduler.Mode)
	}
	return nil
}

// watchConfig hot-reloads the log level when the config file changes.
func (a *App) watchConfig() {
	if a.viper == nil || a.level == nil {
		return
	}
	path := a.viper.ConfigFileUsed()
	if _, err := os.Stat(path); err != nil {
		return
	}

	config.Watch(a.viper, func(cfg *config.Config) {
		level := logger.ParseLevel(cfg.Logger.Level)
		if level != a.level.Level() {
			a.level.Set(level)
			a.Log.Info("log level changed", slog.String("level", level.String()))
		}
	}, func(err error) {
		a.Log.Warn("ignoring invalid config change", slog.Any("error", err))
	})
	a.Log.Debug("watching config file", slog.String("path", path))
}
