package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	cron           string
	log            *slog.Logger
}

// NewScheduler creates a scheduler that enqueues a reminder scan on every
// match of cron, evaluated in UTC.
func NewScheduler(redisOpt asynq.RedisConnOpt, cron string, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.WarnLevel,
		}),
		cron: cron,
		log:  log,
	}
}

func (s *scheduler) RegisterTasks() error {
	task, err := NewReminderScanTask(time.Time{})
	if err != nil {
		return err
	}

	entryID, err := s.asynqScheduler.Register(s.cron, task)
	if err != nil {
		return fmt.Errorf("register reminder scan %q: %w", s.cron, err)
	}

	s.log.InfoContext(context.Background(), "scheduler: registered reminder scan",
		slog.String("cron", s.cron),
		slog.String("entry_id", entryID),
	)
	return nil
}

func (s *scheduler) Run() {
	s.log.InfoContext(context.Background(), "scheduler: starting")

	go func() {
		if err := s.asynqScheduler.Run(); err != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", slog.Any("error", err))
		}
	}()
}

func (s *scheduler) Shutdown() {
	s.log.InfoContext(context.Background(), "scheduler: shutting down")
	s.asynqScheduler.Shutdown()
}
