package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return m.client.EnqueueContext(ctx, task, opts...)
}

func (m *manager) Close() error {
	return m.client.Close()
}

// EnqueueReminderScan pushes a one-off scan for at (zero means processing time).
func EnqueueReminderScan(ctx context.Context, m Manager, at time.Time, log *slog.Logger) (*asynq.TaskInfo, error) {
	if log == nil {
		log = slog.Default()
	}

	task, err := NewReminderScanTask(at)
	if err != nil {
		return nil, err
	}

	info, err := m.Enqueue(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("enqueue reminder scan: %w", err)
	}

	log.InfoContext(ctx, "reminder scan enqueued", slog.String("task_id", info.ID), slog.String("queue", info.Queue))
	return info, nil
}
