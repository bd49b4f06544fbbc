// Package jobs schedules and runs the reminder scan.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/birthday-bot/pkg/config"
)

const TaskTypeReminderScan = "reminder:scan"

const QueueDefault = "default"

// ReminderScanPayload optionally pins the scan to a fixed instant. A zero At
// means the time the task is processed.
type ReminderScanPayload struct {
	At time.Time `json:"at,omitempty"`
}

// NewReminderScanTask builds a scan task. Scans are never retried; the next
// hour has its own.
func NewReminderScanTask(at time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(ReminderScanPayload{At: at.UTC()})
	if err != nil {
		return nil, fmt.Errorf("marshal reminder scan payload: %w", err)
	}

	return asynq.NewTask(TaskTypeReminderScan, payload, asynq.Queue(QueueDefault), asynq.MaxRetry(0)), nil
}

// ParseReminderScanPayload decodes a task payload. An empty payload is valid.
func ParseReminderScanPayload(data []byte) (ReminderScanPayload, error) {
	var payload ReminderScanPayload
	if len(data) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("unmarshal reminder scan payload: %w", err)
	}
	return payload, nil
}

// RedisOpt converts the redis section into asynq connection options.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
