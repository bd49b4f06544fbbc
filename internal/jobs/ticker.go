package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/Proton-105/birthday-bot/internal/reminder"
)

// ScanFunc runs one reminder scan for now.
type ScanFunc func(ctx context.Context, now time.Time) reminder.Result

// Ticker runs the scan in-process at the top of every hour. It is the
// scheduler used when no Redis is available for asynq.
type Ticker struct {
	scan  ScanFunc
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
	log   *slog.Logger
}

func NewTicker(scan ScanFunc, log *slog.Logger) *Ticker {
	if log == nil {
		log = slog.Default()
	}
	return &Ticker{scan: scan, now: time.Now, after: time.After, log: log}
}

// Run blocks until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) {
	t.log.InfoContext(ctx, "ticker: starting hourly reminder scans")

	for {
		now := t.now()
		wait := nextHour(now).Sub(now)

		select {
		case <-ctx.Done():
			t.log.InfoContext(ctx, "ticker: stopped")
			return
		case fired := <-t.after(wait):
			t.scan(ctx, fired)
		}
	}
}

func nextHour(now time.Time) time.Time {
	return now.Truncate(time.Hour).Add(time.Hour)
}
