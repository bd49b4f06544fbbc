package app

import (
	"context"
	"sync"
	"time"

	"github.com/Proton-105/birthday-bot/internal/bot"
	"github.com/Proton-105/birthday-bot/internal/command"
	jobhandlers "github.com/Proton-105/birthday-bot/internal/jobs/handlers"
	"github.com/Proton-105/birthday-bot/internal/reminder"
)

// serial runs command dispatch and reminder scans one at a time. The memory
// stores are not safe for concurrent use, and webhook requests, the ticker
// and the asynq worker all arrive on their own goroutines.
type serial struct {
	mu sync.Mutex
}

type dispatchFunc func(ctx context.Context, req command.Request) (string, error)

func (f dispatchFunc) Dispatch(ctx context.Context, req command.Request) (string, error) {
	return f(ctx, req)
}

type scanFunc func(ctx context.Context, now time.Time) reminder.Result

func (f scanFunc) Run(ctx context.Context, now time.Time) reminder.Result {
	return f(ctx, now)
}

func (s *serial) Dispatcher(next bot.Dispatcher) bot.Dispatcher {
	return dispatchFunc(func(ctx context.Context, req command.Request) (string, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return next.Dispatch(ctx, req)
	})
}

// Scanner holds the lock for the whole scan, so commands wait while
// reminders are delivered.
func (s *serial) Scanner(next jobhandlers.ScanRunner) jobhandlers.ScanRunner {
	return scanFunc(func(ctx context.Context, now time.Time) reminder.Result {
		s.mu.Lock()
		defer s.mu.Unlock()
		return next.Run(ctx, now)
	})
}
