package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Shutdown runs registered hooks one at a time in reverse registration
// order, so a component stops before the things it depends on.
type Shutdown struct {
	mu    sync.Mutex
	hooks []Hook
	log   *slog.Logger
}

// NewShutdown constructs a new Shutdown coordinator.
func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log}
}

// Register adds a named shutdown hook.
func (s *Shutdown) Register(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, Hook{Name: name, Fn: fn})
}

// Execute runs every hook even when earlier ones fail, and joins their errors.
// Hooks registered during Execute are not run.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.mu.Lock()
	hooks := append([]Hook(nil), s.hooks...)
	s.hooks = nil
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("shutdown sequence started", slog.Int("hook_count", len(hooks)))

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]

		s.log.Debug("running shutdown hook", slog.String("hook", h.Name))
		if err := h.Fn(ctx); err != nil {
			s.log.Error("shutdown hook failed", slog.String("hook", h.Name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
			continue
		}
		s.log.Debug("shutdown hook completed", slog.String("hook", h.Name))
	}

	s.log.Info("shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))
	return errors.Join(errs...)
}
