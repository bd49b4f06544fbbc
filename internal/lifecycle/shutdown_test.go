package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdown_RunsInReverseOrder(t *testing.T) {
	s := NewShutdown(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var order []string
	record := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return err
		}
	}

	boom := errors.New("boom")
	s.Register("redis", record("redis", nil))
	s.Register("worker", record("worker", boom))
	s.Register("http", record("http", nil))
	s.Register("nil", nil)
	s.Register("closer", Closer(func() error { order = append(order, "closer"); return nil }))

	err := s.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "worker")
	assert.Equal(t, []string{"closer", "http", "worker", "redis"}, order)

	order = nil
	assert.NoError(t, s.Execute(context.Background()))
	assert.Empty(t, order)
}
