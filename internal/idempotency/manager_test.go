package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestManager_RunsOnce(t *testing.T) {
	mr, client := setupTestRedis(t)
	m := NewManager(NewRedisStore(client, testLogger()), testLogger())
	ctx := context.Background()

	calls := 0
	op := func(context.Context) (string, error) {
		calls++
		return "Birthday correctly deleted", nil
	}

	key := UpdateKey("42", 7)
	first, err := m.Execute(ctx, key, time.Hour, op)
	require.NoError(t, err)
	assert.Equal(t, &Result{Reply: "Birthday correctly deleted"}, first)

	second, err := m.Execute(ctx, key, time.Hour, op)
	require.NoError(t, err)
	assert.Equal(t, &Result{Reply: "Birthday correctly deleted", FromCache: true}, second)
	assert.Equal(t, 1, calls)

	assert.False(t, mr.Exists(lockKey(key)))
	assert.Equal(t, time.Hour, mr.TTL(recordKey(key)))

	mr.FastForward(2 * time.Hour)
	_, err = m.Execute(ctx, key, time.Hour, op)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestManager_InProgressAndErrors(t *testing.T) {
	mr, client := setupTestRedis(t)
	m := NewManager(NewRedisStore(client, testLogger()), testLogger())
	ctx := context.Background()

	require.NoError(t, mr.Set(lockKey("busy"), StatusProcessing))
	_, err := m.Execute(ctx, "busy", time.Hour, func(context.Context) (string, error) { return "x", nil })
	assert.ErrorIs(t, err, ErrRequestInProgress)

	boom := errors.New("boom")
	_, err = m.Execute(ctx, "fails", time.Hour, func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(recordKey("fails")))
	assert.False(t, mr.Exists(lockKey("fails")))

	_, err = m.Execute(ctx, "nil", time.Hour, nil)
	assert.Error(t, err)
}

func TestUpdateKey(t *testing.T) {
	assert.Equal(t, UpdateKey("42", 7), UpdateKey("42", 7))
	assert.NotEqual(t, UpdateKey("42", 7), UpdateKey("42", 8))
	assert.Len(t, UpdateKey("42", 7), 64)
}
