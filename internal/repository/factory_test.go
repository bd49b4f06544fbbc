package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/birthday-bot/pkg/config"
	"github.com/Proton-105/birthday-bot/pkg/objectstore"
)

func TestUsersBackendFor(t *testing.T) {
	assert.Equal(t, "sql", UsersBackendFor(config.StorageConfig{Backend: "sql"}))
	assert.Equal(t, "memory", UsersBackendFor(config.StorageConfig{Backend: "object"}))
	assert.Equal(t, "redis", UsersBackendFor(config.StorageConfig{Backend: "object", UsersBackend: "redis"}))
}

func TestNewStores(t *testing.T) {
	ctx := context.Background()
	_, client := setupTestRedis(t)

	testCases := []struct {
		name        string
		storage     config.StorageConfig
		deps        Deps
		wantUsers   string
		wantErr     bool
		wantDBInUse bool
	}{
		{name: "memory", storage: config.StorageConfig{Backend: "memory"}, wantUsers: "memory"},
		{name: "redis", storage: config.StorageConfig{Backend: "redis"}, deps: Deps{Redis: client}, wantUsers: "redis"},
		{name: "redis without client", storage: config.StorageConfig{Backend: "redis"}, wantErr: true},
		{
			name: "object with users in redis",
			storage: config.StorageConfig{
				Backend:      "object",
				UsersBackend: "redis",
				Object:       config.ObjectConfig{Provider: "mem", Key: "birthdays.csv", OwnerChatID: ownerChat},
			},
			deps:      Deps{Redis: client},
			wantUsers: "redis",
		},
		{
			name: "object with injected bucket",
			storage: config.StorageConfig{
				Backend: "object",
				Object:  config.ObjectConfig{Provider: "s3", Key: "birthdays.csv", OwnerChatID: ownerChat},
			},
			deps:      Deps{Bucket: objectstore.NewMemBucket()},
			wantUsers: "memory",
		},
		{
			name: "sqlite opened from config",
			storage: config.StorageConfig{
				Backend: "sql",
				SQL:     config.SQLConfig{Driver: "sqlite", DSN: ":memory:", Migrate: true},
			},
			wantUsers:   "sql",
			wantDBInUse: true,
		},
		{name: "dynamodb with injected client", storage: config.StorageConfig{Backend: "dynamodb"}, deps: Deps{Dynamo: new(mockDynamo)}, wantUsers: "dynamodb"},
		{name: "unknown backend", storage: config.StorageConfig{Backend: "floppy"}, wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.Config{Storage: tc.storage}
			stores, err := NewStores(ctx, cfg, tc.deps, testLogger())
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = stores.Close() })

			assert.Equal(t, tc.wantUsers, stores.UsersBackend)
			assert.NotNil(t, stores.Birthdays)
			assert.NotNil(t, stores.Users)
			assert.Equal(t, tc.wantDBInUse, stores.DB != nil)
		})
	}
}

func TestNewStores_SQLRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{Storage: config.StorageConfig{
		Backend: "sql",
		SQL:     config.SQLConfig{Driver: "sqlite", DSN: ":memory:", Migrate: true},
	}}

	stores, err := NewStores(ctx, cfg, Deps{}, testLogger())
	require.NoError(t, err)
	defer stores.Close()

	require.NoError(t, stores.Birthdays.Store(ctx, ownerChat, mustBirthday(t, "Ana", "14/10")))
	require.NoError(t, stores.Users.UpdateReminderHour(ctx, ownerChat, 5))

	got, err := stores.Birthdays.Get(ctx, ownerChat, "ana")
	require.NoError(t, err)
	require.NotNil(t, got)

	u, err := stores.Users.Get(ctx, ownerChat)
	require.NoError(t, err)
	assert.Equal(t, 5, u.ReminderHour)
}
