package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), "test")
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.AppEnv)
	assert.Equal(t, "123:abc", cfg.Bot.Token)
	assert.Equal(t, "poll", cfg.Bot.Mode)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 2*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, 0, cfg.Reminder.DefaultHour)
	assert.Equal(t, "0 * * * *", cfg.Reminder.Cron)
	assert.Equal(t, "birthdays.csv", cfg.Storage.Object.Key)
}

func TestLoadFile_FileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
bot:
  token: from-file
storage:
  backend: sql
  sql:
    driver: sqlite
    dsn: "file:test.db"
reminder:
  default_hour: 9
`)
	t.Setenv("REMINDER_DEFAULT_HOUR", "7")

	cfg, _, err := LoadFile(path, "test")
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Bot.Token)
	assert.Equal(t, "sqlite", cfg.Storage.SQL.Driver)
	assert.Equal(t, "file:test.db", cfg.Storage.SQL.ConnectionString())
	assert.Equal(t, 7, cfg.Reminder.DefaultHour)
}

func TestLoadFile_ValidationErrors(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "missing token", body: "bot:\n  token: \"\"\n"},
		{name: "bad backend", body: "bot:\n  token: t\nstorage:\n  backend: floppy\n"},
		{name: "hour out of range", body: "bot:\n  token: t\nreminder:\n  default_hour: 24\n"},
		{name: "object without owner", body: "bot:\n  token: t\nstorage:\n  backend: object\n"},
		{name: "webhook without url", body: "bot:\n  token: t\n  mode: webhook\n"},
		{name: "redis backend without addr", body: "bot:\n  token: t\nstorage:\n  backend: redis\n"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := LoadFile(writeConfig(t, tc.body), "test")
			assert.Error(t, err)
		})
	}
}

func TestSQLConfig_ConnectionStringFromParts(t *testing.T) {
	c := SQLConfig{Host: "db", Port: "5432", User: "bot", Password: "pw", Name: "birthdays", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=bot password=pw dbname=birthdays sslmode=disable", c.ConnectionString())
}
