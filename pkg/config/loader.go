// Package config provides configuration loading and validation utilities.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads .env files, ./configs/{APP_ENV}.yaml and environment variables,
// validates the result, and returns it with the viper instance backing it.
func Load() (*Config, *viper.Viper, error) {
	// missing env files are fine; the process environment still applies
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	return LoadFile(fmt.Sprintf("./configs/%s.yaml", env), env)
}

// LoadFile is Load with an explicit config path. A missing file is not an error.
func LoadFile(path, env string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	cfg.AppEnv = env

	return cfg, v, nil
}

// Watch re-decodes the config whenever the file changes and hands the valid
// result to onChange. Invalid edits are reported through onError.
func Watch(v *viper.Viper, onChange func(*Config), onError func(error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err := cfg.validateStorage(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.file.path", "")
	v.SetDefault("logger.file.max_size_mb", 50)
	v.SetDefault("logger.file.max_backups", 5)
	v.SetDefault("logger.file.max_age_days", 30)
	v.SetDefault("logger.file.compress", true)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("bot.token", "")
	v.SetDefault("bot.mode", "poll")
	v.SetDefault("bot.timeout", 10*time.Second)
	v.SetDefault("bot.webhook_url", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.users_backend", "")
	v.SetDefault("storage.timeout", 2*time.Second)
	v.SetDefault("storage.user_cache_ttl", 0)
	v.SetDefault("storage.sql.driver", "postgres")
	v.SetDefault("storage.sql.dsn", "")
	v.SetDefault("storage.sql.host", "")
	v.SetDefault("storage.sql.port", "5432")
	v.SetDefault("storage.sql.user", "")
	v.SetDefault("storage.sql.password", "")
	v.SetDefault("storage.sql.name", "birthdays")
	v.SetDefault("storage.sql.sslmode", "disable")
	v.SetDefault("storage.sql.migrate", true)
	v.SetDefault("storage.object.provider", "file")
	v.SetDefault("storage.object.bucket", "")
	v.SetDefault("storage.object.key", "birthdays.csv")
	v.SetDefault("storage.object.dir", "./data")
	v.SetDefault("storage.object.bolt_path", "./data/birthdays.db")
	v.SetDefault("storage.object.owner_chat_id", "")
	v.SetDefault("storage.dynamodb.birthdays_table", "")
	v.SetDefault("storage.dynamodb.users_table", "")
	v.SetDefault("storage.dynamodb.reminder_hour_index", "ReminderHourIndex")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 2*time.Second)
	v.SetDefault("redis.read_timeout", 2*time.Second)
	v.SetDefault("redis.write_timeout", 2*time.Second)

	v.SetDefault("aws.region", "sa-east-1")
	v.SetDefault("aws.endpoint", "")

	v.SetDefault("reminder.default_hour", 0)
	v.SetDefault("reminder.cron", "0 * * * *")

	v.SetDefault("scheduler.mode", "ticker")

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.per_chat.limit", 20)
	v.SetDefault("ratelimit.per_chat.window", "1m")
	v.SetDefault("ratelimit.whitelist", []string{})
}
