package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the birthday bot.
type Config struct {
	AppEnv    string          `mapstructure:"app_env"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Bot       BotConfig       `mapstructure:"bot"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type LoggerConfig struct {
	Level  string        `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string        `mapstructure:"format" validate:"oneof=json text"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig enables rotating file output when Path is set.
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"min=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"min=0"`
	Compress   bool   `mapstructure:"compress"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

type BotConfig struct {
	Token      string        `mapstructure:"token" validate:"required"`
	Mode       string        `mapstructure:"mode" validate:"oneof=poll webhook"`
	Timeout    time.Duration `mapstructure:"timeout"`
	WebhookURL string        `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Backend      string         `mapstructure:"backend" validate:"oneof=memory redis object sql dynamodb"`
	UsersBackend string         `mapstructure:"users_backend" validate:"omitempty,oneof=memory redis sql dynamodb"`
	Timeout      time.Duration  `mapstructure:"timeout"`
	// UserCacheTTL caches sql and dynamodb user records in Redis when positive.
	UserCacheTTL time.Duration  `mapstructure:"user_cache_ttl"`
	SQL          SQLConfig      `mapstructure:"sql"`
	Object       ObjectConfig   `mapstructure:"object"`
	DynamoDB     DynamoDBConfig `mapstructure:"dynamodb"`
}

type SQLConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	Migrate  bool   `mapstructure:"migrate"`
}

// ObjectConfig describes where the single-owner CSV object lives.
type ObjectConfig struct {
	Provider    string `mapstructure:"provider" validate:"oneof=s3 file bolt mem"`
	Bucket      string `mapstructure:"bucket"`
	Key         string `mapstructure:"key" validate:"required"`
	Dir         string `mapstructure:"dir"`
	BoltPath    string `mapstructure:"bolt_path"`
	OwnerChatID string `mapstructure:"owner_chat_id"`
}

type DynamoDBConfig struct {
	BirthdaysTable    string `mapstructure:"birthdays_table"`
	UsersTable        string `mapstructure:"users_table"`
	ReminderHourIndex string `mapstructure:"reminder_hour_index"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db" validate:"min=0"`
	PoolSize     int           `mapstructure:"pool_size" validate:"min=0"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

type ReminderConfig struct {
	DefaultHour int    `mapstructure:"default_hour" validate:"min=0,max=23"`
	Cron        string `mapstructure:"cron" validate:"required"`
}

type SchedulerConfig struct {
	Mode string `mapstructure:"mode" validate:"oneof=asynq ticker off"`
}

type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	PerChat   RateLimitRule `mapstructure:"per_chat"`
	Whitelist []string      `mapstructure:"whitelist"`
}

type RateLimitRule struct {
	Limit  int    `mapstructure:"limit" validate:"min=0"`
	Window string `mapstructure:"window"`
}

// ConnectionString returns the DSN for the SQL backend. An explicit DSN wins;
// otherwise a PostgreSQL DSN is assembled from the individual fields.
func (c SQLConfig) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// UsesRedis reports whether any configured component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Storage.Backend == "redis" ||
		c.Storage.UsersBackend == "redis" ||
		c.Scheduler.Mode == "asynq" ||
		(c.RateLimit.Enabled && c.Redis.Addr != "")
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "object":
		if c.Storage.Object.OwnerChatID == "" {
			return fmt.Errorf("storage.object.owner_chat_id is required for the object backend")
		}
		if c.Storage.Object.Provider == "s3" && c.Storage.Object.Bucket == "" {
			return fmt.Errorf("storage.object.bucket is required for the s3 provider")
		}
	case "sql":
		if c.Storage.SQL.DSN == "" && c.Storage.SQL.Host == "" {
			return fmt.Errorf("storage.sql.dsn or storage.sql.host is required for the sql backend")
		}
	case "dynamodb":
		if c.Storage.DynamoDB.BirthdaysTable == "" || c.Storage.DynamoDB.UsersTable == "" {
			return fmt.Errorf("storage.dynamodb tables are required for the dynamodb backend")
		}
	}

	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required by the configured backends or scheduler")
	}

	return nil
}
