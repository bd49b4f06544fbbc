package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/birthday-bot/internal/database"
	"github.com/Proton-105/birthday-bot/pkg/awsutil"
	"github.com/Proton-105/birthday-bot/pkg/config"
	"github.com/Proton-105/birthday-bot/pkg/objectstore"
)

const defaultTimeout = 2 * time.Second

// Deps carries connections owned by the caller. Nil fields are opened from
// config when a backend needs them, and closed by Stores.Close.
type Deps struct {
	Redis  goredis.Cmdable
	DB     *sql.DB
	Dynamo DynamoAPI
	Bucket objectstore.Bucket
}

// Stores is the pair of stores selected by configuration.
type Stores struct {
	Birthdays    BirthdayStore
	Users        UserStore
	Backend      string
	UsersBackend string
	// DB is set when a SQL backend is in use, for health checks.
	DB *sql.DB

	closers []func() error
}

// Close releases connections opened by NewStores.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type birthdayBackend func(ctx context.Context, b *builder) (BirthdayStore, error)

type userBackend func(ctx context.Context, b *builder) (UserStore, error)

var birthdayBackends = map[string]birthdayBackend{
	"memory": func(context.Context, *builder) (BirthdayStore, error) {
		return NewMemoryBirthdayStore(), nil
	},
	"redis": func(_ context.Context, b *builder) (BirthdayStore, error) {
		client, err := b.redis()
		if err != nil {
			return nil, err
		}
		return NewRedisBirthdayStore(client, b.log), nil
	},
	"object": func(ctx context.Context, b *builder) (BirthdayStore, error) {
		bucket, err := b.bucket(ctx)
		if err != nil {
			return nil, err
		}
		obj := b.cfg.Storage.Object
		return NewObjectBirthdayStore(bucket, obj.Key, obj.OwnerChatID), nil
	},
	"sql": func(ctx context.Context, b *builder) (BirthdayStore, error) {
		db, err := b.sqlDB(ctx)
		if err != nil {
			return nil, err
		}
		return NewSQLBirthdayStore(db, b.cfg.Storage.SQL.Driver), nil
	},
	"dynamodb": func(ctx context.Context, b *builder) (BirthdayStore, error) {
		client, err := b.dynamo(ctx)
		if err != nil {
			return nil, err
		}
		return NewDynamoBirthdayStore(client, b.cfg.Storage.DynamoDB.BirthdaysTable), nil
	},
}

var userBackends = map[string]userBackend{
	"memory": func(context.Context, *builder) (UserStore, error) {
		return NewMemoryUserStore(), nil
	},
	"redis": func(_ context.Context, b *builder) (UserStore, error) {
		client, err := b.redis()
		if err != nil {
			return nil, err
		}
		return NewRedisUserStore(client, b.log), nil
	},
	"sql": func(ctx context.Context, b *builder) (UserStore, error) {
		db, err := b.sqlDB(ctx)
		if err != nil {
			return nil, err
		}
		return NewSQLUserStore(db, b.cfg.Storage.SQL.Driver), nil
	},
	"dynamodb": func(ctx context.Context, b *builder) (UserStore, error) {
		client, err := b.dynamo(ctx)
		if err != nil {
			return nil, err
		}
		dyn := b.cfg.Storage.DynamoDB
		return NewDynamoUserStore(client, dyn.UsersTable, dyn.ReminderHourIndex), nil
	},
}

// UsersBackendFor returns the user store backend paired with cfg. The object
// backend has no user variant and falls back to memory.
func UsersBackendFor(cfg config.StorageConfig) string {
	if cfg.UsersBackend != "" {
		return cfg.UsersBackend
	}
	if cfg.Backend == "object" {
		return "memory"
	}
	return cfg.Backend
}

// NewStores builds the birthday and user stores named by cfg.Storage.
func NewStores(ctx context.Context, cfg *config.Config, deps Deps, log *slog.Logger) (*Stores, error) {
	if log == nil {
		log = slog.Default()
	}

	b := &builder{cfg: cfg, deps: deps, log: log}
	stores := &Stores{
		Backend:      cfg.Storage.Backend,
		UsersBackend: UsersBackendFor(cfg.Storage),
	}

	newBirthdays, ok := birthdayBackends[stores.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown storage backend %q", stores.Backend)
	}
	newUsers, ok := userBackends[stores.UsersBackend]
	if !ok {
		return nil, fmt.Errorf("unknown users backend %q", stores.UsersBackend)
	}

	birthdays, err := newBirthdays(ctx, b)
	if err != nil {
		_ = b.close()
		return nil, fmt.Errorf("build %s birthday store: %w", stores.Backend, err)
	}
	users, err := newUsers(ctx, b)
	if err != nil {
		_ = b.close()
		return nil, fmt.Errorf("build %s user store: %w", stores.UsersBackend, err)
	}

	timeout := cfg.Storage.Timeout
	stores.Birthdays = InstrumentBirthdays(birthdays, stores.Backend, timeout, log)
	stores.Users = InstrumentUsers(users, stores.UsersBackend, timeout, log)
	stores.DB = b.deps.DB
	stores.closers = b.closers

	log.Info("storage initialized",
		slog.String("backend", stores.Backend),
		slog.String("users_backend", stores.UsersBackend),
	)
	return stores, nil
}

type builder struct {
	cfg     *config.Config
	deps    Deps
	log     *slog.Logger
	closers []func() error
}

func (b *builder) close() error {
	s := &Stores{closers: b.closers}
	return s.Close()
}

func (b *builder) redis() (goredis.Cmdable, error) {
	if b.deps.Redis == nil {
		return nil, errors.New("redis client is not configured")
	}
	return b.deps.Redis, nil
}

func (b *builder) sqlDB(ctx context.Context) (*sql.DB, error) {
	if b.deps.DB != nil {
		return b.deps.DB, nil
	}

	sqlCfg := b.cfg.Storage.SQL
	timeout := b.cfg.Storage.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	openCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := database.Open(openCtx, sqlCfg.Driver, sqlCfg.ConnectionString())
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, db.Close)

	if sqlCfg.Migrate {
		if err := database.NewMigrator(db, b.log).Apply(ctx); err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	b.deps.DB = db
	return db, nil
}

func (b *builder) awsOptions() awsutil.Options {
	return awsutil.Options{
		Region:   b.cfg.AWS.Region,
		Timeout:  b.cfg.Storage.Timeout,
		Endpoint: b.cfg.AWS.Endpoint,
	}
}

func (b *builder) dynamo(ctx context.Context) (DynamoAPI, error) {
	if b.deps.Dynamo != nil {
		return b.deps.Dynamo, nil
	}

	opts := b.awsOptions()
	awsCfg, err := awsutil.LoadConfig(ctx, opts)
	if err != nil {
		return nil, err
	}

	b.deps.Dynamo = awsutil.NewDynamoDBClient(awsCfg, opts.Endpoint)
	return b.deps.Dynamo, nil
}

func (b *builder) bucket(ctx context.Context) (objectstore.Bucket, error) {
	if b.deps.Bucket != nil {
		return b.deps.Bucket, nil
	}

	obj := b.cfg.Storage.Object
	switch obj.Provider {
	case "s3":
		opts := b.awsOptions()
		awsCfg, err := awsutil.LoadConfig(ctx, opts)
		if err != nil {
			return nil, err
		}
		b.deps.Bucket = objectstore.NewS3Bucket(awsutil.NewS3Client(awsCfg, opts.Endpoint), obj.Bucket)
	case "file":
		bucket, err := objectstore.NewDirBucket(obj.Dir)
		if err != nil {
			return nil, err
		}
		b.deps.Bucket = bucket
	case "bolt":
		bucket, err := objectstore.OpenBoltBucket(obj.BoltPath)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, bucket.Close)
		b.deps.Bucket = bucket
	case "mem":
		b.deps.Bucket = objectstore.NewMemBucket()
	default:
		return nil, fmt.Errorf("unknown object provider %q", obj.Provider)
	}
	return b.deps.Bucket, nil
}
