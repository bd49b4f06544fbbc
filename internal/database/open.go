package database

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "postgres" driver.
	_ "github.com/lib/pq"
	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"
)

// Open connects to driver ("postgres" or "sqlite") and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// single-writer engine; also keeps ":memory:" databases on one connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	return db, nil
}
