package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bryanwahyu/plantscan/internal/config"
)

// Connect opens the configured driver and pings it.
func Connect(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	var (
		driver string
		dsn    string
	)
	switch cfg.Database.Driver {
	case "mysql":
		driver, dsn = "mysql", cfg.MySQLDSN()
	case "postgres":
		driver, dsn = "postgres", cfg.PostgresDSN()
	case "sqlite":
		driver, dsn = "sqlite3", cfg.Database.Path+"?_foreign_keys=on&_busy_timeout=5000"
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite3" {
		// one writer at a time
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
