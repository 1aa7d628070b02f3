package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Config holds database connection settings.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// Open creates a pgx pool and wraps it as *sql.DB for the repositories.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, *pgxpool.Pool, error) {
	logger.Info("connecting to database")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database config", "error", err)
		return nil, nil, err
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "docuscan"

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database")
	return db, pool, nil
}

// OpenInMemory opens a process-local SQLite database, used by the CLI when no
// Postgres DSN is configured and by tests.
func OpenInMemory(logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		logger.Error("failed to open in-memory database", "error", err)
		return nil, err
	}
	// cache=shared requires a single connection to see one database.
	db.SetMaxOpenConns(1)
	logger.Info("opened in-memory database")
	return db, nil
}

// Migrate creates the schema. Safe to call repeatedly.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS scan_records (
	id             TEXT PRIMARY KEY,
	org_id         TEXT NOT NULL,
	template_key   TEXT NOT NULL DEFAULT '',
	storage_path   TEXT NOT NULL DEFAULT '',
	extracted_data TEXT NOT NULL DEFAULT '{}',
	status         TEXT NOT NULL,
	created_by     TEXT NOT NULL DEFAULT '',
	reviewed_by    TEXT,
	reviewed_at    TEXT,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS scan_records_org_idx ON scan_records (org_id, status);`

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		logger.Error("migration failed", "error", err)
		return err
	}
	logger.Debug("schema migrated")
	return nil
}

// Close closes the database connections gracefully
func Close(db *sql.DB, pool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("closing database connections")
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}
	if pool != nil {
		pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	return nil
}
