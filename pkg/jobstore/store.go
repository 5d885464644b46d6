package jobstore

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/vibe-engine/vibe-engine/pkg/config"
)

// Store is the durable store of projects, jobs, events, and budgets,
// backed by Postgres via the pgx stdlib driver.
type Store struct {
	db *stdsql.DB
}

// New opens a connection pool against cfg's DSN, applies embedded
// migrations, and returns a ready Store.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	db, err := stdsql.Open("pgx", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("jobstore: opening database: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("jobstore: pinging database: %w", err)
	}

	if err := runMigrations(db, "jobstore"); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewFromDB wraps an already-open *sql.DB, skipping migrations — used by
// tests that manage schema setup themselves via testcontainers.
func NewFromDB(db *stdsql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection pool, for health checks.
func (s *Store) DB() *stdsql.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
