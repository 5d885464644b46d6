package jobstore

import (
	stdsql "database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// ApplyMigrations applies all pending schema migrations to db, for
// callers outside this package (e.g. pkg/api's tests) that build a
// Store via NewFromDB and need the schema set up the same way New does.
func ApplyMigrations(db *stdsql.DB, databaseName string) error {
	return runMigrations(db, databaseName)
}

// runMigrations applies all pending schema migrations using golang-migrate
// against the embedded migration files, so a deployed binary never depends
// on SQL files present on the filesystem.
func runMigrations(db *stdsql.DB, databaseName string) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("jobstore: checking embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("jobstore: no embedded migration files found, binary built incorrectly")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("jobstore: creating postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("jobstore: creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, databaseName, driver)
	if err != nil {
		return fmt.Errorf("jobstore: creating migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("jobstore: applying migrations: %w", err)
	}

	// sourceDriver.Close only, never m.Close — that would also close db,
	// which the caller still owns.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("jobstore: closing migration source: %w", err)
	}
	return nil
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("jobstore: reading embedded migrations: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && len(entry.Name()) > 4 && entry.Name()[len(entry.Name())-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}
