package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationsFS holds the schedule, delivery ledger, recipient and audit tables.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run brings the schema at databaseURL up to the latest embedded migration
// and returns the version it ends on. An up-to-date schema is not an error.
// A dirty schema (a migration that failed halfway) is reported instead of
// being migrated over, since the delivery ledger's unique key may be missing.
func Run(databaseURL string) (uint, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return 0, fmt.Errorf("migrate new: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate up: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("migrate version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty; fix it and force the version with the migrate CLI", version)
	}
	return version, nil
}
