// Package pgmigrate applies golang-migrate migrations from an fs.FS.
package pgmigrate

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const (
	// SchemaTable tracks the schema migrations.
	SchemaTable = "schema_migrations"
	// SeedTable tracks dev seed data separately so seed versions never
	// collide with schema versions.
	SeedTable = "schema_seed_migrations"
)

// Up applies every pending migration found in dir of fsys, tracking versions
// in table. It returns the resulting version; no pending migrations is not an
// error.
func Up(db *sql.DB, fsys fs.FS, dir, table string) (uint, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: table})
	if err != nil {
		return 0, fmt.Errorf("init postgres driver: %w", err)
	}

	src, err := iofs.New(fsys, dir)
	if err != nil {
		return 0, fmt.Errorf("iofs source %s: %w", dir, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}

	if dirty {
		return version, fmt.Errorf("version %d is dirty", version)
	}

	return version, nil
}
