package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SchemaVersion is the migration version this build expects.
const SchemaVersion = 2

// The migrate functions below take ownership of conn: golang-migrate closes
// the connection it is handed. Use the *FromPath variants to let them open
// their own.

// MigrateUp applies all pending migrations. No pending migrations is not
// an error.
func MigrateUp(conn *sql.DB) error {
	m, err := newMigrator(conn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// MigrateDown rolls back steps migrations, or all of them for steps == -1.
func MigrateDown(conn *sql.DB, steps int) error {
	m, err := newMigrator(conn)
	if err != nil {
		return err
	}
	defer m.Close()

	if steps == -1 {
		err = m.Down()
	} else {
		err = m.Steps(-steps)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return nil
}

// MigrationVersion returns the applied version and whether a migration
// failed partway. A fresh database reports version 0.
func MigrationVersion(conn *sql.DB) (uint, bool, error) {
	m, err := newMigrator(conn)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// MigrateUpFromPath opens dbPath and applies pending migrations.
func MigrateUpFromPath(dbPath string) error {
	conn, err := NewSQLiteConnectionWithDefaults(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	return MigrateUp(conn)
}

// MigrateDownFromPath opens dbPath and rolls back steps migrations.
func MigrateDownFromPath(dbPath string, steps int) error {
	conn, err := NewSQLiteConnectionWithDefaults(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	return MigrateDown(conn, steps)
}

// MigrationVersionFromPath opens dbPath and reports its migration version.
func MigrationVersionFromPath(dbPath string) (uint, bool, error) {
	conn, err := NewSQLiteConnectionWithDefaults(dbPath)
	if err != nil {
		return 0, false, fmt.Errorf("failed to open database: %w", err)
	}
	return MigrationVersion(conn)
}

func newMigrator(conn *sql.DB) (*migrate.Migrate, error) {
	if conn == nil {
		return nil, errors.New("database connection is required")
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(conn, &sqlite.Config{DatabaseName: "main"})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}
