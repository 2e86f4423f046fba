package db

import (
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Schema is a set of embedded migrations tracked in their own version table,
// so that several schemas can share one database file.
type Schema struct {
	Name string // version table name, e.g. "candidate_schema_migrations"
	FS   fs.FS
	Dir  string // directory inside FS holding NNNNNN_name.up.sql files
}

// MigrateUp runs all pending migrations of s up to the latest version.
// Returns nil if no migrations were needed (already at latest version).
func (db *DB) MigrateUp(s Schema) error {
	m, err := db.newMigrate(s)
	if err != nil {
		return err
	}
	// Note: m is not closed because that would close the underlying DB connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed for %s: %w", s.Name, err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration of s.
func (db *DB) MigrateDown(s Schema) error {
	m, err := db.newMigrate(s)
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed for %s: %w", s.Name, err)
	}
	return nil
}

// MigrateVersion returns the current migration version and dirty state.
// Returns 0, false, nil if no migrations have been applied yet.
func (db *DB) MigrateVersion(s Schema) (version uint, dirty bool, err error) {
	m, err := db.newMigrate(s)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if err != nil && errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (db *DB) newMigrate(s Schema) (*migrate.Migrate, error) {
	src, err := iofs.New(s.FS, s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations %s: %w", s.Name, err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{MigrationsTable: s.Name})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
