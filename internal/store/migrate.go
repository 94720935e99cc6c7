package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	apperrors "github.com/energy-modelling-hub/water-value-database/internal/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate creates the store at path, or brings an existing one up to the
// current schema version, and returns that version. The file is opened
// read-write only here.
func Migrate(ctx context.Context, path string) (uint, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, apperrors.NewStorageError("failed to create store directory", err).WithContext("path", dir)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return 0, apperrors.NewStorageError("failed to open store", err).WithContext("path", path)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		db.Close()
		return 0, apperrors.NewStorageError("failed to create migration driver", err).WithContext("path", path)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		driver.Close()
		return 0, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		driver.Close()
		return 0, apperrors.NewStorageError("failed to create migrator", err).WithContext("path", path)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, apperrors.NewStorageError("failed to run migrations", err).WithContext("path", path)
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, apperrors.NewStorageError("failed to read schema version", err).WithContext("path", path)
	}
	return version, nil
}
