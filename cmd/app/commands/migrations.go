package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// migrationsDir holds one sub-directory of SQL migrations per supported driver.
const migrationsDir = "migrations"

// migrationsSource maps a DB_DRIVER value to its golang-migrate file source.
func migrationsSource(driver string) (string, error) {
	switch driver {
	case "postgres", "postgresql":
		return "file://" + migrationsDir + "/postgresql", nil
	case "mysql":
		return "file://" + migrationsDir + "/mysql", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// RunMigrations creates or upgrades the outbox, hospital and scheduler tables. An already
// migrated database is not an error.
func RunMigrations(logger *slog.Logger, driver, connectionString string) error {
	source, err := migrationsSource(driver)
	if err != nil {
		return err
	}
	logger.Info("running database migrations",
		slog.String("driver", driver),
		slog.String("source", source),
	)

	m, err := migrate.New(source, connectionString)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Info("migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}
