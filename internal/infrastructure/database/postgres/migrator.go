package postgres

import (
	"embed"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
)

// The schema ships inside the binary so a deployment never depends on a
// migrations directory being mounted next to it.
//
//go:embed migrations/*.sql
var migrationFS embed.FS

func newMigrate(dbURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMigrationFailed, "loading embedded migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMigrationFailed, "creating migrate instance")
	}
	return m, nil
}

// RunMigrations applies all pending migrations.  An up-to-date schema is not
// an error.
func RunMigrations(dbURL string) error {
	m, err := newMigrate(dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, errors.ErrCodeMigrationFailed, "applying migrations")
	}
	return nil
}

// RollbackMigrations rolls the schema back by the given number of steps.
// Intended for development and test databases.
func RollbackMigrations(dbURL string, steps int) error {
	if steps <= 0 {
		return errors.Newf(errors.ErrCodeBadRequest, "rollback steps must be positive, got %d", steps)
	}

	m, err := newMigrate(dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, errors.ErrCodeMigrationFailed, "rolling back migrations")
	}
	return nil
}

// MigrationStatus reports the applied schema version and whether a failed
// migration left it dirty.  A database with no migrations applied reports
// version 0, clean.
func MigrationStatus(dbURL string) (version uint, dirty bool, err error) {
	m, err := newMigrate(dbURL)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err = m.Version()
	if err == migrate.ErrNilVersion {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrCodeMigrationFailed, "reading migration version")
	}
	return version, dirty, nil
}
