package gormstore

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateDatabaseURL maps a driver name + DSN to the URL scheme
// golang-migrate's database drivers expect.
func migrateDatabaseURL(driver, dsn string) (string, error) {
	switch driver {
	case "postgres":
		return "postgres://" + dsn, nil
	case "mysql":
		return "mysql://" + dsn, nil
	case "sqlite":
		return "sqlite3://" + dsn, nil
	default:
		return "", fmt.Errorf("gormstore: unsupported migration driver %q", driver)
	}
}

// Migrate applies every pending embedded migration against the database
// named by driver/dsn. Safe to call repeatedly; a no-change result is not
// treated as an error.
func Migrate(driver, dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("gormstore: load embedded migrations: %w", err)
	}

	url, err := migrateDatabaseURL(driver, dsn)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("gormstore: init migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("gormstore: apply migrations: %w", err)
	}
	return nil
}
