package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// RunMigrations applies the embedded migrations for dialect.
func RunMigrations(dialect Dialect, dsn string) error {
	// Separate connection so migrate can close it without touching the pool.
	migrateDB, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	var driver database.Driver
	switch dialect {
	case Postgres:
		driver, err = migratepgx.WithInstance(migrateDB, &migratepgx.Config{})
	default:
		driver, err = sqlite.WithInstance(migrateDB, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("create %s driver: %w", dialect, err)
	}

	d, err := iofs.New(migrationsFS, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, string(dialect), driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
