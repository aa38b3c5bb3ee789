package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/config"
	"github.com/AdamBeresnev/pickleball-fixtures/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// InitDB connects using the configured driver and applies pending migrations.
func InitDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	conn, err := Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("database connected", "driver", cfg.DatabaseDriver)
	return conn, nil
}

func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if driver == config.DriverSQLite {
		dsn = withForeignKeys(dsn)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database handle: %w", err)
	}

	switch driver {
	case config.DriverSQLite:
		// One connection: keeps :memory: databases whole and writers serialized.
		conn.SetMaxOpenConns(1)
	case config.DriverPostgres:
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(25)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == config.DriverSQLite {
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return conn, nil
}

func RunMigrations(conn *sqlx.DB) error {
	var (
		driver database.Driver
		err    error
	)
	dialect := conn.DriverName()

	switch dialect {
	case config.DriverSQLite:
		driver, err = migratesqlite.WithInstance(conn.DB, &migratesqlite.Config{})
		dialect = "sqlite"
	case config.DriverPostgres:
		driver, err = migratepg.WithInstance(conn.DB, &migratepg.Config{})
	default:
		return fmt.Errorf("no migrations for driver %q", dialect)
	}
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, dialect)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dialect, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}
