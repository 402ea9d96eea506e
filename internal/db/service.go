// Package db is the Postgres implementation of the store contract.
package db

import (
	"database/sql"
	"embed"
	stderrors "errors"

	"github.com/SIMPLYBOYS/tweetpulse/internal/config"
	"github.com/SIMPLYBOYS/tweetpulse/internal/errors"
	"github.com/SIMPLYBOYS/tweetpulse/pkg/logger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // PostgreSQL driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore keeps counters, history, series and wallets in Postgres.
// Counter and balance updates are single upserts, so concurrent searches never
// lose an increment.
type PostgresStore struct {
	db *sql.DB
}

// SQLOperations opens real connections and applies the embedded migrations.
type SQLOperations struct{}

func (SQLOperations) Open(driverName, dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

func (SQLOperations) RunMigrations(db *sql.DB) error {
	return RunMigrations(db)
}

// NewPostgresStore connects with cfg, pings the server and migrates the schema.
func NewPostgresStore(cfg config.DBConfig, ops DBOperations) (*PostgresStore, error) {
	db, err := ops.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, &errors.StorageError{Operation: "open connection", Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.StorageError{Operation: "ping database", Err: err}
	}

	if err := ops.RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Connected to Postgres at %s:%s/%s", cfg.Host, cfg.Port, cfg.Name)
	return &PostgresStore{db: db}, nil
}

// RunMigrations applies every embedded migration that has not run yet.
func RunMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return &errors.StorageError{Operation: "load embedded migrations", Err: err}
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return &errors.StorageError{Operation: "create postgres migration driver", Err: err}
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return &errors.StorageError{Operation: "create migrate instance", Err: err}
	}

	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return &errors.StorageError{Operation: "apply migrations", Err: err}
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
