package db

import (
	"database/sql"

	"github.com/SIMPLYBOYS/tweetpulse/internal/store"
)

// DBOperations is the seam between the store and the real database, so tests
// can hand in a sqlmock connection and skip migrations.
type DBOperations interface {
	Open(driverName, dataSourceName string) (*sql.DB, error)
	RunMigrations(db *sql.DB) error
}

var _ store.Store = (*PostgresStore)(nil)
