package testutil

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/config"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// NewTestDB creates an in-memory SQLite database with all migrations applied.
// Each call returns a fresh database.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Open(context.Background(), config.DriverSQLite, "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	require.NoError(t, db.RunMigrations(database), "Failed to apply migrations")

	t.Cleanup(func() { database.Close() })
	return database
}
