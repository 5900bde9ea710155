//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/cards-api/internal/platform/postgres"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

// TestTimeout bounds connection checks and migrations.
const TestTimeout = 10 * time.Second

var migrateOnce sync.Once

// DatabaseURL returns the database used by integration tests.
func DatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return os.Getenv("CARDS_DATABASE_URL")
}

// Open connects to the test database and migrates it to the latest schema.
// The test is skipped when no database is configured.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	url := DatabaseURL()
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := sql.Open("pgx", url)
	require.NoError(t, err, "failed to open database")
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "database connection failed")

	var migrateErr error
	migrateOnce.Do(func() {
		goose.SetBaseFS(postgres.Migrations)
		defer goose.SetBaseFS(nil)
		if migrateErr = goose.SetDialect("postgres"); migrateErr != nil {
			return
		}
		migrateErr = goose.UpContext(ctx, db, postgres.MigrationsDir)
	})
	require.NoError(t, migrateErr, "failed to apply migrations")

	return db
}
