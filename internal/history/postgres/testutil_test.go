package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL container for testing and applies the
// schema. Returns a cleanup function that must be called after tests
// complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	runTestSchema(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// runTestSchema applies the archive schema. The migrations package
// cannot be imported here (it depends on this package), so the schema
// is applied inline; it must stay in sync with the embedded SQL.
func runTestSchema(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS purchase_events (
			event_id    TEXT PRIMARY KEY,
			buyer       TEXT NOT NULL,
			amount      BIGINT NOT NULL,
			total_spent BIGINT NOT NULL,
			received_at BIGINT NOT NULL
		)
	`)
	require.NoError(t, err, "create purchase_events")

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS admission_decisions (
			decision_id TEXT PRIMARY KEY,
			address     TEXT NOT NULL,
			action      TEXT NOT NULL,
			outcome     TEXT NOT NULL,
			reason      TEXT NOT NULL DEFAULT '',
			decided_at  BIGINT NOT NULL
		)
	`)
	require.NoError(t, err, "create admission_decisions")
}
