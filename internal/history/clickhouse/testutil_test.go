package clickhouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a ClickHouse container for testing and applies the
// schema. Returns a cleanup function that must be called after tests
// complete.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		Env: map[string]string{
			"CLICKHOUSE_DB": "test",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("9000/tcp").
				WithStartupTimeout(60*time.Second),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start clickhouse container")

	host, err := container.Host(ctx)
	require.NoError(t, err, "failed to get container host")

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err, "failed to get mapped port")

	dsn := fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port())

	conn, err := NewConn(ctx, dsn)
	require.NoError(t, err, "failed to connect to clickhouse")

	runTestSchema(t, ctx, conn)

	cleanup := func() {
		conn.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return conn, cleanup
}

// runTestSchema applies the snapshot schema. The migrations package
// cannot be imported here (it depends on this package), so the schema
// is applied inline; it must stay in sync with the embedded SQL.
func runTestSchema(t *testing.T, ctx context.Context, conn *Conn) {
	t.Helper()

	err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sale_snapshots (
			observed_at     UInt64,
			phase_index     UInt8,
			phase_name      String,
			collected_funds UInt64,
			coins_sold      UInt64,
			phase_collected UInt64,
			phase_remaining UInt64
		) ENGINE = MergeTree()
		ORDER BY (observed_at, phase_index)
	`)
	require.NoError(t, err, "create sale_snapshots")
}
