package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/history"
)

func TestSaleSnapshotStore_InsertBulkAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSaleSnapshotStore(conn)
	ctx := context.Background()

	points := []*domain.SaleSnapshot{
		{ObservedAt: 1000, PhaseIndex: domain.PhaseSeed, PhaseName: "Seed Phase", CollectedFunds: 100, CoinsSold: 1, PhaseCollected: 100, PhaseRemaining: 999},
		{ObservedAt: 2000, PhaseIndex: domain.PhaseSeed, PhaseName: "Seed Phase", CollectedFunds: 500, CoinsSold: 5, PhaseCollected: 500, PhaseRemaining: 995},
	}

	require.NoError(t, store.InsertBulk(ctx, points))

	result, err := store.GetByTimeRange(ctx, 0, 3000)
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Equal(t, int64(1000), result[0].ObservedAt)
	require.Equal(t, domain.Amount(100), result[0].CollectedFunds)
	require.Equal(t, int64(2000), result[1].ObservedAt)
	require.Equal(t, domain.CoinCount(5), result[1].CoinsSold)
	require.Equal(t, "Seed Phase", result[1].PhaseName)
}

func TestSaleSnapshotStore_EmptyBulkIsNoop(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSaleSnapshotStore(conn)

	require.NoError(t, store.InsertBulk(context.Background(), nil))
}

func TestSaleSnapshotStore_InvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSaleSnapshotStore(conn)

	err := store.InsertBulk(context.Background(), []*domain.SaleSnapshot{{ObservedAt: 0}})
	require.ErrorIs(t, err, history.ErrInvalidInput)
}

func TestSaleSnapshotStore_RangeBoundsInclusive(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSaleSnapshotStore(conn)
	ctx := context.Background()

	points := []*domain.SaleSnapshot{
		{ObservedAt: 1000, PhaseName: "Seed Phase"},
		{ObservedAt: 2000, PhaseName: "Seed Phase"},
		{ObservedAt: 3000, PhaseName: "Pre-ICO", PhaseIndex: domain.PhasePreICO},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	result, err := store.GetByTimeRange(ctx, 1000, 2000)
	require.NoError(t, err)
	require.Len(t, result, 2)
}
