package memory

import (
	"context"
	"errors"
	"testing"

	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/history"
)

func TestSaleSnapshotStore_InsertBulkAndGet(t *testing.T) {
	store := NewSaleSnapshotStore()
	ctx := context.Background()

	points := []*domain.SaleSnapshot{
		{ObservedAt: 2000, PhaseIndex: domain.PhaseSeed, PhaseName: "Seed Phase", CollectedFunds: 500, CoinsSold: 5},
		{ObservedAt: 1000, PhaseIndex: domain.PhaseSeed, PhaseName: "Seed Phase", CollectedFunds: 100, CoinsSold: 1},
	}

	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, 0, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(result))
	}
	if result[0].ObservedAt != 1000 || result[1].ObservedAt != 2000 {
		t.Errorf("Wrong order: %d, %d", result[0].ObservedAt, result[1].ObservedAt)
	}
}

func TestSaleSnapshotStore_InvalidInput(t *testing.T) {
	store := NewSaleSnapshotStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.SaleSnapshot{{ObservedAt: 0}})
	if !errors.Is(err, history.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestSaleSnapshotStore_RangeBoundsInclusive(t *testing.T) {
	store := NewSaleSnapshotStore()
	ctx := context.Background()

	points := []*domain.SaleSnapshot{
		{ObservedAt: 1000},
		{ObservedAt: 2000},
		{ObservedAt: 3000},
	}
	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, 1000, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("Expected 2 points in inclusive range, got %d", len(result))
	}
}
