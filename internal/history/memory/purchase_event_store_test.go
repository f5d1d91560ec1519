package memory

import (
	"context"
	"errors"
	"testing"

	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/history"
)

func TestPurchaseEventStore_InsertAndGet(t *testing.T) {
	store := NewPurchaseEventStore()
	ctx := context.Background()

	obs := &domain.ObservedPurchase{
		EventID:    "alice-1000-1",
		Buyer:      "alice",
		Amount:     25,
		TotalSpent: 25000,
		ReceivedAt: 1000,
	}

	if err := store.Insert(ctx, obs); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := store.GetByBuyer(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByBuyer failed: %v", err)
	}

	if len(result) != 1 {
		t.Fatalf("Expected 1 observation, got %d", len(result))
	}
	if result[0].Amount != 25 || result[0].TotalSpent != 25000 {
		t.Errorf("Observation mismatch: %+v", result[0])
	}
}

func TestPurchaseEventStore_DuplicateKey(t *testing.T) {
	store := NewPurchaseEventStore()
	ctx := context.Background()

	obs := &domain.ObservedPurchase{EventID: "e1", Buyer: "alice", ReceivedAt: 1000}

	if err := store.Insert(ctx, obs); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, obs)
	if !errors.Is(err, history.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestPurchaseEventStore_InvalidInput(t *testing.T) {
	store := NewPurchaseEventStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, history.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, &domain.ObservedPurchase{}); !errors.Is(err, history.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty event id, got %v", err)
	}
}

func TestPurchaseEventStore_GetByTimeRange(t *testing.T) {
	store := NewPurchaseEventStore()
	ctx := context.Background()

	for _, obs := range []*domain.ObservedPurchase{
		{EventID: "e1", Buyer: "alice", ReceivedAt: 1000},
		{EventID: "e2", Buyer: "bob", ReceivedAt: 2000},
		{EventID: "e3", Buyer: "alice", ReceivedAt: 3000},
	} {
		if err := store.Insert(ctx, obs); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetByTimeRange(ctx, 1000, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 observations, got %d", len(result))
	}
	if result[0].EventID != "e1" || result[1].EventID != "e2" {
		t.Errorf("Wrong order: %s, %s", result[0].EventID, result[1].EventID)
	}
}

func TestPurchaseEventStore_StoresCopy(t *testing.T) {
	store := NewPurchaseEventStore()
	ctx := context.Background()

	obs := &domain.ObservedPurchase{EventID: "e1", Buyer: "alice", Amount: 5, ReceivedAt: 1000}
	if err := store.Insert(ctx, obs); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	obs.Amount = 999

	result, _ := store.GetByBuyer(ctx, "alice")
	if result[0].Amount != 5 {
		t.Errorf("External mutation leaked into store: %d", result[0].Amount)
	}
}
