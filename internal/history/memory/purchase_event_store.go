package memory

import (
	"context"
	"sort"
	"sync"

	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/history"
)

// PurchaseEventStore is an in-memory implementation of
// history.PurchaseEventStore.
type PurchaseEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ObservedPurchase // keyed by event_id
}

// NewPurchaseEventStore creates a new in-memory purchase event store.
func NewPurchaseEventStore() *PurchaseEventStore {
	return &PurchaseEventStore{
		data: make(map[string]*domain.ObservedPurchase),
	}
}

// Insert adds one observed purchase. Returns ErrDuplicateKey if the
// event_id exists.
func (s *PurchaseEventStore) Insert(_ context.Context, p *domain.ObservedPurchase) error {
	if p == nil || p.EventID == "" {
		return history.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.EventID]; exists {
		return history.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	cp := *p
	s.data[p.EventID] = &cp
	return nil
}

// GetByBuyer retrieves all observations for a buyer, ordered by
// received_at ASC.
func (s *PurchaseEventStore) GetByBuyer(_ context.Context, buyer string) ([]*domain.ObservedPurchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ObservedPurchase
	for _, p := range s.data {
		if p.Buyer == buyer {
			cp := *p
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ReceivedAt < result[j].ReceivedAt
	})

	return result, nil
}

// GetByTimeRange retrieves observations within [start, end] (inclusive).
func (s *PurchaseEventStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.ObservedPurchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ObservedPurchase
	for _, p := range s.data {
		if p.ReceivedAt >= start && p.ReceivedAt <= end {
			cp := *p
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ReceivedAt < result[j].ReceivedAt
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ history.PurchaseEventStore = (*PurchaseEventStore)(nil)
