package memory

import (
	"context"
	"sort"
	"sync"

	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/history"
)

// SaleSnapshotStore is an in-memory implementation of
// history.SaleSnapshotStore.
type SaleSnapshotStore struct {
	mu   sync.RWMutex
	data []*domain.SaleSnapshot
}

// NewSaleSnapshotStore creates a new in-memory snapshot store.
func NewSaleSnapshotStore() *SaleSnapshotStore {
	return &SaleSnapshotStore{}
}

// InsertBulk adds multiple snapshot points.
func (s *SaleSnapshotStore) InsertBulk(_ context.Context, points []*domain.SaleSnapshot) error {
	for _, p := range points {
		if p == nil || p.ObservedAt == 0 {
			return history.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		cp := *p
		s.data = append(s.data, &cp)
	}
	return nil
}

// GetByTimeRange retrieves points within [start, end] (inclusive),
// ordered by observed_at ASC.
func (s *SaleSnapshotStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.SaleSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SaleSnapshot
	for _, p := range s.data {
		if p.ObservedAt >= start && p.ObservedAt <= end {
			cp := *p
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt < result[j].ObservedAt
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ history.SaleSnapshotStore = (*SaleSnapshotStore)(nil)
