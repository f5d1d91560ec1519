package memory

import (
	"context"
	"sort"
	"sync"

	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/history"
)

// AdmissionDecisionStore is an in-memory implementation of
// history.AdmissionDecisionStore.
type AdmissionDecisionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AdmissionDecision // keyed by decision_id
}

// NewAdmissionDecisionStore creates a new in-memory decision store.
func NewAdmissionDecisionStore() *AdmissionDecisionStore {
	return &AdmissionDecisionStore{
		data: make(map[string]*domain.AdmissionDecision),
	}
}

// Insert adds one decision. Returns ErrDuplicateKey if decision_id exists.
func (s *AdmissionDecisionStore) Insert(_ context.Context, d *domain.AdmissionDecision) error {
	if d == nil || d.DecisionID == "" {
		return history.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[d.DecisionID]; exists {
		return history.ErrDuplicateKey
	}

	cp := *d
	s.data[d.DecisionID] = &cp
	return nil
}

// GetByAddress retrieves all decisions for an address, ordered by
// decided_at ASC.
func (s *AdmissionDecisionStore) GetByAddress(_ context.Context, address string) ([]*domain.AdmissionDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AdmissionDecision
	for _, d := range s.data {
		if d.Address == address {
			cp := *d
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DecidedAt < result[j].DecidedAt
	})

	return result, nil
}

// GetAll retrieves all decisions, ordered by decided_at ASC.
func (s *AdmissionDecisionStore) GetAll(_ context.Context) ([]*domain.AdmissionDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.AdmissionDecision, 0, len(s.data))
	for _, d := range s.data {
		cp := *d
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DecidedAt < result[j].DecidedAt
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ history.AdmissionDecisionStore = (*AdmissionDecisionStore)(nil)
