// Package registry mirrors the ledger's phase state. The mirror is only
// ever a post-command or post-poll snapshot; the registry never computes
// a transition predictively because the ledger enforces the real rules.
package registry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/ledger"
)

// PhaseRegistry holds the local mirror of the ordered phase list and the
// current-phase pointer.
type PhaseRegistry struct {
	client ledger.Client
	logger *log.Logger

	mu          sync.RWMutex
	current     *domain.Phase
	phases      [domain.PhaseCount]*domain.Phase
	refreshedAt time.Time
}

// New creates a PhaseRegistry backed by the given ledger client.
func New(client ledger.Client, logger *log.Logger) *PhaseRegistry {
	if logger == nil {
		logger = log.Default()
	}
	return &PhaseRegistry{
		client: client,
		logger: logger,
	}
}

// RefreshCurrent re-queries the active phase and replaces the local
// current-phase snapshot.
func (r *PhaseRegistry) RefreshCurrent(ctx context.Context) (*domain.Phase, error) {
	p, err := r.client.CurrentPhase(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh current phase: %w", err)
	}

	r.mu.Lock()
	r.current = p
	if p.Index.IsValid() {
		r.phases[p.Index] = p
	}
	r.refreshedAt = time.Now()
	r.mu.Unlock()

	cp := *p
	return &cp, nil
}

// RefreshAll re-queries every phase of the fixed sequence and replaces
// the local overview. A failure on any index aborts the refresh and
// leaves the previous overview in place.
func (r *PhaseRegistry) RefreshAll(ctx context.Context) ([]domain.Phase, error) {
	var fetched [domain.PhaseCount]*domain.Phase
	for i := domain.PhaseIndex(0); i < domain.PhaseCount; i++ {
		p, err := r.client.PhaseByIndex(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("refresh phase %d: %w", i, err)
		}
		p.Index = i
		fetched[i] = p
	}

	r.mu.Lock()
	r.phases = fetched
	for _, p := range fetched {
		if p.Active {
			r.current = p
		}
	}
	r.refreshedAt = time.Now()
	r.mu.Unlock()

	return r.Overview(), nil
}

// Current returns a copy of the last refreshed active phase, or nil if
// no refresh has succeeded yet.
func (r *PhaseRegistry) Current() *domain.Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil
	}
	cp := *r.current
	return &cp
}

// Overview returns copies of all refreshed phases in ordinal order.
// Phases never fetched are omitted.
func (r *PhaseRegistry) Overview() []domain.Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Phase, 0, domain.PhaseCount)
	for _, p := range r.phases {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// RefreshedAt returns when the mirror last changed.
func (r *PhaseRegistry) RefreshedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshedAt
}

// Advance issues the stage-advance command, then unconditionally
// re-queries the current phase so the local view reflects whatever the
// ledger actually did.
func (r *PhaseRegistry) Advance(ctx context.Context) error {
	if err := r.client.AdvanceStage(ctx); err != nil {
		return err
	}
	if _, err := r.RefreshCurrent(ctx); err != nil {
		// Command succeeded; the stale mirror heals on the next poll.
		r.logger.Printf("[registry] post-advance refresh failed: %v", err)
	}
	return nil
}

// Extend extends the active phase by the given seconds. Non-positive
// durations are rejected locally before any round trip.
func (r *PhaseRegistry) Extend(ctx context.Context, seconds int64) error {
	if seconds <= 0 {
		return fmt.Errorf("%w: extend seconds must be positive, got %d", ledger.ErrInvalidArgument, seconds)
	}
	if err := r.client.ExtendStage(ctx, seconds); err != nil {
		return err
	}
	if _, err := r.RefreshCurrent(ctx); err != nil {
		r.logger.Printf("[registry] post-extend refresh failed: %v", err)
	}
	return nil
}

// EndActive stops the active phase. The ledger's "already stopped"
// rejection is classified as the benign ErrAlreadyEnded; other reasons
// surface verbatim.
func (r *PhaseRegistry) EndActive(ctx context.Context) error {
	err := r.client.EndStage(ctx)
	if err != nil {
		return ledger.ClassifyEndStage(err)
	}
	if _, err := r.RefreshCurrent(ctx); err != nil {
		r.logger.Printf("[registry] post-end refresh failed: %v", err)
	}
	return nil
}
