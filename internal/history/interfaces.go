// Package history defines the append-only observation archive the
// coordinator writes while it runs: purchase notifications, operator
// admission decisions, and sale snapshot timeseries. The archive feeds
// charts and reports; the coordinator never reads it to rebuild state.
package history

import (
	"context"

	"tokensale-coordinator/internal/domain"
)

// PurchaseEventStore archives observed purchase notifications.
type PurchaseEventStore interface {
	// Insert adds one observed purchase. Returns ErrDuplicateKey if the
	// event_id exists.
	Insert(ctx context.Context, p *domain.ObservedPurchase) error

	// GetByBuyer retrieves all observations for a buyer, ordered by
	// received_at ASC.
	GetByBuyer(ctx context.Context, buyer string) ([]*domain.ObservedPurchase, error)

	// GetByTimeRange retrieves observations within [start, end]
	// (inclusive, unix milliseconds), ordered by received_at ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ObservedPurchase, error)
}

// AdmissionDecisionStore archives operator decisions on applicants.
type AdmissionDecisionStore interface {
	// Insert adds one decision. Returns ErrDuplicateKey if the
	// decision_id exists.
	Insert(ctx context.Context, d *domain.AdmissionDecision) error

	// GetByAddress retrieves all decisions for an address, ordered by
	// decided_at ASC.
	GetByAddress(ctx context.Context, address string) ([]*domain.AdmissionDecision, error)

	// GetAll retrieves all decisions, ordered by decided_at ASC.
	GetAll(ctx context.Context) ([]*domain.AdmissionDecision, error)
}

// SaleSnapshotStore archives the polled sale totals timeseries.
type SaleSnapshotStore interface {
	// InsertBulk adds multiple snapshot points.
	InsertBulk(ctx context.Context, points []*domain.SaleSnapshot) error

	// GetByTimeRange retrieves points within [start, end] (inclusive,
	// unix milliseconds), ordered by observed_at ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SaleSnapshot, error)
}
