package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/history"
)

// PurchaseEventStore implements history.PurchaseEventStore using PostgreSQL.
type PurchaseEventStore struct {
	pool *Pool
}

// NewPurchaseEventStore creates a new PurchaseEventStore.
func NewPurchaseEventStore(pool *Pool) *PurchaseEventStore {
	return &PurchaseEventStore{pool: pool}
}

// Compile-time interface check.
var _ history.PurchaseEventStore = (*PurchaseEventStore)(nil)

// Insert adds one observed purchase. Returns ErrDuplicateKey if the
// event_id exists.
func (s *PurchaseEventStore) Insert(ctx context.Context, p *domain.ObservedPurchase) error {
	if p == nil || p.EventID == "" {
		return history.ErrInvalidInput
	}

	query := `
		INSERT INTO purchase_events (
			event_id, buyer, amount, total_spent, received_at
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		p.EventID,
		p.Buyer,
		int64(p.Amount),
		int64(p.TotalSpent),
		p.ReceivedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return history.ErrDuplicateKey
		}
		return fmt.Errorf("insert purchase event: %w", err)
	}
	return nil
}

// GetByBuyer retrieves all observations for a buyer, ordered by
// received_at ASC.
func (s *PurchaseEventStore) GetByBuyer(ctx context.Context, buyer string) ([]*domain.ObservedPurchase, error) {
	query := `
		SELECT event_id, buyer, amount, total_spent, received_at
		FROM purchase_events
		WHERE buyer = $1
		ORDER BY received_at ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, buyer)
	if err != nil {
		return nil, fmt.Errorf("get purchases by buyer: %w", err)
	}
	defer rows.Close()

	return scanPurchases(rows)
}

// GetByTimeRange retrieves observations within [start, end] (inclusive).
func (s *PurchaseEventStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ObservedPurchase, error) {
	query := `
		SELECT event_id, buyer, amount, total_spent, received_at
		FROM purchase_events
		WHERE received_at >= $1 AND received_at <= $2
		ORDER BY received_at ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get purchases by time range: %w", err)
	}
	defer rows.Close()

	return scanPurchases(rows)
}

func scanPurchases(rows pgx.Rows) ([]*domain.ObservedPurchase, error) {
	var result []*domain.ObservedPurchase
	for rows.Next() {
		var (
			p          domain.ObservedPurchase
			amount     int64
			totalSpent int64
		)
		if err := rows.Scan(&p.EventID, &p.Buyer, &amount, &totalSpent, &p.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan purchase event: %w", err)
		}
		p.Amount = domain.CoinCount(amount)
		p.TotalSpent = domain.Amount(totalSpent)
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase events: %w", err)
	}
	return result, nil
}
