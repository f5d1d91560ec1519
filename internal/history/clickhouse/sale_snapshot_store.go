package clickhouse

import (
	"context"
	"fmt"

	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/history"
)

// SaleSnapshotStore implements history.SaleSnapshotStore using ClickHouse.
type SaleSnapshotStore struct {
	conn *Conn
}

// NewSaleSnapshotStore creates a new SaleSnapshotStore.
func NewSaleSnapshotStore(conn *Conn) *SaleSnapshotStore {
	return &SaleSnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ history.SaleSnapshotStore = (*SaleSnapshotStore)(nil)

// InsertBulk adds multiple snapshot points in one batch.
func (s *SaleSnapshotStore) InsertBulk(ctx context.Context, points []*domain.SaleSnapshot) error {
	if len(points) == 0 {
		return nil
	}

	for _, p := range points {
		if p == nil || p.ObservedAt == 0 {
			return history.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO sale_snapshots (
			observed_at, phase_index, phase_name,
			collected_funds, coins_sold, phase_collected, phase_remaining
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			uint64(p.ObservedAt), uint8(p.PhaseIndex), p.PhaseName,
			uint64(p.CollectedFunds), uint64(p.CoinsSold),
			uint64(p.PhaseCollected), uint64(p.PhaseRemaining),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves points within [start, end] (inclusive),
// ordered by observed_at ASC.
func (s *SaleSnapshotStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SaleSnapshot, error) {
	query := `
		SELECT observed_at, phase_index, phase_name,
		       collected_funds, coins_sold, phase_collected, phase_remaining
		FROM sale_snapshots
		WHERE observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanSaleSnapshots(rows)
}

type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// scanSaleSnapshots scans multiple rows.
func scanSaleSnapshots(rows chRows) ([]*domain.SaleSnapshot, error) {
	var points []*domain.SaleSnapshot

	for rows.Next() {
		var p domain.SaleSnapshot
		var observedAt, collected, sold, phaseCollected, phaseRemaining uint64
		var phaseIndex uint8

		err := rows.Scan(
			&observedAt, &phaseIndex, &p.PhaseName,
			&collected, &sold, &phaseCollected, &phaseRemaining,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sale snapshot row: %w", err)
		}

		p.ObservedAt = int64(observedAt)
		p.PhaseIndex = domain.PhaseIndex(phaseIndex)
		p.CollectedFunds = domain.Amount(collected)
		p.CoinsSold = domain.CoinCount(sold)
		p.PhaseCollected = domain.Amount(phaseCollected)
		p.PhaseRemaining = domain.CoinCount(phaseRemaining)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale snapshot rows: %w", err)
	}

	return points, nil
}
