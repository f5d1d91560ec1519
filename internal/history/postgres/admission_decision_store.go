package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/history"
)

// AdmissionDecisionStore implements history.AdmissionDecisionStore
// using PostgreSQL.
type AdmissionDecisionStore struct {
	pool *Pool
}

// NewAdmissionDecisionStore creates a new AdmissionDecisionStore.
func NewAdmissionDecisionStore(pool *Pool) *AdmissionDecisionStore {
	return &AdmissionDecisionStore{pool: pool}
}

// Compile-time interface check.
var _ history.AdmissionDecisionStore = (*AdmissionDecisionStore)(nil)

// Insert adds one decision. Returns ErrDuplicateKey if decision_id exists.
func (s *AdmissionDecisionStore) Insert(ctx context.Context, d *domain.AdmissionDecision) error {
	if d == nil || d.DecisionID == "" {
		return history.ErrInvalidInput
	}

	query := `
		INSERT INTO admission_decisions (
			decision_id, address, action, outcome, reason, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		d.DecisionID,
		d.Address,
		string(d.Action),
		string(d.Outcome),
		d.Reason,
		d.DecidedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return history.ErrDuplicateKey
		}
		return fmt.Errorf("insert admission decision: %w", err)
	}
	return nil
}

// GetByAddress retrieves all decisions for an address, ordered by
// decided_at ASC.
func (s *AdmissionDecisionStore) GetByAddress(ctx context.Context, address string) ([]*domain.AdmissionDecision, error) {
	query := `
		SELECT decision_id, address, action, outcome, reason, decided_at
		FROM admission_decisions
		WHERE address = $1
		ORDER BY decided_at ASC, decision_id ASC
	`

	rows, err := s.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("get decisions by address: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

// GetAll retrieves all decisions, ordered by decided_at ASC.
func (s *AdmissionDecisionStore) GetAll(ctx context.Context) ([]*domain.AdmissionDecision, error) {
	query := `
		SELECT decision_id, address, action, outcome, reason, decided_at
		FROM admission_decisions
		ORDER BY decided_at ASC, decision_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all decisions: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

func scanDecisions(rows pgx.Rows) ([]*domain.AdmissionDecision, error) {
	var result []*domain.AdmissionDecision
	for rows.Next() {
		var (
			d       domain.AdmissionDecision
			action  string
			outcome string
		)
		if err := rows.Scan(&d.DecisionID, &d.Address, &action, &outcome, &d.Reason, &d.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan admission decision: %w", err)
		}
		d.Action = domain.DecisionAction(action)
		d.Outcome = domain.DecisionOutcome(outcome)
		result = append(result, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admission decisions: %w", err)
	}
	return result, nil
}
