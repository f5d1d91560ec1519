package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/history"
)

func TestAdmissionDecisionStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAdmissionDecisionStore(pool)
	ctx := context.Background()

	dec := &domain.AdmissionDecision{
		DecisionID: "d1",
		Address:    "alice",
		Action:     domain.DecisionConfirm,
		Outcome:    domain.OutcomeApplied,
		DecidedAt:  1000,
	}

	require.NoError(t, store.Insert(ctx, dec))

	result, err := store.GetByAddress(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, domain.DecisionConfirm, result[0].Action)
	require.Equal(t, domain.OutcomeApplied, result[0].Outcome)
	require.Empty(t, result[0].Reason)
}

func TestAdmissionDecisionStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAdmissionDecisionStore(pool)
	ctx := context.Background()

	dec := &domain.AdmissionDecision{
		DecisionID: "d1",
		Address:    "alice",
		Action:     domain.DecisionCancel,
		Outcome:    domain.OutcomeApplied,
	}

	require.NoError(t, store.Insert(ctx, dec))
	require.ErrorIs(t, store.Insert(ctx, dec), history.ErrDuplicateKey)
}

func TestAdmissionDecisionStore_GetAllOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAdmissionDecisionStore(pool)
	ctx := context.Background()

	for _, dec := range []*domain.AdmissionDecision{
		{DecisionID: "d2", Address: "bob", Action: domain.DecisionConfirm, Outcome: domain.OutcomeRejected, Reason: "Address has not applied", DecidedAt: 2000},
		{DecisionID: "d1", Address: "alice", Action: domain.DecisionConfirm, Outcome: domain.OutcomeApplied, DecidedAt: 1000},
	} {
		require.NoError(t, store.Insert(ctx, dec))
	}

	result, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Equal(t, "d1", result[0].DecisionID)
	require.Equal(t, "d2", result[1].DecisionID)
	require.Equal(t, "Address has not applied", result[1].Reason)
}
