// Package ledger provides the client surface to the authoritative sale
// ledger: JSON-RPC queries and commands over HTTP plus a WebSocket
// subscription for purchase notifications. The ledger is the single
// source of truth; every local mirror is a possibly stale snapshot.
package ledger

import (
	"context"

	"tokensale-coordinator/internal/domain"
)

// Client is the operation set the coordinator consumes.
// Queries return the ledger's current view; commands either succeed or
// fail with a *RejectionError carrying the ledger's reason verbatim.
// Transport failures wrap ErrUnreachable.
type Client interface {
	// Queries
	CurrentPhase(ctx context.Context) (*domain.Phase, error)
	PhaseByIndex(ctx context.Context, index domain.PhaseIndex) (*domain.Phase, error)
	RemainingTimeInStage(ctx context.Context) (int64, error)
	PendingApplicants(ctx context.Context) ([]string, error)
	AllowedApplicants(ctx context.Context) ([]string, error)
	StoredAddresses(ctx context.Context) ([]string, error)
	BuyerRecord(ctx context.Context, address string) (*domain.BuyerRecord, error)
	TotalCollectedFunds(ctx context.Context) (domain.Amount, error)
	TotalCoinsSold(ctx context.Context) (domain.CoinCount, error)
	OwnerAddress(ctx context.Context) (string, error)

	// Commands
	AdvanceStage(ctx context.Context) error
	ExtendStage(ctx context.Context, seconds int64) error
	EndStage(ctx context.Context) error
	AdmitApplicant(ctx context.Context, address string) error
	PurchaseCoins(ctx context.Context, count domain.CoinCount, payment domain.Amount) error
	ApplySeedRound(ctx context.Context, address string) error
	FinalizeSale(ctx context.Context) error
}

// Subscriber delivers purchase notifications. Events arrive at most once
// each with no ordering guarantee relative to polling.
type Subscriber interface {
	SubscribePurchases(ctx context.Context) (<-chan domain.PurchaseEvent, error)
	Close() error
}
