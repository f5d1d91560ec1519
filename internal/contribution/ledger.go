// Package contribution maintains the eventually consistent buyer
// contribution ledger. Records are fed by periodic full refreshes and by
// discrete purchase events; both paths replace records with the latest
// queried values — last query wins, never last event.
package contribution

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"tokensale-coordinator/internal/domain"
)

// BuyerQuerier is the ledger operation the contribution ledger needs.
type BuyerQuerier interface {
	BuyerRecord(ctx context.Context, address string) (*domain.BuyerRecord, error)
}

// Ledger is the upsert-by-address map of buyer totals.
type Ledger struct {
	querier BuyerQuerier
	logger  *log.Logger

	mu      sync.RWMutex
	records map[string]domain.BuyerRecord
}

// New creates an empty contribution ledger.
func New(querier BuyerQuerier, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.Default()
	}
	return &Ledger{
		querier: querier,
		logger:  logger,
		records: make(map[string]domain.BuyerRecord),
	}
}

// Upsert replaces any existing record for the address. Totals are never
// summed client-side; overlapping poll and event sources would double
// count otherwise.
func (l *Ledger) Upsert(address string, coins domain.CoinCount, spent domain.Amount) {
	l.mu.Lock()
	l.records[address] = domain.BuyerRecord{
		Address:        address,
		CoinsPurchased: coins,
		AmountSpent:    spent,
	}
	l.mu.Unlock()
}

// RefreshOne queries the ledger for one buyer's totals and upserts.
func (l *Ledger) RefreshOne(ctx context.Context, address string) error {
	rec, err := l.querier.BuyerRecord(ctx, address)
	if err != nil {
		return fmt.Errorf("refresh buyer %s: %w", address, err)
	}
	l.Upsert(address, rec.CoinsPurchased, rec.AmountSpent)
	return nil
}

// RefreshAll queries and upserts a batch of addresses. Each query is
// independent: a failure skips that address and the rest of the batch
// still applies. The failed addresses are returned for reporting.
func (l *Ledger) RefreshAll(ctx context.Context, addresses []string) (failed []string) {
	for _, addr := range addresses {
		if err := l.RefreshOne(ctx, addr); err != nil {
			l.logger.Printf("[contribution] refresh %s failed: %v", addr, err)
			failed = append(failed, addr)
		}
	}
	return failed
}

// ApplyPurchaseEvent reacts to an asynchronous purchase notification.
// The event payload's derived totals are not trusted: events race with
// polling and can arrive out of order, so the authoritative record is
// re-fetched instead.
func (l *Ledger) ApplyPurchaseEvent(ctx context.Context, ev domain.PurchaseEvent) error {
	if ev.Buyer == "" {
		return fmt.Errorf("purchase event with empty buyer")
	}
	return l.RefreshOne(ctx, ev.Buyer)
}

// Get returns the record for an address, if present.
func (l *Ledger) Get(address string) (domain.BuyerRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[address]
	return rec, ok
}

// Buyers returns all records sorted by address.
func (l *Ledger) Buyers() []domain.BuyerRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.BuyerRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address < out[j].Address
	})
	return out
}

// Len returns the number of tracked buyers.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
