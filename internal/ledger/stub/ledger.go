// Package stub provides an in-memory ledger.Client for testing. It
// simulates the sale state machine closely enough for coordinator tests
// and counts every call per method so tests can assert which operations
// reached the ledger.
package stub

import (
	"context"
	"sync"
	"time"

	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/ledger"
)

// Rejection reasons the stub emits, matching the real ledger's strings.
const (
	ReasonAlreadyStopped   = "Sale is already stopped"
	ReasonAlreadyFinalized = "Sale already finalized"
	ReasonSaleEnded        = "Sale has ended"
	ReasonAlreadyAllowed   = "Buyer already allowed"
	ReasonNotApplied       = "Address has not applied"
	ReasonLastPhase        = "Already in final phase"
)

// Ledger implements ledger.Client and ledger.Subscriber in memory.
type Ledger struct {
	mu sync.Mutex

	Phases     [domain.PhaseCount]domain.Phase
	CurrentIdx domain.PhaseIndex
	Remaining  int64 // seconds left in the active stage

	Pending []string
	Allowed []string
	Stored  []string
	Buyers  map[string]domain.BuyerRecord

	Collected domain.Amount
	CoinsSold domain.CoinCount
	Owner     string

	// Sender is the wallet the stub attributes purchases to, standing in
	// for the transaction signer the real ledger sees.
	Sender string

	Ended     bool
	Finalized bool

	// AdmitIdempotent controls whether admitting an already-allowed
	// address succeeds silently (true) or is rejected (false).
	AdmitIdempotent bool

	// FailQueries makes every query return ErrUnreachable.
	FailQueries bool

	// RejectWith forces a rejection reason per command method name.
	RejectWith map[string]string

	calls map[string]int

	events   chan domain.PurchaseEvent
	eventsMu sync.Mutex
}

// New creates a stub ledger with the four-phase sequence seeded.
func New() *Ledger {
	l := &Ledger{
		Buyers:          make(map[string]domain.BuyerRecord),
		RejectWith:      make(map[string]string),
		calls:           make(map[string]int),
		AdmitIdempotent: true,
		Remaining:       3600,
	}
	names := [domain.PhaseCount]string{
		domain.SeedPhaseName, domain.PreICOPhaseName, domain.ICOPhaseName, domain.CompletedPhaseName,
	}
	for i := range l.Phases {
		l.Phases[i] = domain.Phase{
			Index:     domain.PhaseIndex(i),
			Name:      names[i],
			CoinDenom: "TSC",
			Allotted:  1000,
			Remaining: 1000,
			Target:    1_000_000,
			Price:     1000,
		}
	}
	l.Phases[0].Active = true
	return l
}

// Compile-time interface checks.
var (
	_ ledger.Client     = (*Ledger)(nil)
	_ ledger.Subscriber = (*Ledger)(nil)
)

// Calls returns how many times the given method was invoked.
func (l *Ledger) Calls(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[method]
}

// CommandCalls returns the total number of command invocations.
func (l *Ledger) CommandCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, m := range []string{"advanceStage", "extendStage", "endStage", "admitApplicant", "purchaseCoins", "applySeedRound", "finalizeSale"} {
		total += l.calls[m]
	}
	return total
}

func (l *Ledger) record(method string) {
	l.calls[method]++
}

func (l *Ledger) rejectionFor(method string) error {
	if reason, ok := l.RejectWith[method]; ok {
		return &ledger.RejectionError{Op: method, Reason: reason}
	}
	return nil
}

func (l *Ledger) queryErr() error {
	if l.FailQueries {
		return ledger.ErrUnreachable
	}
	return nil
}

// CurrentPhase returns the active phase.
func (l *Ledger) CurrentPhase(_ context.Context) (*domain.Phase, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("currentPhase")
	if err := l.queryErr(); err != nil {
		return nil, err
	}
	p := l.Phases[l.CurrentIdx]
	return &p, nil
}

// PhaseByIndex returns the phase at the given ordinal.
func (l *Ledger) PhaseByIndex(_ context.Context, index domain.PhaseIndex) (*domain.Phase, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("phaseByIndex")
	if err := l.queryErr(); err != nil {
		return nil, err
	}
	if !index.IsValid() {
		return nil, ledger.ErrInvalidArgument
	}
	p := l.Phases[index]
	return &p, nil
}

// RemainingTimeInStage returns the configured remaining seconds.
func (l *Ledger) RemainingTimeInStage(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("remainingTimeInStage")
	if err := l.queryErr(); err != nil {
		return 0, err
	}
	return l.Remaining, nil
}

// PendingApplicants returns a copy of the pending set.
func (l *Ledger) PendingApplicants(_ context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("pendingApplicants")
	if err := l.queryErr(); err != nil {
		return nil, err
	}
	return append([]string(nil), l.Pending...), nil
}

// AllowedApplicants returns a copy of the allowed set.
func (l *Ledger) AllowedApplicants(_ context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("allowedApplicants")
	if err := l.queryErr(); err != nil {
		return nil, err
	}
	return append([]string(nil), l.Allowed...), nil
}

// StoredAddresses returns a copy of the address roster.
func (l *Ledger) StoredAddresses(_ context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("storedAddresses")
	if err := l.queryErr(); err != nil {
		return nil, err
	}
	return append([]string(nil), l.Stored...), nil
}

// BuyerRecord returns the buyer's totals; a zero record if unknown.
func (l *Ledger) BuyerRecord(_ context.Context, address string) (*domain.BuyerRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("buyerRecord")
	if err := l.queryErr(); err != nil {
		return nil, err
	}
	rec, ok := l.Buyers[address]
	if !ok {
		rec = domain.BuyerRecord{Address: address}
	}
	return &rec, nil
}

// TotalCollectedFunds returns the sale-wide collected amount.
func (l *Ledger) TotalCollectedFunds(_ context.Context) (domain.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("totalCollectedFunds")
	if err := l.queryErr(); err != nil {
		return 0, err
	}
	return l.Collected, nil
}

// TotalCoinsSold returns the sale-wide sold-coin count.
func (l *Ledger) TotalCoinsSold(_ context.Context) (domain.CoinCount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("totalCoinsSold")
	if err := l.queryErr(); err != nil {
		return 0, err
	}
	return l.CoinsSold, nil
}

// OwnerAddress returns the configured owner address.
func (l *Ledger) OwnerAddress(_ context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ownerAddress")
	if err := l.queryErr(); err != nil {
		return "", err
	}
	return l.Owner, nil
}

// AdvanceStage moves to the next phase.
func (l *Ledger) AdvanceStage(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("advanceStage")
	if err := l.rejectionFor("advanceStage"); err != nil {
		return err
	}
	if int(l.CurrentIdx) >= domain.PhaseCount-1 {
		return &ledger.RejectionError{Op: "advanceStage", Reason: ReasonLastPhase}
	}
	l.Phases[l.CurrentIdx].Active = false
	l.CurrentIdx++
	if l.CurrentIdx != domain.PhaseCompleted {
		l.Phases[l.CurrentIdx].Active = true
	}
	l.Ended = false
	return nil
}

// ExtendStage extends the remaining time by seconds.
func (l *Ledger) ExtendStage(_ context.Context, seconds int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("extendStage")
	if err := l.rejectionFor("extendStage"); err != nil {
		return err
	}
	l.Remaining += seconds
	l.Phases[l.CurrentIdx].EndTime += seconds
	return nil
}

// EndStage stops the active phase; a second call is rejected with the
// ledger's "already stopped" reason.
func (l *Ledger) EndStage(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("endStage")
	if err := l.rejectionFor("endStage"); err != nil {
		return err
	}
	if l.Ended {
		return &ledger.RejectionError{Op: "endStage", Reason: ReasonAlreadyStopped}
	}
	l.Ended = true
	l.Phases[l.CurrentIdx].Active = false
	return nil
}

// AdmitApplicant moves an applicant to the allowed set.
func (l *Ledger) AdmitApplicant(_ context.Context, address string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("admitApplicant")
	if err := l.rejectionFor("admitApplicant"); err != nil {
		return err
	}
	for _, a := range l.Allowed {
		if a == address {
			if l.AdmitIdempotent {
				return nil
			}
			return &ledger.RejectionError{Op: "admitApplicant", Reason: ReasonAlreadyAllowed}
		}
	}
	l.Allowed = append(l.Allowed, address)
	l.Pending = remove(l.Pending, address)
	return nil
}

// PurchaseCoins records a purchase and emits a purchase notification.
func (l *Ledger) PurchaseCoins(_ context.Context, count domain.CoinCount, payment domain.Amount) error {
	l.mu.Lock()
	l.record("purchaseCoins")
	if err := l.rejectionFor("purchaseCoins"); err != nil {
		l.mu.Unlock()
		return err
	}
	if l.Ended {
		l.mu.Unlock()
		return &ledger.RejectionError{Op: "purchaseCoins", Reason: ReasonSaleEnded}
	}
	buyer := l.Sender
	rec := l.Buyers[buyer]
	rec.Address = buyer
	rec.CoinsPurchased += count
	rec.AmountSpent += payment
	l.Buyers[buyer] = rec
	l.Phases[l.CurrentIdx].Remaining -= count
	l.Phases[l.CurrentIdx].CollectedFund += payment
	l.Collected += payment
	l.CoinsSold += count
	ev := domain.PurchaseEvent{Buyer: buyer, Amount: count, TotalSpent: rec.AmountSpent}
	l.mu.Unlock()

	l.EmitPurchase(ev)
	return nil
}

// ApplySeedRound adds an address to the pending applicant set.
func (l *Ledger) ApplySeedRound(_ context.Context, address string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("applySeedRound")
	if err := l.rejectionFor("applySeedRound"); err != nil {
		return err
	}
	for _, a := range l.Pending {
		if a == address {
			return nil
		}
	}
	l.Pending = append(l.Pending, address)
	l.Stored = append(l.Stored, address)
	return nil
}

// FinalizeSale finalizes once; repeat calls are rejected.
func (l *Ledger) FinalizeSale(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("finalizeSale")
	if err := l.rejectionFor("finalizeSale"); err != nil {
		return err
	}
	if l.Finalized {
		return &ledger.RejectionError{Op: "finalizeSale", Reason: ReasonAlreadyFinalized}
	}
	l.Finalized = true
	return nil
}

// SubscribePurchases returns the purchase event channel.
func (l *Ledger) SubscribePurchases(_ context.Context) (<-chan domain.PurchaseEvent, error) {
	l.eventsMu.Lock()
	defer l.eventsMu.Unlock()
	if l.events == nil {
		l.events = make(chan domain.PurchaseEvent, 256)
	}
	return l.events, nil
}

// Close closes the purchase event channel.
func (l *Ledger) Close() error {
	l.eventsMu.Lock()
	defer l.eventsMu.Unlock()
	if l.events != nil {
		close(l.events)
		l.events = nil
	}
	return nil
}

// EmitPurchase delivers an event to the subscriber, if any. Tests use
// this to simulate out-of-order notifications.
func (l *Ledger) EmitPurchase(ev domain.PurchaseEvent) {
	if ev.ReceivedAt == 0 {
		ev.ReceivedAt = time.Now().UnixMilli()
	}
	l.eventsMu.Lock()
	ch := l.events
	l.eventsMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
		}
	}
}

func remove(list []string, address string) []string {
	out := list[:0]
	for _, a := range list {
		if a != address {
			out = append(out, a)
		}
	}
	return out
}
