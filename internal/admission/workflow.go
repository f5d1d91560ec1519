// Package admission manages the seed-round applicant workflow:
// pending applicants are confirmed into the ledger's allowed set or
// cancelled locally. The ledger's lists are authoritative; every local
// mutation is provisional until the post-command resync replaces it.
package admission

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/ledger"
)

// Gate is the operator yes/no confirmation passed before any mutating
// transition. An unapproved action is a no-op, not an error.
type Gate interface {
	Approve(action, address string) bool
}

// GateFunc adapts a function to the Gate interface.
type GateFunc func(action, address string) bool

// Approve calls f.
func (f GateFunc) Approve(action, address string) bool {
	return f(action, address)
}

// AutoApprove approves every action. Used by non-interactive callers
// that confirm upstream (e.g. an HTTP request that already carries the
// operator's explicit confirmation).
var AutoApprove = GateFunc(func(string, string) bool { return true })

// Workflow tracks the local pending and allowed sets.
type Workflow struct {
	client ledger.Client
	gate   Gate
	logger *log.Logger

	mu      sync.RWMutex
	pending map[string]struct{}
	allowed map[string]struct{}
}

// New creates an admission workflow. A nil gate auto-approves.
func New(client ledger.Client, gate Gate, logger *log.Logger) *Workflow {
	if gate == nil {
		gate = AutoApprove
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Workflow{
		client:  client,
		gate:    gate,
		logger:  logger,
		pending: make(map[string]struct{}),
		allowed: make(map[string]struct{}),
	}
}

// Refresh replaces both local sets with the ledger's lists.
func (w *Workflow) Refresh(ctx context.Context) error {
	pending, err := w.client.PendingApplicants(ctx)
	if err != nil {
		return fmt.Errorf("refresh pending applicants: %w", err)
	}
	allowed, err := w.client.AllowedApplicants(ctx)
	if err != nil {
		return fmt.Errorf("refresh allowed applicants: %w", err)
	}

	w.mu.Lock()
	w.pending = toSet(pending)
	w.allowed = toSet(allowed)
	w.mu.Unlock()
	return nil
}

// Confirm admits a pending applicant. The flow is: operator gate, admit
// command, provisional local removal, then an authoritative resync that
// replaces both sets — a concurrent operator may have acted on the same
// address, so the resync result wins regardless of what this call did.
// Returns false with a nil error when the gate aborts.
func (w *Workflow) Confirm(ctx context.Context, address string) (bool, error) {
	if !w.gate.Approve("confirm", address) {
		return false, nil
	}

	if err := w.client.AdmitApplicant(ctx, address); err != nil {
		// Pending set left untouched on command failure.
		return false, err
	}

	w.mu.Lock()
	delete(w.pending, address)
	w.allowed[address] = struct{}{}
	w.mu.Unlock()

	if err := w.Refresh(ctx); err != nil {
		// The speculative state stands until the next poll heals it.
		w.logger.Printf("[admission] post-confirm resync failed: %v", err)
	}
	return true, nil
}

// Cancel removes an applicant from the local pending set. Cancellation
// is an off-ledger decision: the ledger has no rejection record, so no
// mutating command is issued and a re-applying address will reappear on
// the next refresh. Returns false with a nil error when the gate aborts.
func (w *Workflow) Cancel(ctx context.Context, address string) (bool, error) {
	if !w.gate.Approve("cancel", address) {
		return false, nil
	}

	w.mu.Lock()
	delete(w.pending, address)
	w.mu.Unlock()

	pending, err := w.client.PendingApplicants(ctx)
	if err != nil {
		w.logger.Printf("[admission] post-cancel resync failed: %v", err)
		return true, nil
	}

	w.mu.Lock()
	// Replace, don't merge. The ledger has no notion of rejection, so a
	// cancelled address that is still applied on the ledger reappears
	// here; cancellation is advisory until the applicant gives up.
	w.pending = toSet(pending)
	w.mu.Unlock()
	return true, nil
}

// Pending returns the pending applicant addresses, sorted.
func (w *Workflow) Pending() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return sortedKeys(w.pending)
}

// Allowed returns the admitted buyer addresses, sorted.
func (w *Workflow) Allowed() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return sortedKeys(w.allowed)
}

// State returns the local admission state of an address.
func (w *Workflow) State(address string) domain.AdmissionState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if _, ok := w.allowed[address]; ok {
		return domain.AdmissionAllowed
	}
	if _, ok := w.pending[address]; ok {
		return domain.AdmissionPending
	}
	return domain.AdmissionAbsent
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, a := range list {
		set[a] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
