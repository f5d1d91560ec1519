// Package coordinator composes the phase registry, countdown timer,
// admission workflow and contribution ledger into the sale-wide control
// surface, and runs the periodic polling that keeps every local mirror
// converging on the ledger's state.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tokensale-coordinator/internal/admission"
	"tokensale-coordinator/internal/contribution"
	"tokensale-coordinator/internal/countdown"
	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/history"
	"tokensale-coordinator/internal/ledger"
	"tokensale-coordinator/internal/observability"
	"tokensale-coordinator/internal/registry"
)

// Default polling intervals. The countdown ticks on its own fixed
// one-second period and is not configurable.
const (
	DefaultPhasePollInterval = 15 * time.Second
	DefaultBuyerPollInterval = 30 * time.Second
	DefaultSnapshotInterval  = 60 * time.Second
)

// refreshQueueSize bounds the buyer refresh backlog fed by purchase
// notifications. A dropped entry is healed by the next periodic poll.
const refreshQueueSize = 1024

// Options contains configuration for creating a SaleCoordinator.
type Options struct {
	Ledger     ledger.Client
	Subscriber ledger.Subscriber // optional; nil disables event handling

	// Optional write-only archive. Nil stores disable that archive kind.
	Purchases history.PurchaseEventStore
	Decisions history.AdmissionDecisionStore
	Snapshots history.SaleSnapshotStore

	Gate admission.Gate // nil auto-approves

	PhasePollInterval time.Duration
	BuyerPollInterval time.Duration
	SnapshotInterval  time.Duration

	Logger *log.Logger
}

// SaleCoordinator is the top-level coordinator. All reads serve the
// local mirrors; all commands go to the ledger and resync afterwards.
type SaleCoordinator struct {
	client     ledger.Client
	subscriber ledger.Subscriber

	phases    *registry.PhaseRegistry
	timer     *countdown.Timer
	admission *admission.Workflow
	buyers    *contribution.Ledger

	purchaseStore history.PurchaseEventStore
	decisionStore history.AdmissionDecisionStore
	snapshotStore history.SaleSnapshotStore

	phasePollInterval time.Duration
	buyerPollInterval time.Duration
	snapshotInterval  time.Duration

	logger *log.Logger

	mu        sync.RWMutex
	totals    domain.SaleTotals
	owner     string
	addresses []string // last queried stored-address list
	finalized bool
	eventSeq  uint64 // disambiguates archive IDs within one millisecond

	refreshCh chan string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a SaleCoordinator. Ledger is required.
func New(opts Options) (*SaleCoordinator, error) {
	if opts.Ledger == nil {
		return nil, errors.New("coordinator: ledger client is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	phasePoll := opts.PhasePollInterval
	if phasePoll == 0 {
		phasePoll = DefaultPhasePollInterval
	}
	buyerPoll := opts.BuyerPollInterval
	if buyerPoll == 0 {
		buyerPoll = DefaultBuyerPollInterval
	}
	snapshot := opts.SnapshotInterval
	if snapshot == 0 {
		snapshot = DefaultSnapshotInterval
	}

	return &SaleCoordinator{
		client:            opts.Ledger,
		subscriber:        opts.Subscriber,
		phases:            registry.New(opts.Ledger, logger),
		timer:             countdown.NewTimer(opts.Ledger, logger),
		admission:         admission.New(opts.Ledger, opts.Gate, logger),
		buyers:            contribution.New(opts.Ledger, logger),
		purchaseStore:     opts.Purchases,
		decisionStore:     opts.Decisions,
		snapshotStore:     opts.Snapshots,
		phasePollInterval: phasePoll,
		buyerPollInterval: buyerPoll,
		snapshotInterval:  snapshot,
		logger:            logger,
		refreshCh:         make(chan string, refreshQueueSize),
	}, nil
}

// Start performs the initial synchronization and launches the periodic
// loops. The initial phase fetch must succeed; everything else degrades
// to the next poll.
func (c *SaleCoordinator) Start(ctx context.Context) error {
	if _, err := c.phases.RefreshAll(ctx); err != nil {
		return fmt.Errorf("initial phase sync: %w", err)
	}
	observability.RecordPhaseRefresh(true)

	if owner, err := c.client.OwnerAddress(ctx); err != nil {
		c.logger.Printf("[coordinator] owner query failed: %v", err)
	} else {
		c.mu.Lock()
		c.owner = owner
		c.mu.Unlock()
	}

	if err := c.admission.Refresh(ctx); err != nil {
		c.logger.Printf("[coordinator] initial applicant sync failed: %v", err)
	}
	c.refreshTotals(ctx)
	c.refreshBuyers(ctx)

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.timer.Start(runCtx)

	c.wg.Add(3)
	go c.phasePollLoop(runCtx)
	go c.buyerPollLoop(runCtx)
	go c.snapshotLoop(runCtx)

	if c.subscriber != nil {
		events, err := c.subscriber.SubscribePurchases(runCtx)
		if err != nil {
			c.logger.Printf("[coordinator] purchase subscription failed, relying on polling: %v", err)
		} else {
			c.wg.Add(2)
			go c.eventLoop(runCtx, events)
			go c.refreshWorker(runCtx)
		}
	}

	c.logger.Printf("[coordinator] started, phase poll %v, buyer poll %v, snapshot %v",
		c.phasePollInterval, c.buyerPollInterval, c.snapshotInterval)
	return nil
}

// Close stops all loops and waits for them to exit.
func (c *SaleCoordinator) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.timer.Stop()
	c.wg.Wait()

	if c.subscriber != nil {
		if err := c.subscriber.Close(); err != nil {
			return fmt.Errorf("close subscriber: %w", err)
		}
	}
	return nil
}

// ---- Periodic loops ----

func (c *SaleCoordinator) phasePollLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.phasePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.phases.RefreshAll(ctx); err != nil {
				observability.RecordPhaseRefresh(false)
				if ctx.Err() == nil {
					c.logger.Printf("[coordinator] phase poll failed: %v", err)
				}
			} else {
				observability.RecordPhaseRefresh(true)
			}
			if err := c.admission.Refresh(ctx); err != nil {
				observability.RecordAdmissionRefresh(false)
				if ctx.Err() == nil {
					c.logger.Printf("[coordinator] applicant poll failed: %v", err)
				}
			} else {
				observability.RecordAdmissionRefresh(true)
			}
			c.refreshTotals(ctx)
			observability.UpdateViewSizes(c.buyers.Len(), len(c.admission.Pending()))
		}
	}
}

func (c *SaleCoordinator) buyerPollLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.buyerPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshBuyers(ctx)
		}
	}
}

func (c *SaleCoordinator) snapshotLoop(ctx context.Context) {
	defer c.wg.Done()

	if c.snapshotStore == nil {
		return
	}

	ticker := time.NewTicker(c.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.recordSnapshot(ctx)
		}
	}
}

// eventLoop drains purchase notifications. Each event is archived and
// queued for an authoritative re-fetch of the buyer's record; the
// payload totals are never applied directly.
func (c *SaleCoordinator) eventLoop(ctx context.Context, events <-chan domain.PurchaseEvent) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				c.logger.Printf("[coordinator] purchase event channel closed")
				return
			}
			observability.RecordPurchaseEvent()
			c.archivePurchase(ctx, ev)

			select {
			case c.refreshCh <- ev.Buyer:
			default:
				// Queue full; the periodic buyer poll picks it up.
				observability.RecordPurchaseEventDropped()
			}
		}
	}
}

// refreshWorker serializes buyer re-fetches triggered by events so a
// notification burst cannot fan out into unbounded concurrent queries.
func (c *SaleCoordinator) refreshWorker(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case addr := <-c.refreshCh:
			if err := c.buyers.RefreshOne(ctx, addr); err != nil {
				if ctx.Err() == nil {
					c.logger.Printf("[coordinator] event-driven refresh of %s failed: %v", addr, err)
				}
			}
			c.refreshTotals(ctx)
		}
	}
}

func (c *SaleCoordinator) refreshBuyers(ctx context.Context) {
	addrs, err := c.client.StoredAddresses(ctx)
	if err != nil {
		observability.RecordBuyerRefresh(false)
		if ctx.Err() == nil {
			c.logger.Printf("[coordinator] stored address query failed: %v", err)
		}
		return
	}

	c.mu.Lock()
	c.addresses = addrs
	c.mu.Unlock()

	failed := c.buyers.RefreshAll(ctx, addrs)
	observability.RecordBuyerRefresh(len(failed) == 0)
}

func (c *SaleCoordinator) refreshTotals(ctx context.Context) {
	collected, err := c.client.TotalCollectedFunds(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Printf("[coordinator] collected funds query failed: %v", err)
		}
		return
	}
	sold, err := c.client.TotalCoinsSold(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Printf("[coordinator] coins sold query failed: %v", err)
		}
		return
	}

	c.mu.Lock()
	c.totals = domain.SaleTotals{CollectedFunds: collected, CoinsSold: sold}
	c.mu.Unlock()
}

// ---- Read accessors ----

// CurrentPhase returns the last refreshed active phase, or nil before
// the first successful sync.
func (c *SaleCoordinator) CurrentPhase() *domain.Phase {
	return c.phases.Current()
}

// PhaseOverview returns all refreshed phases in ordinal order.
func (c *SaleCoordinator) PhaseOverview() []domain.Phase {
	return c.phases.Overview()
}

// RemainingTimeLabel returns the countdown label for the active phase.
func (c *SaleCoordinator) RemainingTimeLabel() string {
	return c.timer.Label()
}

// Buyers returns all tracked buyer records sorted by address.
func (c *SaleCoordinator) Buyers() []domain.BuyerRecord {
	return c.buyers.Buyers()
}

// Buyer returns the tracked record for one address.
func (c *SaleCoordinator) Buyer(address string) (domain.BuyerRecord, bool) {
	return c.buyers.Get(address)
}

// PendingApplicants returns the local pending set, sorted.
func (c *SaleCoordinator) PendingApplicants() []string {
	return c.admission.Pending()
}

// AllowedApplicants returns the local allowed set, sorted.
func (c *SaleCoordinator) AllowedApplicants() []string {
	return c.admission.Allowed()
}

// StoredAddresses returns the last queried buyer address list.
func (c *SaleCoordinator) StoredAddresses() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.addresses))
	copy(out, c.addresses)
	return out
}

// SaleTotals returns the last refreshed sale-wide totals.
func (c *SaleCoordinator) SaleTotals() domain.SaleTotals {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totals
}

// OwnerAddress returns the ledger's owner address, if known.
func (c *SaleCoordinator) OwnerAddress() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

// IsSeedPhaseActive reports whether the seed round is the active phase.
// The check goes by the ledger-reported name, not the ordinal.
func (c *SaleCoordinator) IsSeedPhaseActive() bool {
	p := c.phases.Current()
	return p != nil && p.Active && domain.IsSeedPhase(p.Name)
}

// RefreshedAt returns when the phase mirror last changed.
func (c *SaleCoordinator) RefreshedAt() time.Time {
	return c.phases.RefreshedAt()
}

// ---- Commands ----

// AdvancePhase moves the sale to the next phase.
func (c *SaleCoordinator) AdvancePhase(ctx context.Context) error {
	return c.timed("advanceStage", func() error {
		return c.phases.Advance(ctx)
	})
}

// ExtendPhase extends the active phase window by the given seconds.
func (c *SaleCoordinator) ExtendPhase(ctx context.Context, seconds int64) error {
	return c.timed("extendStage", func() error {
		return c.phases.Extend(ctx, seconds)
	})
}

// EndPhase stops the active phase. Ending an already stopped phase
// returns ErrAlreadyEnded, which callers treat as benign.
func (c *SaleCoordinator) EndPhase(ctx context.Context) error {
	return c.timed("endStage", func() error {
		return c.phases.EndActive(ctx)
	})
}

// ConfirmApplicant admits a pending seed applicant. Returns false with
// a nil error when the operator gate aborts.
func (c *SaleCoordinator) ConfirmApplicant(ctx context.Context, address string) (bool, error) {
	applied, err := c.admission.Confirm(ctx, address)
	c.archiveDecision(ctx, address, domain.DecisionConfirm, applied, err)
	status := "success"
	if err != nil {
		status = "error"
	} else if !applied {
		status = "aborted"
	}
	observability.RecordCommand("admitApplicant", status, 0)
	return applied, err
}

// CancelApplicant drops a pending applicant from the local view. No
// ledger command is issued; cancellation is advisory.
func (c *SaleCoordinator) CancelApplicant(ctx context.Context, address string) (bool, error) {
	applied, err := c.admission.Cancel(ctx, address)
	c.archiveDecision(ctx, address, domain.DecisionCancel, applied, err)
	return applied, err
}

// ApplySeedRound submits a seed-round application for the address.
// The address must be a well-formed wallet address; malformed input is
// rejected locally.
func (c *SaleCoordinator) ApplySeedRound(ctx context.Context, address string) error {
	if err := domain.ValidateAddress(address); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrInvalidArgument, err)
	}

	err := c.timed("applySeedRound", func() error {
		return c.client.ApplySeedRound(ctx, address)
	})
	if err != nil {
		return err
	}

	if err := c.admission.Refresh(ctx); err != nil {
		c.logger.Printf("[coordinator] post-apply resync failed: %v", err)
	}
	return nil
}

// RecordPurchase buys count coins at the active phase's price. The
// local mirror pre-validates the count so an obviously impossible
// request never reaches the ledger; the ledger still has the final
// word, and a rejection on a passed pre-check classifies as
// ErrStaleView.
func (c *SaleCoordinator) RecordPurchase(ctx context.Context, count domain.CoinCount) error {
	if count == 0 {
		return fmt.Errorf("%w: coin count must be positive", ledger.ErrInvalidArgument)
	}

	phase := c.phases.Current()
	if phase == nil {
		return fmt.Errorf("%w: no phase snapshot yet", ledger.ErrUnreachable)
	}
	if count > phase.Remaining {
		return fmt.Errorf("%w: requested %d coins, only %d remaining in %s",
			ledger.ErrInvalidArgument, count, phase.Remaining, phase.Name)
	}

	// The payment is derived from the mirrored price, exactly what the
	// ledger will charge unless the phase changed underneath us.
	payment := domain.Amount(uint64(count) * uint64(phase.Price))

	err := c.timed("purchaseCoins", func() error {
		return c.client.PurchaseCoins(ctx, count, payment)
	})
	if err != nil {
		return ledger.ClassifyPurchase(err)
	}

	if _, err := c.phases.RefreshCurrent(ctx); err != nil {
		c.logger.Printf("[coordinator] post-purchase refresh failed: %v", err)
	}
	c.refreshTotals(ctx)
	return nil
}

// FinalizeSale ends the sale and releases funds to the owner.
// Finalizing twice returns ErrAlreadyFinalized.
func (c *SaleCoordinator) FinalizeSale(ctx context.Context) error {
	err := c.timed("finalizeSale", func() error {
		return c.client.FinalizeSale(ctx)
	})
	if err != nil {
		return ledger.ClassifyFinalize(err)
	}

	c.mu.Lock()
	c.finalized = true
	c.mu.Unlock()

	if _, err := c.phases.RefreshCurrent(ctx); err != nil {
		c.logger.Printf("[coordinator] post-finalize refresh failed: %v", err)
	}
	c.refreshTotals(ctx)
	return nil
}

// Finalized reports whether this coordinator observed a successful
// finalize. It is a local hint only; the ledger remains authoritative.
func (c *SaleCoordinator) Finalized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.finalized
}

// timed wraps a ledger command with duration and outcome metrics.
func (c *SaleCoordinator) timed(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordCommand(operation, status, time.Since(start).Seconds())
	return err
}

// ---- Archive writes ----

// archivePurchase records an observed purchase. Archive failures are
// logged and never propagate; the archive is best-effort.
func (c *SaleCoordinator) archivePurchase(ctx context.Context, ev domain.PurchaseEvent) {
	if c.purchaseStore == nil {
		return
	}

	obs := &domain.ObservedPurchase{
		EventID:    c.nextID(ev.Buyer, ev.ReceivedAt),
		Buyer:      ev.Buyer,
		Amount:     ev.Amount,
		TotalSpent: ev.TotalSpent,
		ReceivedAt: ev.ReceivedAt,
	}

	err := c.purchaseStore.Insert(ctx, obs)
	observability.RecordArchiveWrite("purchase", err)
	if err != nil && !errors.Is(err, history.ErrDuplicateKey) {
		c.logger.Printf("[coordinator] purchase archive write failed: %v", err)
	}
}

func (c *SaleCoordinator) archiveDecision(ctx context.Context, address string, action domain.DecisionAction, applied bool, cmdErr error) {
	if c.decisionStore == nil {
		return
	}

	outcome := domain.OutcomeApplied
	reason := ""
	switch {
	case cmdErr != nil:
		outcome = domain.OutcomeRejected
		if rej, ok := ledger.IsRejection(cmdErr); ok {
			reason = rej.Reason
		} else {
			reason = cmdErr.Error()
		}
	case !applied:
		outcome = domain.OutcomeAborted
	}

	now := time.Now().UnixMilli()
	dec := &domain.AdmissionDecision{
		DecisionID: c.nextID(string(action)+"-"+address, now),
		Address:    address,
		Action:     action,
		Outcome:    outcome,
		Reason:     reason,
		DecidedAt:  now,
	}

	err := c.decisionStore.Insert(ctx, dec)
	observability.RecordArchiveWrite("decision", err)
	if err != nil && !errors.Is(err, history.ErrDuplicateKey) {
		c.logger.Printf("[coordinator] decision archive write failed: %v", err)
	}
}

func (c *SaleCoordinator) recordSnapshot(ctx context.Context) {
	phase := c.phases.Current()
	if phase == nil {
		return
	}
	totals := c.SaleTotals()

	snap := &domain.SaleSnapshot{
		ObservedAt:     time.Now().UnixMilli(),
		PhaseIndex:     phase.Index,
		PhaseName:      phase.Name,
		CollectedFunds: totals.CollectedFunds,
		CoinsSold:      totals.CoinsSold,
		PhaseCollected: phase.CollectedFund,
		PhaseRemaining: phase.Remaining,
	}

	err := c.snapshotStore.InsertBulk(ctx, []*domain.SaleSnapshot{snap})
	observability.RecordArchiveWrite("snapshot", err)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Printf("[coordinator] snapshot write failed: %v", err)
		}
		return
	}
	observability.RecordSnapshot()
}

// nextID builds a unique archive key from a stable prefix, a millisecond
// timestamp and a process-local sequence number.
func (c *SaleCoordinator) nextID(prefix string, ts int64) string {
	c.mu.Lock()
	c.eventSeq++
	seq := c.eventSeq
	c.mu.Unlock()
	return fmt.Sprintf("%s-%d-%d", prefix, ts, seq)
}
