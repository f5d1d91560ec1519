package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"tokensale-coordinator/internal/admission"
	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/history/memory"
	"tokensale-coordinator/internal/ledger"
	"tokensale-coordinator/internal/ledger/stub"
)

func newStarted(t *testing.T, l *stub.Ledger, opts Options) *SaleCoordinator {
	t.Helper()

	opts.Ledger = l
	coord, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := coord.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		if err := coord.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return coord
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestStart_RequiresLedger(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error for missing ledger client")
	}
}

func TestStart_InitialSync(t *testing.T) {
	l := stub.New()
	l.Owner = "owner-wallet"
	l.Pending = []string{"alice"}
	coord := newStarted(t, l, Options{})

	p := coord.CurrentPhase()
	if p == nil || p.Index != domain.PhaseSeed {
		t.Fatalf("current phase = %+v, want seed", p)
	}
	if got := len(coord.PhaseOverview()); got != domain.PhaseCount {
		t.Errorf("overview has %d phases, want %d", got, domain.PhaseCount)
	}
	if coord.OwnerAddress() != "owner-wallet" {
		t.Errorf("owner = %q", coord.OwnerAddress())
	}
	if got := coord.PendingApplicants(); len(got) != 1 || got[0] != "alice" {
		t.Errorf("pending = %v", got)
	}
	if !coord.IsSeedPhaseActive() {
		t.Error("expected seed phase to be active")
	}
}

func TestRecordPurchase_LocalPrecheck(t *testing.T) {
	l := stub.New()
	l.Phases[0].Remaining = 100
	coord := newStarted(t, l, Options{})

	before := l.CommandCalls()

	err := coord.RecordPurchase(context.Background(), 150)
	if !errors.Is(err, ledger.ErrInvalidArgument) {
		t.Fatalf("RecordPurchase(150) = %v, want ErrInvalidArgument", err)
	}

	err = coord.RecordPurchase(context.Background(), 0)
	if !errors.Is(err, ledger.ErrInvalidArgument) {
		t.Fatalf("RecordPurchase(0) = %v, want ErrInvalidArgument", err)
	}

	// Rejected requests never reach the ledger.
	if l.CommandCalls() != before {
		t.Errorf("pre-check rejection issued %d ledger commands", l.CommandCalls()-before)
	}
}

func TestRecordPurchase(t *testing.T) {
	l := stub.New()
	l.Sender = "alice"
	coord := newStarted(t, l, Options{})

	if err := coord.RecordPurchase(context.Background(), 10); err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}

	// Payment is derived from the mirrored price: 10 coins at 1000.
	rec := l.Buyers["alice"]
	if rec.CoinsPurchased != 10 || rec.AmountSpent != 10000 {
		t.Errorf("ledger record = %+v, want coins=10 spent=10000", rec)
	}

	// The post-command refresh pulls the new totals.
	totals := coord.SaleTotals()
	if totals.CollectedFunds != 10000 || totals.CoinsSold != 10 {
		t.Errorf("totals = %+v", totals)
	}
	if p := coord.CurrentPhase(); p.Remaining != 990 {
		t.Errorf("phase remaining = %d, want 990", p.Remaining)
	}
}

func TestRecordPurchase_StaleViewClassification(t *testing.T) {
	l := stub.New()
	coord := newStarted(t, l, Options{})

	// The ledger ends the sale behind the coordinator's back; the local
	// mirror still believes the phase is open.
	l.Ended = true

	err := coord.RecordPurchase(context.Background(), 10)
	if !errors.Is(err, ledger.ErrStaleView) {
		t.Fatalf("RecordPurchase = %v, want ErrStaleView", err)
	}
}

func TestFinalizeSale_SecondCallIsAlreadyFinalized(t *testing.T) {
	l := stub.New()
	coord := newStarted(t, l, Options{})
	ctx := context.Background()

	if err := coord.FinalizeSale(ctx); err != nil {
		t.Fatalf("first FinalizeSale: %v", err)
	}
	if !coord.Finalized() {
		t.Error("coordinator did not record the finalize")
	}

	err := coord.FinalizeSale(ctx)
	if !errors.Is(err, ledger.ErrAlreadyFinalized) {
		t.Errorf("second FinalizeSale = %v, want ErrAlreadyFinalized", err)
	}
}

func TestApplySeedRound_ValidatesAddress(t *testing.T) {
	l := stub.New()
	coord := newStarted(t, l, Options{})

	err := coord.ApplySeedRound(context.Background(), "not-a-wallet")
	if !errors.Is(err, ledger.ErrInvalidArgument) {
		t.Fatalf("ApplySeedRound = %v, want ErrInvalidArgument", err)
	}
	if l.Calls("applySeedRound") != 0 {
		t.Errorf("malformed address reached the ledger: %d calls", l.Calls("applySeedRound"))
	}
}

func TestApplySeedRound(t *testing.T) {
	l := stub.New()
	coord := newStarted(t, l, Options{})

	// System program address: well-formed and on-curve.
	addr := "11111111111111111111111111111111"
	if err := coord.ApplySeedRound(context.Background(), addr); err != nil {
		t.Fatalf("ApplySeedRound: %v", err)
	}

	if got := coord.PendingApplicants(); len(got) != 1 || got[0] != addr {
		t.Errorf("pending = %v, want [%s]", got, addr)
	}
}

func TestConfirmApplicant_ArchivesDecision(t *testing.T) {
	l := stub.New()
	l.Pending = []string{"alice"}
	decisions := memory.NewAdmissionDecisionStore()
	coord := newStarted(t, l, Options{Decisions: decisions})
	ctx := context.Background()

	applied, err := coord.ConfirmApplicant(ctx, "alice")
	if err != nil || !applied {
		t.Fatalf("ConfirmApplicant = %v, %v", applied, err)
	}

	recs, err := decisions.GetByAddress(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByAddress: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(recs))
	}
	if recs[0].Action != domain.DecisionConfirm || recs[0].Outcome != domain.OutcomeApplied {
		t.Errorf("decision = %+v", recs[0])
	}
}

func TestConfirmApplicant_GateAbortArchived(t *testing.T) {
	l := stub.New()
	l.Pending = []string{"alice"}
	decisions := memory.NewAdmissionDecisionStore()
	deny := admission.GateFunc(func(string, string) bool { return false })
	coord := newStarted(t, l, Options{Decisions: decisions, Gate: deny})
	ctx := context.Background()

	applied, err := coord.ConfirmApplicant(ctx, "alice")
	if err != nil {
		t.Fatalf("ConfirmApplicant: %v", err)
	}
	if applied {
		t.Error("gate abort still applied")
	}

	recs, _ := decisions.GetByAddress(ctx, "alice")
	if len(recs) != 1 || recs[0].Outcome != domain.OutcomeAborted {
		t.Errorf("decisions = %+v, want one aborted", recs)
	}
}

func TestPurchaseEvent_RefetchesBuyer(t *testing.T) {
	l := stub.New()
	l.Sender = "alice"
	purchases := memory.NewPurchaseEventStore()
	coord := newStarted(t, l, Options{Subscriber: l, Purchases: purchases})

	// A purchase lands on the ledger and a notification fires. The
	// coordinator must re-fetch the record rather than trust the payload.
	if err := l.PurchaseCoins(context.Background(), 25, 25000); err != nil {
		t.Fatalf("PurchaseCoins: %v", err)
	}

	eventually(t, func() bool {
		rec, ok := coord.Buyer("alice")
		return ok && rec.CoinsPurchased == 25 && rec.AmountSpent == 25000
	}, "buyer record never converged on the ledger's totals")

	eventually(t, func() bool {
		obs, err := purchases.GetByBuyer(context.Background(), "alice")
		return err == nil && len(obs) == 1
	}, "purchase observation never archived")
}

func TestAdvancePhase(t *testing.T) {
	l := stub.New()
	coord := newStarted(t, l, Options{})

	if err := coord.AdvancePhase(context.Background()); err != nil {
		t.Fatalf("AdvancePhase: %v", err)
	}
	if p := coord.CurrentPhase(); p.Index != domain.PhasePreICO {
		t.Errorf("current index = %d, want %d", p.Index, domain.PhasePreICO)
	}
	if coord.IsSeedPhaseActive() {
		t.Error("seed phase still reported active after advance")
	}
}

func TestEndPhase_BenignRepeat(t *testing.T) {
	l := stub.New()
	coord := newStarted(t, l, Options{})
	ctx := context.Background()

	if err := coord.EndPhase(ctx); err != nil {
		t.Fatalf("first EndPhase: %v", err)
	}
	if err := coord.EndPhase(ctx); !errors.Is(err, ledger.ErrAlreadyEnded) {
		t.Errorf("second EndPhase = %v, want ErrAlreadyEnded", err)
	}
}
