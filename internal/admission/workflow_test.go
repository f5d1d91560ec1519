package admission

import (
	"context"
	"testing"

	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/ledger"
	"tokensale-coordinator/internal/ledger/stub"
)

func TestRefresh_ReplacesBothSets(t *testing.T) {
	l := stub.New()
	l.Pending = []string{"alice", "bob"}
	l.Allowed = []string{"carol"}
	w := New(l, nil, nil)
	ctx := context.Background()

	if err := w.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if got := w.Pending(); len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("pending = %v", got)
	}
	if got := w.Allowed(); len(got) != 1 || got[0] != "carol" {
		t.Errorf("allowed = %v", got)
	}

	// A later refresh replaces, never merges.
	l.Pending = []string{"dave"}
	if err := w.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := w.Pending(); len(got) != 1 || got[0] != "dave" {
		t.Errorf("pending after replace = %v", got)
	}
}

func TestConfirm(t *testing.T) {
	l := stub.New()
	l.Pending = []string{"alice", "bob"}
	w := New(l, nil, nil)
	ctx := context.Background()

	if err := w.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	applied, err := w.Confirm(ctx, "alice")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !applied {
		t.Fatal("expected confirm to apply")
	}

	if l.Calls("admitApplicant") != 1 {
		t.Errorf("expected 1 admit command, got %d", l.Calls("admitApplicant"))
	}
	// Post-command resync re-queries both lists.
	if l.Calls("pendingApplicants") < 2 || l.Calls("allowedApplicants") < 2 {
		t.Error("confirm did not resync from the ledger")
	}

	if got := w.State("alice"); got != domain.AdmissionAllowed {
		t.Errorf("state(alice) = %v, want allowed", got)
	}
	if got := w.Pending(); len(got) != 1 || got[0] != "bob" {
		t.Errorf("pending = %v, want [bob]", got)
	}
}

func TestConfirm_GateAbort(t *testing.T) {
	l := stub.New()
	l.Pending = []string{"alice"}
	deny := GateFunc(func(string, string) bool { return false })
	w := New(l, deny, nil)
	ctx := context.Background()

	if err := w.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	applied, err := w.Confirm(ctx, "alice")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if applied {
		t.Error("gate abort still applied")
	}
	if l.Calls("admitApplicant") != 0 {
		t.Errorf("aborted confirm reached the ledger: %d calls", l.Calls("admitApplicant"))
	}
	if got := w.State("alice"); got != domain.AdmissionPending {
		t.Errorf("state(alice) = %v, want pending", got)
	}
}

func TestConfirm_CommandFailureLeavesPending(t *testing.T) {
	l := stub.New()
	l.Pending = []string{"alice"}
	l.RejectWith["admitApplicant"] = "Address has not applied"
	w := New(l, nil, nil)
	ctx := context.Background()

	if err := w.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	applied, err := w.Confirm(ctx, "alice")
	if err == nil {
		t.Fatal("expected command failure")
	}
	if applied {
		t.Error("failed confirm reported as applied")
	}
	if _, ok := ledger.IsRejection(err); !ok {
		t.Errorf("expected rejection, got %v", err)
	}
	if got := w.State("alice"); got != domain.AdmissionPending {
		t.Errorf("state(alice) = %v, want pending untouched", got)
	}
}

func TestConfirm_ConcurrentDoubleConfirm(t *testing.T) {
	l := stub.New()
	l.Pending = []string{"alice"}
	w := New(l, nil, nil)
	ctx := context.Background()

	if err := w.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// Admission is idempotent on the ledger; both racing confirms
	// succeed and converge to the same resynced state.
	if _, err := w.Confirm(ctx, "alice"); err != nil {
		t.Fatalf("first Confirm: %v", err)
	}
	if _, err := w.Confirm(ctx, "alice"); err != nil {
		t.Fatalf("second Confirm: %v", err)
	}

	if got := w.Allowed(); len(got) != 1 || got[0] != "alice" {
		t.Errorf("allowed = %v, want exactly [alice]", got)
	}
}

func TestCancel_NoLedgerCommand(t *testing.T) {
	l := stub.New()
	l.Pending = []string{"alice", "bob"}
	w := New(l, nil, nil)
	ctx := context.Background()

	if err := w.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	before := l.CommandCalls()
	applied, err := w.Cancel(ctx, "alice")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !applied {
		t.Fatal("expected cancel to apply")
	}
	if l.CommandCalls() != before {
		t.Errorf("cancel issued %d ledger commands, want 0", l.CommandCalls()-before)
	}
}

func TestCancel_ResyncBringsLedgerStateBack(t *testing.T) {
	l := stub.New()
	l.Pending = []string{"alice", "bob"}
	w := New(l, nil, nil)
	ctx := context.Background()

	if err := w.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// The ledger still lists alice as applied, so the post-cancel
	// re-query restores her: cancellation is advisory.
	if _, err := w.Cancel(ctx, "alice"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if got := w.State("alice"); got != domain.AdmissionPending {
		t.Errorf("state(alice) = %v, want pending after resync", got)
	}
}
