package ledger

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRejection(t *testing.T) {
	rej := &RejectionError{Op: "endStage", Reason: "Sale is already stopped"}
	wrapped := fmt.Errorf("command failed: %w", rej)

	got, ok := IsRejection(wrapped)
	if !ok {
		t.Fatal("expected wrapped rejection to be detected")
	}
	if got.Reason != rej.Reason {
		t.Errorf("reason = %q, want %q", got.Reason, rej.Reason)
	}

	if _, ok := IsRejection(errors.New("plain")); ok {
		t.Error("plain error detected as rejection")
	}
}

func TestClassifyEndStage(t *testing.T) {
	rej := &RejectionError{Op: "endStage", Reason: "Sale is already stopped"}
	if err := ClassifyEndStage(rej); !errors.Is(err, ErrAlreadyEnded) {
		t.Errorf("ClassifyEndStage = %v, want ErrAlreadyEnded", err)
	}

	// Reason comparison tolerates surrounding whitespace.
	padded := &RejectionError{Op: "endStage", Reason: "  Sale is already stopped "}
	if err := ClassifyEndStage(padded); !errors.Is(err, ErrAlreadyEnded) {
		t.Errorf("ClassifyEndStage(padded) = %v, want ErrAlreadyEnded", err)
	}

	other := &RejectionError{Op: "endStage", Reason: "No active stage"}
	if err := ClassifyEndStage(other); errors.Is(err, ErrAlreadyEnded) {
		t.Error("unrelated rejection classified as ErrAlreadyEnded")
	}

	plain := errors.New("network down")
	if err := ClassifyEndStage(plain); err != plain {
		t.Errorf("non-rejection error changed: %v", err)
	}
}

func TestClassifyFinalize(t *testing.T) {
	rej := &RejectionError{Op: "finalizeSale", Reason: "Sale already finalized"}
	if err := ClassifyFinalize(rej); !errors.Is(err, ErrAlreadyFinalized) {
		t.Errorf("ClassifyFinalize = %v, want ErrAlreadyFinalized", err)
	}

	other := &RejectionError{Op: "finalizeSale", Reason: "Target not reached"}
	if err := ClassifyFinalize(other); errors.Is(err, ErrAlreadyFinalized) {
		t.Error("unrelated rejection classified as ErrAlreadyFinalized")
	}
}

func TestClassifyPurchase(t *testing.T) {
	rej := &RejectionError{Op: "purchaseCoins", Reason: "Sale has ended"}
	err := ClassifyPurchase(rej)
	if !errors.Is(err, ErrStaleView) {
		t.Fatalf("ClassifyPurchase = %v, want ErrStaleView", err)
	}
	// The ledger's reason stays visible to the operator.
	if got := err.Error(); got == ErrStaleView.Error() {
		t.Errorf("classified error lost the ledger reason: %q", got)
	}

	other := &RejectionError{Op: "purchaseCoins", Reason: "Insufficient payment"}
	if err := ClassifyPurchase(other); errors.Is(err, ErrStaleView) {
		t.Error("unrelated rejection classified as ErrStaleView")
	}
}
