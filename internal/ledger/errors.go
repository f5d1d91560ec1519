package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the command/query surface.
var (
	// ErrUnreachable wraps transport-level failures. Polls treat it as
	// retryable on the next scheduled tick; it is never fatal.
	ErrUnreachable = errors.New("ledger unreachable")

	// ErrInvalidArgument is returned by local pre-validation. The request
	// never reaches the ledger.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyEnded is the recognized rejection for ending a phase that
	// the ledger already stopped. A benign idempotent no-op.
	ErrAlreadyEnded = errors.New("sale is already stopped")

	// ErrAlreadyFinalized is the recognized rejection for finalizing a
	// sale the ledger already finalized.
	ErrAlreadyFinalized = errors.New("sale already finalized")

	// ErrStaleView means an optimistic local pre-check passed but the
	// ledger rejected the command. The caller should force a refresh
	// before retrying.
	ErrStaleView = errors.New("stale view: refresh and retry")
)

// Rejection reason strings the ledger is known to emit.
const (
	reasonAlreadyStopped   = "Sale is already stopped"
	reasonAlreadyFinalized = "Sale already finalized"
	reasonSaleEnded        = "Sale has ended"
)

// RejectionError is a business-rule rejection from the ledger. The reason
// is surfaced to the operator verbatim.
type RejectionError struct {
	Op     string // RPC method that was rejected
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason)
}

// IsRejection reports whether err is a ledger rejection and returns it.
func IsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// ClassifyEndStage maps the known "already stopped" rejection to
// ErrAlreadyEnded; all other errors pass through unchanged.
func ClassifyEndStage(err error) error {
	if rej, ok := IsRejection(err); ok {
		if strings.TrimSpace(rej.Reason) == reasonAlreadyStopped {
			return ErrAlreadyEnded
		}
	}
	return err
}

// ClassifyFinalize maps the known "already finalized" rejection to
// ErrAlreadyFinalized; all other errors pass through unchanged.
func ClassifyFinalize(err error) error {
	if rej, ok := IsRejection(err); ok {
		if strings.TrimSpace(rej.Reason) == reasonAlreadyFinalized {
			return ErrAlreadyFinalized
		}
	}
	return err
}

// ClassifyPurchase maps the "sale has ended" rejection to ErrStaleView:
// the local pre-check passed on stale phase data and the ledger knows
// better. Other errors pass through unchanged.
func ClassifyPurchase(err error) error {
	if rej, ok := IsRejection(err); ok {
		if strings.TrimSpace(rej.Reason) == reasonSaleEnded {
			return fmt.Errorf("%w: %s", ErrStaleView, rej.Reason)
		}
	}
	return err
}
