package domain

// ObservedPurchase is one purchase notification as received by the
// coordinator, archived for charting and audit. The archive is
// write-only from the coordinator's point of view: it is never read
// back to rebuild state, which always comes from the ledger.
type ObservedPurchase struct {
	EventID    string // deterministic: buyer + receive timestamp
	Buyer      string
	Amount     CoinCount
	TotalSpent Amount
	ReceivedAt int64 // unix milliseconds
}

// DecisionAction is the operator action taken on an applicant.
type DecisionAction string

const (
	DecisionConfirm DecisionAction = "CONFIRM"
	DecisionCancel  DecisionAction = "CANCEL"
)

// DecisionOutcome is how an admission action concluded.
type DecisionOutcome string

const (
	OutcomeApplied  DecisionOutcome = "APPLIED"
	OutcomeRejected DecisionOutcome = "REJECTED"
	OutcomeAborted  DecisionOutcome = "ABORTED"
)

// AdmissionDecision is one operator decision on a seed-round applicant.
type AdmissionDecision struct {
	DecisionID string
	Address    string
	Action     DecisionAction
	Outcome    DecisionOutcome
	Reason     string // ledger rejection reason, if any
	DecidedAt  int64  // unix milliseconds
}

// SaleSnapshot is one polled observation of the sale-wide and
// active-phase totals, archived as a timeseries.
type SaleSnapshot struct {
	ObservedAt     int64 // unix milliseconds
	PhaseIndex     PhaseIndex
	PhaseName      string
	CollectedFunds Amount
	CoinsSold      CoinCount
	PhaseCollected Amount
	PhaseRemaining CoinCount
}
