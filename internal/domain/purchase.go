package domain

// PurchaseEvent is a discrete purchase notification from the ledger.
// Delivery is at most once per event with no ordering guarantee relative
// to polling, so the derived totals in the payload are advisory only:
// consumers must re-query the authoritative buyer record.
type PurchaseEvent struct {
	Buyer      string
	Amount     CoinCount // coins bought in this purchase
	TotalSpent Amount    // buyer's running total as seen by the event
	ReceivedAt int64     // local receive timestamp, unix milliseconds
}
