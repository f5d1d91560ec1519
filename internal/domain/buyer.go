package domain

// BuyerRecord is the contribution total for one address.
// Records are replaced wholesale with the latest queried values, never
// incrementally summed, so overlapping poll and event sources cannot
// double count.
type BuyerRecord struct {
	Address        string
	CoinsPurchased CoinCount // non-decreasing
	AmountSpent    Amount    // non-decreasing
}

// SaleTotals is the ledger's own process-wide aggregate. It is queried
// directly and never derived by summing local phase mirrors, which may
// be stale.
type SaleTotals struct {
	CollectedFunds Amount
	CoinsSold      CoinCount
}
