package domain

// Amount is a fixed-point monetary quantity in the ledger's base unit.
type Amount uint64

// CoinCount is a whole-coin quantity.
type CoinCount uint64
