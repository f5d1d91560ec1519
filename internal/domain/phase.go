package domain

import "strings"

// PhaseIndex is the ordinal position of a sale phase.
type PhaseIndex int

// The sale runs through a fixed four-phase sequence.
const (
	PhaseSeed PhaseIndex = iota
	PhasePreICO
	PhaseICO
	PhaseCompleted

	PhaseCount = 4
)

// Canonical phase names as reported by the ledger.
const (
	SeedPhaseName      = "Seed Phase"
	PreICOPhaseName    = "Pre-ICO"
	ICOPhaseName       = "ICO"
	CompletedPhaseName = "Completed"
)

// IsValid checks if the index is within the fixed phase sequence.
func (i PhaseIndex) IsValid() bool {
	return i >= PhaseSeed && i < PhaseCount
}

// Phase is the local mirror of one ledger sale phase.
// All monetary fields are fixed-point base units converted once at the
// RPC boundary; the coordinator never mutates these fields directly.
type Phase struct {
	Index         PhaseIndex
	Name          string
	CoinDenom     string // coin denomination identifier
	Allotted      CoinCount
	Remaining     CoinCount // non-increasing while active; Remaining <= Allotted
	Target        Amount
	Price         Amount // price per coin
	StartTime     int64  // unix seconds
	EndTime       int64  // unix seconds
	Active        bool
	CollectedFund Amount // non-decreasing; may exceed Target (over-subscription)
}

// IsSeedPhase reports whether a ledger-reported phase name identifies the
// seed round. The comparison is trimmed and case-insensitive because the
// ledger string is display-oriented.
func IsSeedPhase(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), SeedPhaseName)
}
