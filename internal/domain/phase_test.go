package domain

import "testing"

func TestIsSeedPhase(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"Seed Phase", true},
		{"seed phase", true},
		{"  Seed Phase  ", true},
		{"SEED PHASE", true},
		{"Pre-ICO", false},
		{"ICO", false},
		{"Completed", false},
		{"", false},
		{"Seed", false},
	}

	for _, tc := range cases {
		if got := IsSeedPhase(tc.name); got != tc.want {
			t.Errorf("IsSeedPhase(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestPhaseIndexIsValid(t *testing.T) {
	if !PhaseSeed.IsValid() || !PhaseCompleted.IsValid() {
		t.Error("expected endpoints of the phase sequence to be valid")
	}
	if PhaseIndex(-1).IsValid() {
		t.Error("expected negative index to be invalid")
	}
	if PhaseIndex(PhaseCount).IsValid() {
		t.Error("expected index past the sequence to be invalid")
	}
}
