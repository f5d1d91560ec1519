package domain

// AdmissionState is the local view of a seed-round applicant address.
type AdmissionState string

const (
	// AdmissionPending means the address applied and awaits a decision.
	AdmissionPending AdmissionState = "PENDING"
	// AdmissionAllowed means the ledger confirmed the address as a buyer.
	AdmissionAllowed AdmissionState = "ALLOWED"
	// AdmissionAbsent means the address was cancelled or never applied.
	AdmissionAbsent AdmissionState = "ABSENT"
)

// String returns the string representation of AdmissionState.
func (s AdmissionState) String() string {
	return string(s)
}
