package enums

import "fmt"

// AgreementStatus tracks an agreement request. pending is the only
// non-terminal state.
type AgreementStatus string

const (
	AgreementStatusPending  AgreementStatus = "pending"
	AgreementStatusAccepted AgreementStatus = "accepted"
	AgreementStatusRejected AgreementStatus = "rejected"
)

var validAgreementStatuses = []AgreementStatus{
	AgreementStatusPending,
	AgreementStatusAccepted,
	AgreementStatusRejected,
}

// String implements fmt.Stringer.
func (a AgreementStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AgreementStatus.
func (a AgreementStatus) IsValid() bool {
	for _, candidate := range validAgreementStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsActive reports whether the status blocks another request for the same
// tenant and apartment.
func (a AgreementStatus) IsActive() bool {
	return a == AgreementStatusPending || a == AgreementStatusAccepted
}

// IsTerminal reports whether no further transition is allowed.
func (a AgreementStatus) IsTerminal() bool {
	return a == AgreementStatusAccepted || a == AgreementStatusRejected
}

// ParseAgreementStatus converts raw input into an AgreementStatus.
func ParseAgreementStatus(value string) (AgreementStatus, error) {
	for _, candidate := range validAgreementStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid agreement status %q", value)
}
