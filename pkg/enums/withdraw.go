package enums

import "fmt"

// WithdrawStatus is the lifecycle state of a withdrawal request.
type WithdrawStatus string

const (
	WithdrawStatusPending   WithdrawStatus = "pending"
	WithdrawStatusApproved  WithdrawStatus = "approved"
	WithdrawStatusRejected  WithdrawStatus = "rejected"
	WithdrawStatusCompleted WithdrawStatus = "completed"
)

var validWithdrawStatuses = []WithdrawStatus{
	WithdrawStatusPending,
	WithdrawStatusApproved,
	WithdrawStatusRejected,
	WithdrawStatusCompleted,
}

// String implements fmt.Stringer.
func (w WithdrawStatus) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WithdrawStatus.
func (w WithdrawStatus) IsValid() bool {
	for _, candidate := range validWithdrawStatuses {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWithdrawStatus converts raw input into a WithdrawStatus.
func ParseWithdrawStatus(value string) (WithdrawStatus, error) {
	for _, candidate := range validWithdrawStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid withdraw status %q", value)
}

// WithdrawPaymentMethod is how a withdrawal is paid out to the party.
type WithdrawPaymentMethod string

const (
	WithdrawMethodBankTransfer WithdrawPaymentMethod = "Bank Transfer"
	WithdrawMethodUPI          WithdrawPaymentMethod = "UPI"
)

var validWithdrawPaymentMethods = []WithdrawPaymentMethod{
	WithdrawMethodBankTransfer,
	WithdrawMethodUPI,
}

// IsValid reports whether the value is a supported payout method.
func (w WithdrawPaymentMethod) IsValid() bool {
	for _, candidate := range validWithdrawPaymentMethods {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWithdrawPaymentMethod converts raw input into a WithdrawPaymentMethod.
func ParseWithdrawPaymentMethod(value string) (WithdrawPaymentMethod, error) {
	for _, candidate := range validWithdrawPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid withdraw payment method %q", value)
}
