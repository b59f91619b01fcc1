package enums

import "fmt"

// PayoutStatus tracks a delivery partner's COD remittance.
type PayoutStatus string

const (
	PayoutStatusCreated  PayoutStatus = "created"
	PayoutStatusCaptured PayoutStatus = "captured"
	PayoutStatusFailed   PayoutStatus = "failed"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusCreated,
	PayoutStatusCaptured,
	PayoutStatusFailed,
}

// IsValid reports whether the value is a known PayoutStatus.
func (p PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
