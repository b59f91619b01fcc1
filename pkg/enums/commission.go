package enums

import "fmt"

// CommissionType selects which party a commission leg belongs to.
type CommissionType string

const (
	CommissionTypeSeller      CommissionType = "seller"
	CommissionTypeDeliveryBoy CommissionType = "delivery_boy"
)

var validCommissionTypes = []CommissionType{
	CommissionTypeSeller,
	CommissionTypeDeliveryBoy,
}

// IsValid reports whether the value is a known CommissionType.
func (c CommissionType) IsValid() bool {
	for _, candidate := range validCommissionTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCommissionType converts raw input into a CommissionType.
func ParseCommissionType(value string) (CommissionType, error) {
	for _, candidate := range validCommissionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission type %q", value)
}

// PartyType maps a commission leg to the wallet that receives it.
func (c CommissionType) PartyType() PartyType {
	if c == CommissionTypeDeliveryBoy {
		return PartyDeliveryBoy
	}
	return PartySeller
}

// CommissionStatus is the settlement state of a commission leg.
type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusPaid      CommissionStatus = "paid"
	CommissionStatusCancelled CommissionStatus = "cancelled"
)

var validCommissionStatuses = []CommissionStatus{
	CommissionStatusPending,
	CommissionStatusPaid,
	CommissionStatusCancelled,
}

// IsValid reports whether the value is a known CommissionStatus.
func (c CommissionStatus) IsValid() bool {
	for _, candidate := range validCommissionStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCommissionStatus converts raw input into a CommissionStatus.
func ParseCommissionStatus(value string) (CommissionStatus, error) {
	for _, candidate := range validCommissionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission status %q", value)
}
