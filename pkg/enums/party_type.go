package enums

import "fmt"

// PartyType identifies the kind of wallet owner.
type PartyType string

const (
	PartySeller      PartyType = "seller"
	PartyDeliveryBoy PartyType = "delivery_boy"
)

var validPartyTypes = []PartyType{
	PartySeller,
	PartyDeliveryBoy,
}

// String implements fmt.Stringer.
func (p PartyType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PartyType.
func (p PartyType) IsValid() bool {
	for _, candidate := range validPartyTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePartyType converts raw input into a PartyType.
func ParsePartyType(value string) (PartyType, error) {
	for _, candidate := range validPartyTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid party type %q", value)
}
