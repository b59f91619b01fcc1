package enums

import "fmt"

// Role is the actor role carried in access tokens.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSeller   Role = "seller"
	RoleDelivery Role = "delivery"
)

var validRoles = []Role{
	RoleAdmin,
	RoleSeller,
	RoleDelivery,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

// PartyType returns the wallet owner kind for party roles.
func (r Role) PartyType() (PartyType, bool) {
	switch r {
	case RoleSeller:
		return PartySeller, true
	case RoleDelivery:
		return PartyDeliveryBoy, true
	default:
		return "", false
	}
}
