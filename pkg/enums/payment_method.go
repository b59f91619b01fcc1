package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod describes how a customer settles an order. COD orders leave
// the customer's cash with the delivery partner until it is remitted.
type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodOnline PaymentMethod = "online"
)

func (p PaymentMethod) String() string {
	return string(p)
}

func (p PaymentMethod) IsValid() bool {
	return p == PaymentMethodCOD || p == PaymentMethodOnline
}

// CollectsCash reports whether the delivery partner takes the customer's
// money at the door.
func (p PaymentMethod) CollectsCash() bool {
	return p == PaymentMethodCOD
}

// ParsePaymentMethod accepts the stored value in any case ("COD", "Online").
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(value)))
	if !method.IsValid() {
		return "", fmt.Errorf("invalid payment method %q", value)
	}
	return method, nil
}
