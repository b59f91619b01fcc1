package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// AccountDetails is the payout destination stored on a withdrawal request as JSON.
type AccountDetails struct {
	AccountHolderName string `json:"accountHolderName,omitempty"`
	AccountNumber     string `json:"accountNumber,omitempty"`
	IFSCCode          string `json:"ifscCode,omitempty"`
	BankName          string `json:"bankName,omitempty"`
	UPIID             string `json:"upiId,omitempty"`
}

// Value marshals AccountDetails for a json/jsonb column.
func (a AccountDetails) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes the stored JSON document.
func (a *AccountDetails) Scan(value interface{}) error {
	if value == nil {
		*a = AccountDetails{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("account details: unsupported type %T", value)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		*a = AccountDetails{}
		return nil
	}
	return json.Unmarshal(raw, a)
}

// HasBankAccount reports whether the bank transfer fields are filled in.
func (a AccountDetails) HasBankAccount() bool {
	return strings.TrimSpace(a.AccountHolderName) != "" &&
		strings.TrimSpace(a.AccountNumber) != "" &&
		strings.TrimSpace(a.IFSCCode) != ""
}

// HasUPI reports whether a UPI handle is present.
func (a AccountDetails) HasUPI() bool {
	return strings.TrimSpace(a.UPIID) != ""
}
