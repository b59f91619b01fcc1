// Package money holds the rounding and tolerance rules shared by every
// settlement computation. Amounts are decimals in the major currency unit.
package money

import "github.com/shopspring/decimal"

// Epsilon absorbs rounding drift when comparing settled amounts.
var Epsilon = decimal.New(1, -2)

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns base * rate / 100 rounded to two places.
func Percent(base, rate decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(rate).Div(hundred))
}

// AtLeast reports whether have covers want within the tolerance.
func AtLeast(have, want, epsilon decimal.Decimal) bool {
	return have.GreaterThanOrEqual(want.Sub(epsilon))
}

// Negligible reports whether d is within the tolerance of zero.
func Negligible(d, epsilon decimal.Decimal) bool {
	return d.LessThanOrEqual(epsilon)
}

// ClampZero returns d or zero when d is negative.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ToMinorUnits converts to cents (paise) for payment providers.
func ToMinorUnits(d decimal.Decimal) int64 {
	return Round2(d).Mul(hundred).IntPart()
}

// FromMinorUnits converts provider cents back to a decimal amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
