package db

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Increment adds delta to column in place.
func Increment(column string, delta decimal.Decimal) clause.Expr {
	return gorm.Expr(column+" + ?", delta)
}

// IncrementClamped adds delta to column in place and floors the result at zero.
func IncrementClamped(column string, delta decimal.Decimal) clause.Expr {
	if !delta.IsNegative() {
		return Increment(column, delta)
	}
	return gorm.Expr("CASE WHEN "+column+" + ? < 0 THEN 0 ELSE "+column+" + ? END", delta, delta)
}
