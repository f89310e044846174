// Package types holds the value types of the ledger: exact money amounts
// and whole-unit quantities.
package types

import "github.com/shopspring/decimal"

// Money is an exact decimal amount. Prices, costs, revenue and profit never
// pass through float64.
type Money = decimal.Decimal

func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney is NewMoneyFromString for literals; it panics on bad input.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

func Zero() Money { return decimal.Zero }

// MulQty is unit * qty, e.g. a sale's total from its price snapshot.
func MulQty(unit Money, qty int64) Money {
	return unit.Mul(decimal.NewFromInt(qty))
}
