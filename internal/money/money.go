// Package money centralizes the fixed-point arithmetic rules for the bank.
// All balances and amounts are decimals with two fraction digits; every
// intermediate result that lands on an account or the ledger goes through
// Round2 (half-up on the minor unit).
package money

import "github.com/shopspring/decimal"

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// Round2 rounds to the currency's minor unit. decimal.Round rounds half
// away from zero, which is half-up for the non-negative amounts the
// engine produces.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MustParse turns a literal like "902.58" into a Decimal and panics on
// malformed input. Only used for constants and test fixtures.
func MustParse(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// IsNegative reports whether d is strictly below zero.
func IsNegative(d decimal.Decimal) bool {
	return d.Sign() < 0
}

// IsPositive reports whether d is strictly above zero.
func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}
