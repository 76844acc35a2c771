package money

import "github.com/shopspring/decimal"

// All monetary amounts flow through shopspring/decimal; float64 is never
// used for money. Rounding is half-up to 2 decimal places everywhere so
// splits are deterministic.

var Zero = decimal.Zero

// RoundHalfUp rounds to 2 decimal places with ties away from zero.
func RoundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns pct percent of amount, rounded half-up to 2dp.
// pct is an integer 0..100.
func Percent(amount decimal.Decimal, pct int) decimal.Decimal {
	p := decimal.NewFromInt(int64(pct)).Div(decimal.NewFromInt(100))
	return RoundHalfUp(amount.Mul(p))
}

// FromString parses a client-supplied amount. Invalid input yields ok=false.
func FromString(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ToCents converts an amount to integer cents for the payment gateway,
// which speaks minor units only.
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromCents converts gateway minor units back to a decimal amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.NewFromInt(c).Div(decimal.NewFromInt(100))
}

// EqualWithin reports whether a and b differ by at most tol. Used for the
// expected_total staleness check at payment time.
func EqualWithin(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}
