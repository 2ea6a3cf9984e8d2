package entities

import "github.com/shopspring/decimal"

// Tolerances absorb rounding from proportional splits
var (
	// FractionTolerance bounds how far a batch's fraction sum may drift from 1.
	FractionTolerance = decimal.RequireFromString("0.000005")
	// VolumeTolerance bounds volume comparisons (capacity, totals, sums).
	VolumeTolerance = decimal.RequireFromString("0.001")
	// CostTolerance bounds material cost comparisons.
	CostTolerance = decimal.RequireFromString("0.01")
)

var hundred = decimal.NewFromInt(100)

// WithinTolerance reports whether |a - b| <= tol
func WithinTolerance(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

// ExceedsBy reports whether value is greater than limit by more than tol
func ExceedsBy(value, limit, tol decimal.Decimal) bool {
	return value.GreaterThan(limit.Add(tol))
}

// PercentOf returns value * percent / 100
func PercentOf(value, percent decimal.Decimal) decimal.Decimal {
	return value.Mul(percent).Div(hundred)
}

// SumDecimals adds up a slice of decimals
func SumDecimals(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
