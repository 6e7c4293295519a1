package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Round2 rounds x to two decimal places, half away from zero. x is read as
// the shortest decimal that round-trips to the same float64, so 1.005 rounds
// to 1.01 and 2.675 to 2.68. NaN and infinities are returned unchanged.
func Round2(x float64) float64 {
	if !finite(x) {
		return x
	}
	r, _ := decimal.NewFromFloat(x).Round(2).Float64()
	if r == 0 {
		return 0
	}
	return r
}

// FormatAmount renders an amount with exactly two decimals.
func FormatAmount(x float64) string {
	if !finite(x) {
		return "0.00"
	}
	return decimal.NewFromFloat(x).StringFixed(2)
}

// MinorUnits converts an amount to integer minor units (cents), rounding to
// the cent first.
func MinorUnits(x float64) int64 {
	if !finite(x) {
		return 0
	}
	return decimal.NewFromFloat(x).Round(2).Shift(2).IntPart()
}
