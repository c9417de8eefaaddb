// Package odds converts between decimal odds, American odds, implied
// probability and potential payout. All functions are pure.
package odds

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// NotApplicable is returned where a conversion has no defined result, for
// example American odds for a decimal price at or below even money stake.
const NotApplicable = "N/A"

// DecimalToAmerican converts decimal odds to the signed American form.
// Decimal odds of 2.00 or better are favorites-out ("+150"); odds between
// 1 and 2 are expressed as the amount to stake per 100 won ("-200").
func DecimalToAmerican(d float64) string {
	if d <= 1 {
		return NotApplicable
	}
	if d >= 2 {
		return fmt.Sprintf("%+d", int(math.Round((d-1)*100)))
	}
	return fmt.Sprintf("%+d", -int(math.Round(100/(d-1))))
}

// AmericanToDecimal converts a signed American odds string ("+110", "-150")
// back to decimal odds. "0" maps to 1.
func AmericanToDecimal(a string) (float64, error) {
	n, err := strconv.Atoi(a)
	if err != nil {
		return 0, fmt.Errorf("invalid american odds %q: %w", a, err)
	}
	switch {
	case n == 0:
		return 1, nil
	case n > 0:
		return float64(n)/100 + 1, nil
	default:
		return 100/math.Abs(float64(n)) + 1, nil
	}
}

// ImpliedProbability returns the probability implied by decimal odds
func ImpliedProbability(d float64) float64 {
	if d <= 0 {
		return 0
	}
	return 1 / d
}

// PotentialWinnings returns the profit on a stake at the given decimal
// odds, formatted to four decimal places. The stake is taken as a string
// so points amounts survive without float rounding.
func PotentialWinnings(stake string, d float64) string {
	if d <= 1 {
		return NotApplicable
	}
	s, err := decimal.NewFromString(stake)
	if err != nil {
		return NotApplicable
	}
	return s.Mul(decimal.NewFromFloat(d)).Sub(s).StringFixed(4)
}
