package oddsmath

import (
	"errors"
	"fmt"
	"math"
)

// ErrZeroOdds is returned for an American price of 0, which quotes nothing.
var ErrZeroOdds = errors.New("invalid American odds: cannot be 0")

// ImpliedProbability converts American odds to the probability the price implies.
// +150 → 0.4
// -120 → 0.5454...
func ImpliedProbability(american int) (float64, error) {
	if american == 0 {
		return 0, ErrZeroOdds
	}
	if american > 0 {
		return 100.0 / (float64(american) + 100.0), nil
	}
	abs := math.Abs(float64(american))
	return abs / (abs + 100.0), nil
}

// Payout returns the total return of a winning stake, principal included.
// stake 40 at +150 → 100
// stake 60 at -150 → 100
func Payout(stake float64, american int) (float64, error) {
	if american == 0 {
		return 0, ErrZeroOdds
	}
	if american > 0 {
		return stake + stake*float64(american)/100.0, nil
	}
	return stake + stake*100.0/math.Abs(float64(american)), nil
}

// ToDecimal converts American odds to decimal odds.
// American +150 → Decimal 2.50
// American -150 → Decimal 1.67
func ToDecimal(american int) (float64, error) {
	if american == 0 {
		return 0, ErrZeroOdds
	}
	if american > 0 {
		return float64(american)/100.0 + 1.0, nil
	}
	return 100.0/float64(-american) + 1.0, nil
}

// ProfitPercent is the return over the combined stake implied by a total
// implied probability. Negative values describe a guaranteed loss.
func ProfitPercent(totalImplied float64) (float64, error) {
	if totalImplied <= 0 {
		return 0, fmt.Errorf("invalid total implied probability: %v", totalImplied)
	}
	return (1 - totalImplied) / totalImplied * 100, nil
}
