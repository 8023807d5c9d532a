package arbitrage

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"sports-arb-scanner/internal/odds"
)

var (
	// ErrTooFewLegs is returned when fewer than two outcomes are priced.
	ErrTooFewLegs = errors.New("arbitrage: at least two legs required")
	// ErrInvalidPrice is returned for prices that are not valid decimal odds.
	ErrInvalidPrice = errors.New("arbitrage: invalid decimal price")
	// ErrSameOutcome is returned when a leg pair covers the same outcome twice.
	ErrSameOutcome = errors.New("arbitrage: legs cover the same outcome")
)

// InverseSum returns Σ 1/p over the prices.
func InverseSum(prices ...float64) (float64, error) {
	if len(prices) < 2 {
		return 0, ErrTooFewLegs
	}
	sum := 0.0
	for _, p := range prices {
		if !odds.ValidPrice(p) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, p)
		}
		sum += 1 / p
	}
	return sum, nil
}

// Margin returns (1 − Σ 1/p) × 100. Positive values are a guaranteed-profit book.
func Margin(prices ...float64) (float64, error) {
	inv, err := InverseSum(prices...)
	if err != nil {
		return 0, err
	}
	return (1 - inv) * 100, nil
}

// Round2 rounds a percentage to two places for display.
func Round2(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
