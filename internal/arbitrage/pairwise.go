package arbitrage

import (
	"fmt"
	"iter"

	"sports-arb-scanner/internal/odds"
)

// Pair is a candidate two-leg hedge.
type Pair struct {
	First  odds.Quote
	Second odds.Quote
}

// Pairs lazily yields every cross-bookmaker leg pair of an event: for each
// unordered pair of bookmaker blocks, every combination of their outcomes
// whose names differ. The sequence can be ranged over repeatedly.
func Pairs(ev odds.Event, market string) iter.Seq[Pair] {
	return func(yield func(Pair) bool) {
		books := ev.ByBookmaker(market)
		for i := 0; i < len(books); i++ {
			for j := i + 1; j < len(books); j++ {
				for _, a := range books[i].Quotes {
					for _, b := range books[j].Quotes {
						if a.Outcome == b.Outcome {
							continue
						}
						if !yield(Pair{First: a, Second: b}) {
							return
						}
					}
				}
			}
		}
	}
}

// Split is the capital allocation of a 100 unit book across two legs.
type Split struct {
	Stake1 float64
	Stake2 float64
	// Margin is (1 − 1/p1 − 1/p2) × 100 and is the authoritative profitability figure.
	Margin float64
	// Profit is the payout of either leg minus the 100 unit outlay.
	Profit float64
}

// Payout is the identical return of either leg winning.
func (s Split) Payout(p1 float64) float64 {
	return s.Stake1 * p1
}

// StakeSplit allocates 100 units so that stake1 × p1 == stake2 × p2.
func StakeSplit(first, second odds.Quote) (Split, error) {
	if first.Outcome == second.Outcome {
		return Split{}, fmt.Errorf("%w: %s", ErrSameOutcome, first.Outcome)
	}
	margin, err := Margin(first.Price, second.Price)
	if err != nil {
		return Split{}, err
	}

	s1 := 100 / (1 + first.Price/second.Price)
	s2 := 100 - s1
	return Split{
		Stake1: s1,
		Stake2: s2,
		Margin: margin,
		Profit: s1*first.Price - 100,
	}, nil
}
