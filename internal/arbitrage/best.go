package arbitrage

import (
	"sports-arb-scanner/internal/odds"
)

// BestOdds holds the highest quote per outcome name, in first-seen outcome order.
type BestOdds struct {
	order []string
	best  map[string]odds.Quote
	books map[string]map[string]struct{}
}

// SelectBest keeps, for every outcome quoted in market, the quote with the
// highest price. A later quote replaces the current best only when strictly
// greater, so ties stay with the first bookmaker in feed order. Quotes from
// other markets and invalid prices never participate.
func SelectBest(quotes []odds.Quote, market string) BestOdds {
	b := BestOdds{
		best:  make(map[string]odds.Quote),
		books: make(map[string]map[string]struct{}),
	}
	for _, q := range quotes {
		if q.Market != market || q.Outcome == "" || !odds.ValidPrice(q.Price) {
			continue
		}
		cur, ok := b.best[q.Outcome]
		if !ok {
			b.order = append(b.order, q.Outcome)
			b.books[q.Outcome] = make(map[string]struct{})
		}
		b.books[q.Outcome][q.Bookmaker] = struct{}{}
		if !ok || q.Price > cur.Price {
			b.best[q.Outcome] = q
		}
	}
	return b
}

// Len is the number of distinct outcomes.
func (b BestOdds) Len() int { return len(b.order) }

// Get returns the best quote for an outcome.
func (b BestOdds) Get(outcome string) (odds.Quote, bool) {
	q, ok := b.best[outcome]
	return q, ok
}

// Coverage is the number of distinct bookmakers quoting an outcome.
func (b BestOdds) Coverage(outcome string) int {
	return len(b.books[outcome])
}

// Quotes returns the best quote of every outcome in first-seen order.
func (b BestOdds) Quotes() []odds.Quote {
	out := make([]odds.Quote, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.best[name])
	}
	return out
}

// WithMinCoverage drops outcomes quoted by fewer than n distinct bookmakers.
func (b BestOdds) WithMinCoverage(n int) BestOdds {
	if n <= 1 {
		return b
	}
	out := BestOdds{
		best:  make(map[string]odds.Quote, len(b.best)),
		books: make(map[string]map[string]struct{}, len(b.books)),
	}
	for _, name := range b.order {
		if len(b.books[name]) < n {
			continue
		}
		out.order = append(out.order, name)
		out.best[name] = b.best[name]
		out.books[name] = b.books[name]
	}
	return out
}
