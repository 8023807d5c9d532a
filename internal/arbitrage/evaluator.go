package arbitrage

import (
	"time"

	"sports-arb-scanner/internal/odds"
)

// Config is the explicit evaluator input. Nothing is read from ambient state.
type Config struct {
	// MinProfitPct is the inclusive margin threshold in percent (1.0 means 1%).
	MinProfitPct float64
	// Market must be the head-to-head identifier.
	Market string
	// MinBookmakers drops outcomes quoted by fewer distinct bookmakers from
	// margin mode. Values below 2 keep every outcome, and the scanner defaults
	// to 1: excluding single-quote outcomes is opt-in, since dropping a leg
	// (such as the draw of a 1X2 market) leaves an incomplete book whose margin
	// looks like an arbitrage that cannot be hedged.
	MinBookmakers int
	// Horizon restricts events to those starting within it from now. Zero disables.
	Horizon time.Duration
	Mode    Mode
}

// DefaultConfig mirrors the scanner defaults.
func DefaultConfig() Config {
	return Config{MinProfitPct: 1.0, Market: odds.HeadToHead, Mode: ModeMargin}
}

// Stats summarises what an evaluation pass did with its input.
type Stats struct {
	Events         int
	Malformed      int
	OutsideHorizon int
	Evaluated      int
	PairsChecked   int
}

// Evaluator turns events into ranked opportunities.
type Evaluator struct {
	cfg Config
}

// NewEvaluator builds an evaluator; an empty market defaults to h2h.
func NewEvaluator(cfg Config) *Evaluator {
	if cfg.Market == "" {
		cfg.Market = odds.HeadToHead
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeMargin
	}
	return &Evaluator{cfg: cfg}
}

// Config returns the evaluator configuration.
func (e *Evaluator) Config() Config { return e.cfg }

// Evaluate runs the configured modes over every event and returns the
// opportunities ranked by margin. Malformed events are skipped individually.
func (e *Evaluator) Evaluate(events []odds.Event, now time.Time) ([]Opportunity, Stats) {
	stats := Stats{Events: len(events)}
	inHorizon := WithinHorizon(events, now, e.cfg.Horizon)
	stats.OutsideHorizon = len(events) - len(inHorizon)

	var opps []Opportunity
	for _, ev := range inHorizon {
		if err := ev.Validate(); err != nil {
			stats.Malformed++
			continue
		}
		stats.Evaluated++

		if e.cfg.Mode == ModeMargin || e.cfg.Mode == ModeBoth {
			if opp, ok := e.EvaluateMargin(ev); ok {
				opps = append(opps, opp)
			}
		}
		if e.cfg.Mode == ModePairwise || e.cfg.Mode == ModeBoth {
			found, checked := e.EvaluatePairwise(ev)
			stats.PairsChecked += checked
			opps = append(opps, found...)
		}
	}

	Rank(opps)
	return opps, stats
}

// EvaluateMargin merges the best price per outcome and reports the event when
// its margin reaches the threshold. The raw margin is compared, never the
// rounded one.
func (e *Evaluator) EvaluateMargin(ev odds.Event) (Opportunity, bool) {
	best := SelectBest(ev.Quotes(e.cfg.Market), e.cfg.Market).WithMinCoverage(e.cfg.MinBookmakers)
	if best.Len() < 2 {
		return Opportunity{}, false
	}

	quotes := best.Quotes()
	prices := make([]float64, len(quotes))
	for i, q := range quotes {
		prices[i] = q.Price
	}
	margin, err := Margin(prices...)
	if err != nil || margin < e.cfg.MinProfitPct {
		return Opportunity{}, false
	}

	opp := newOpportunity(ev, ModeMargin, margin)
	opp.Legs = make([]Leg, len(quotes))
	for i, q := range quotes {
		opp.Legs[i] = Leg{Outcome: q.Outcome, Bookmaker: q.Bookmaker, Price: q.Price}
	}
	return opp, true
}

// EvaluatePairwise checks every cross-bookmaker leg pair and returns those
// whose two-leg margin reaches the threshold, plus the number of pairs checked.
func (e *Evaluator) EvaluatePairwise(ev odds.Event) ([]Opportunity, int) {
	var (
		opps    []Opportunity
		checked int
	)
	for pair := range Pairs(ev, e.cfg.Market) {
		checked++
		split, err := StakeSplit(pair.First, pair.Second)
		if err != nil {
			continue
		}
		if split.Margin < e.cfg.MinProfitPct {
			continue
		}

		s1, s2 := Round2(split.Stake1), Round2(split.Stake2)
		opp := newOpportunity(ev, ModePairwise, split.Margin)
		opp.GuaranteedProfit = split.Profit
		opp.Legs = []Leg{
			{Outcome: pair.First.Outcome, Bookmaker: pair.First.Bookmaker, Price: pair.First.Price, StakePct: &s1},
			{Outcome: pair.Second.Outcome, Bookmaker: pair.Second.Bookmaker, Price: pair.Second.Price, StakePct: &s2},
		}
		opps = append(opps, opp)
	}
	return opps, checked
}

// WithinHorizon keeps events starting no later than now+horizon. A
// non-positive horizon keeps everything.
func WithinHorizon(events []odds.Event, now time.Time, horizon time.Duration) []odds.Event {
	if horizon <= 0 {
		return events
	}
	cutoff := now.Add(horizon)
	out := make([]odds.Event, 0, len(events))
	for _, ev := range events {
		if ev.CommenceTime.After(cutoff) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// HorizonDays converts a day count into a horizon.
func HorizonDays(days int) time.Duration {
	if days <= 0 {
		return 0
	}
	return time.Duration(days) * 24 * time.Hour
}
