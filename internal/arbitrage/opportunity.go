package arbitrage

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sports-arb-scanner/internal/odds"
)

// Mode selects how an event is evaluated.
type Mode string

const (
	// ModeMargin merges the best price of every outcome across bookmakers.
	ModeMargin Mode = "margin"
	// ModePairwise hedges two outcomes quoted by two different bookmakers.
	ModePairwise Mode = "pairwise"
	// ModeBoth runs both evaluations.
	ModeBoth Mode = "both"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeMargin, "":
		return ModeMargin, nil
	case ModePairwise:
		return ModePairwise, nil
	case ModeBoth:
		return ModeBoth, nil
	}
	return "", fmt.Errorf("unknown evaluation mode %q", s)
}

// Leg is one bet of an opportunity.
type Leg struct {
	Outcome   string  `json:"outcome"`
	Bookmaker string  `json:"bookmaker"`
	Price     float64 `json:"price"`
	// StakePct is only set in pairwise mode.
	StakePct *decimal.Decimal `json:"stake_pct,omitempty"`
}

// Opportunity is an event whose legs combine to a margin at or above the threshold.
type Opportunity struct {
	EventID      string    `json:"event_id"`
	SportKey     string    `json:"sport_key"`
	Sport        string    `json:"sport"`
	Match        string    `json:"match"`
	CommenceTime time.Time `json:"commence_time"`
	Mode         Mode      `json:"mode"`
	Legs         []Leg     `json:"legs"`
	// Margin is the raw (1 − Σ 1/p) × 100 used for thresholding and ranking.
	Margin float64 `json:"margin"`
	// GuaranteedProfit is stake1 × price1 − 100 on a 100 unit book; pairwise only.
	GuaranteedProfit float64 `json:"guaranteed_profit,omitempty"`
}

// MarginPct is the display margin rounded to two places.
func (o Opportunity) MarginPct() decimal.Decimal {
	return Round2(o.Margin)
}

// Key identifies the same opportunity across scans for alert dedup.
func (o Opportunity) Key() string {
	parts := make([]string, 0, len(o.Legs))
	for _, l := range o.Legs {
		parts = append(parts, l.Outcome+"@"+l.Bookmaker)
	}
	slices.Sort(parts)
	id := o.EventID
	if id == "" {
		id = o.Match + "|" + o.CommenceTime.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s|%s|%s", id, o.Mode, strings.Join(parts, ","))
}

func newOpportunity(ev odds.Event, mode Mode, margin float64) Opportunity {
	return Opportunity{
		EventID:      ev.ID,
		SportKey:     ev.SportKey,
		Sport:        ev.SportTitle,
		Match:        ev.Label(),
		CommenceTime: ev.CommenceTime,
		Mode:         mode,
		Margin:       margin,
	}
}

// Row is the one-row-per-leg presentation of an opportunity.
type Row struct {
	Sport        string
	Match        string
	CommenceTime time.Time
	Mode         Mode
	Outcome      string
	Bookmaker    string
	Price        float64
	MarginPct    decimal.Decimal
	StakePct     *decimal.Decimal
}

// Rows flattens opportunities, repeating the event margin on every leg.
func Rows(opps []Opportunity) []Row {
	var rows []Row
	for _, o := range opps {
		margin := o.MarginPct()
		for _, l := range o.Legs {
			rows = append(rows, Row{
				Sport:        o.Sport,
				Match:        o.Match,
				CommenceTime: o.CommenceTime,
				Mode:         o.Mode,
				Outcome:      l.Outcome,
				Bookmaker:    l.Bookmaker,
				Price:        l.Price,
				MarginPct:    margin,
				StakePct:     l.StakePct,
			})
		}
	}
	return rows
}

// Rank sorts by margin descending. Ties keep their evaluation order.
func Rank(opps []Opportunity) {
	slices.SortStableFunc(opps, func(a, b Opportunity) int {
		return cmp.Compare(b.Margin, a.Margin)
	})
}

// DistinctMatches counts the events represented in opps.
func DistinctMatches(opps []Opportunity) int {
	seen := make(map[string]struct{}, len(opps))
	for _, o := range opps {
		seen[o.EventID+"|"+o.Match] = struct{}{}
	}
	return len(seen)
}
