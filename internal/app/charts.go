package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	chart "github.com/wcharczuk/go-chart/v2"

	"sports-arb-scanner/internal/arbitrage"
)

// StakeShares returns the percentage of a book to place on every leg so that
// each leg pays the same. Pairwise legs carry their own split.
func StakeShares(opp arbitrage.Opportunity) ([]float64, error) {
	shares := make([]float64, len(opp.Legs))
	if len(opp.Legs) > 0 && opp.Legs[0].StakePct != nil {
		for i, leg := range opp.Legs {
			if leg.StakePct == nil {
				return nil, fmt.Errorf("leg %s has no stake", leg.Outcome)
			}
			shares[i] = leg.StakePct.InexactFloat64()
		}
		return shares, nil
	}

	prices := make([]float64, len(opp.Legs))
	for i, leg := range opp.Legs {
		prices[i] = leg.Price
	}
	total, err := arbitrage.InverseSum(prices...)
	if err != nil {
		return nil, err
	}
	for i, p := range prices {
		shares[i] = (1 / p) / total * 100
	}
	return shares, nil
}

// WriteStakeCharts renders one stake-split pie chart per opportunity into dir.
func WriteStakeCharts(dir string, opps []arbitrage.Opportunity) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	written := 0
	for i, opp := range opps {
		path := filepath.Join(dir, fmt.Sprintf("%02d_%s.png", i+1, slug(opp.Match)))
		file, err := os.Create(path)
		if err != nil {
			return written, err
		}
		err = renderStakePie(file, opp)
		closeErr := file.Close()
		if err != nil {
			return written, fmt.Errorf("render %s: %w", path, err)
		}
		if closeErr != nil {
			return written, closeErr
		}
		written++
	}
	return written, nil
}

func renderStakePie(w io.Writer, opp arbitrage.Opportunity) error {
	shares, err := StakeShares(opp)
	if err != nil {
		return err
	}
	values := make([]chart.Value, len(opp.Legs))
	for i, leg := range opp.Legs {
		values[i] = chart.Value{
			Label: fmt.Sprintf("%s @ %.2f (%s) %.2f%%", leg.Outcome, leg.Price, leg.Bookmaker, shares[i]),
			Value: shares[i],
		}
	}
	pie := chart.PieChart{
		Title:  fmt.Sprintf("%s | margin %s%%", opp.Match, opp.MarginPct().StringFixed(2)),
		Width:  640,
		Height: 640,
		Values: values,
	}
	return pie.Render(chart.PNG, w)
}

func renderMarginBars(w io.Writer, labels []string, margins []float64) error {
	if len(labels) == 0 {
		return fmt.Errorf("no opportunities to chart")
	}
	bars := make([]chart.Value, len(labels))
	top := 0.0
	for i := range labels {
		bars[i] = chart.Value{Label: labels[i], Value: margins[i]}
		if margins[i] > top {
			top = margins[i]
		}
	}
	if top <= 0 {
		top = 1
	}
	graph := chart.BarChart{
		Title:    "Arbitrage margin (%)",
		Width:    1280,
		Height:   720,
		BarWidth: 40,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Bars: bars,
	}
	return graph.Render(chart.PNG, w)
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "event"
	}
	return out
}
