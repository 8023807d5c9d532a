package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sports-arb-scanner/internal/arbitrage"
	"sports-arb-scanner/internal/fetcher"
	"sports-arb-scanner/internal/odds"
	"sports-arb-scanner/internal/scanner"
)

const simulatedSport = "simulation"

// ParseLeg parses "Outcome=price@Bookmaker".
func ParseLeg(s string) (odds.Quote, error) {
	outcome, rest, ok := strings.Cut(s, "=")
	if !ok {
		return odds.Quote{}, fmt.Errorf("leg %q: expected Outcome=price@Bookmaker", s)
	}
	priceStr, book, ok := strings.Cut(rest, "@")
	if !ok {
		return odds.Quote{}, fmt.Errorf("leg %q: missing @Bookmaker", s)
	}
	outcome, book = strings.TrimSpace(outcome), strings.TrimSpace(book)
	if outcome == "" || book == "" {
		return odds.Quote{}, fmt.Errorf("leg %q: outcome and bookmaker are required", s)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(priceStr), 64)
	if err != nil {
		return odds.Quote{}, fmt.Errorf("leg %q: parse price: %w", s, err)
	}
	if !odds.ValidPrice(price) {
		return odds.Quote{}, fmt.Errorf("leg %q: %w", s, arbitrage.ErrInvalidPrice)
	}
	return odds.Quote{Outcome: outcome, Price: price, Bookmaker: book, Market: odds.HeadToHead}, nil
}

// SimulatedEvent builds a fixture where every leg is quoted by its own bookmaker block.
func SimulatedEvent(legs []odds.Quote, start time.Time) (odds.Event, error) {
	if len(legs) < 2 {
		return odds.Event{}, fmt.Errorf("at least two legs are required: %w", arbitrage.ErrTooFewLegs)
	}
	ev := odds.Event{
		ID:           "simulated",
		SportKey:     simulatedSport,
		SportTitle:   "Simulation",
		CommenceTime: start,
		HomeTeam:     legs[0].Outcome,
		AwayTeam:     legs[1].Outcome,
	}
	for _, leg := range legs {
		ev.Bookmakers = append(ev.Bookmakers, odds.Bookmaker{
			Key:   leg.Bookmaker,
			Title: leg.Bookmaker,
			Markets: []odds.Market{{
				Key:      odds.HeadToHead,
				Outcomes: []odds.Outcome{{Name: leg.Outcome, Price: leg.Price}},
			}},
		})
	}
	return ev, nil
}

// SimulateAlert runs the scan pipeline over synthetic legs and dispatches the
// resulting alert through the configured channels.
func (a *App) SimulateAlert(ctx context.Context, rawLegs []string) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	legs := make([]odds.Quote, 0, len(rawLegs))
	for _, raw := range rawLegs {
		leg, err := ParseLeg(raw)
		if err != nil {
			return err
		}
		legs = append(legs, leg)
	}
	now := time.Now().UTC()
	ev, err := SimulatedEvent(legs, now.Add(time.Hour))
	if err != nil {
		return err
	}

	cfg := a.Config.Scan.Evaluator()
	cfg.MinProfitPct = a.Config.Alerting.ThresholdPct
	cfg.Horizon = 0

	scan, err := scanner.New(scanner.Options{
		Source:    staticSource{events: []odds.Event{ev}},
		Sports:    []string{simulatedSport},
		Evaluator: cfg,
		Notifier:  notifier,
		Alerting: scanner.AlertOptions{
			Enabled:      true,
			ThresholdPct: a.Config.Alerting.ThresholdPct,
			Channels:     a.Config.Alerting.Channels,
		},
	}, a.Logger)
	if err != nil {
		return err
	}

	report, err := scan.Scan(ctx, cfg, nil)
	if err != nil {
		return err
	}
	if report.Alerted == 0 {
		margin := "n/a"
		prices := make([]float64, len(legs))
		for i, leg := range legs {
			prices[i] = leg.Price
		}
		if m, err := arbitrage.Margin(prices...); err == nil {
			margin = arbitrage.Round2(m).StringFixed(2)
		}
		fmt.Fprintf(a.Out, "Margin %s%% is below the alert threshold %.2f%%; no alert sent.\n", margin, a.Config.Alerting.ThresholdPct)
		return nil
	}
	fmt.Fprintf(a.Out, "Sent %d alert(s).\n", report.Alerted)
	return nil
}

type staticSource struct {
	events []odds.Event
}

func (s staticSource) FetchSports(context.Context) ([]odds.Sport, error) {
	return []odds.Sport{{Key: simulatedSport, Title: "Simulation", Active: true}}, nil
}

func (s staticSource) FetchOdds(context.Context, string) ([]odds.Event, error) {
	return s.events, nil
}

func (s staticSource) FetchHistoricalOdds(_ context.Context, _ string, at time.Time) (odds.Snapshot, error) {
	return odds.Snapshot{Timestamp: at, Events: s.events}, nil
}

var _ fetcher.OddsSource = staticSource{}
