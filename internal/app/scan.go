package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"sports-arb-scanner/internal/arbitrage"
	"sports-arb-scanner/internal/fetcher"
	"sports-arb-scanner/internal/scanner"
)

// ScanOptions override the configured scan for a single invocation.
type ScanOptions struct {
	Sports       []string
	MinProfitPct *float64
	HorizonDays  *int
	Mode         string
	ChartDir     string
	Save         bool
	Alert        bool
}

// Evaluator applies the overrides to a copy of the configured scan section.
func (o ScanOptions) Evaluator(base arbitrage.Config) (arbitrage.Config, error) {
	cfg := base
	if o.MinProfitPct != nil {
		if *o.MinProfitPct < 0 {
			return cfg, errors.New("--min-profit cannot be negative")
		}
		cfg.MinProfitPct = *o.MinProfitPct
	}
	if o.HorizonDays != nil {
		if *o.HorizonDays < 0 {
			return cfg, errors.New("--horizon-days cannot be negative")
		}
		cfg.Horizon = arbitrage.HorizonDays(*o.HorizonDays)
	}
	if o.Mode != "" {
		mode, err := arbitrage.ParseMode(o.Mode)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = mode
	}
	return cfg, nil
}

// Scan runs one scan and prints the ranked opportunities.
func (a *App) Scan(ctx context.Context, opts ScanOptions) error {
	cfg, err := opts.Evaluator(a.Config.Scan.Evaluator())
	if err != nil {
		return err
	}

	rt, err := a.openBackends(ctx, backendOptions{store: opts.Save, publish: opts.Save})
	if err != nil {
		return err
	}
	defer rt.Close()

	scanOpts := a.scannerOptions(rt)
	if !opts.Alert {
		scanOpts.Alerting.Enabled = false
		scanOpts.Notifier = nil
	}
	scan, err := scanner.New(scanOpts, a.Logger)
	if err != nil {
		return err
	}

	report, err := scan.Scan(ctx, cfg, opts.Sports)
	if err != nil && !errors.Is(err, fetcher.ErrNoData) {
		return err
	}
	RenderReport(a.Out, report)

	if opts.ChartDir != "" && len(report.Opportunities) > 0 {
		written, err := WriteStakeCharts(opts.ChartDir, report.Opportunities)
		if err != nil {
			return fmt.Errorf("write stake charts: %w", err)
		}
		fmt.Fprintf(a.Out, "Wrote %d stake chart(s) to %s\n", written, opts.ChartDir)
	}
	return nil
}

// RenderReport prints a scan report as a table ordered by margin.
func RenderReport(w io.Writer, report scanner.Report) {
	threshold := arbitrage.Round2(report.Config.MinProfitPct).StringFixed(2)

	if report.NoData() {
		fmt.Fprintln(w, "No data available: the pricing service returned no odds for the requested sports.")
		for _, f := range report.Fetch.Failures {
			fmt.Fprintf(w, "  - %s: %s\n", f.Source, sanitizeInline(f.Reason))
		}
		return
	}

	if report.Fetch.Status() == fetcher.StatusPartialFailure {
		failed := make([]string, 0, len(report.Fetch.Failures))
		for _, f := range report.Fetch.Failures {
			failed = append(failed, f.Source)
		}
		fmt.Fprintf(w, "Warning: partial coverage, %d of %d sports failed (%s).\n",
			len(report.Fetch.Failures), len(report.Fetch.Sources), strings.Join(failed, ", "))
	}

	if len(report.Opportunities) == 0 {
		fmt.Fprintf(w, "No profitable opportunities found (%d events evaluated, threshold %s%%).\n", report.Stats.Evaluated, threshold)
		return
	}

	fmt.Fprintf(w, "Found %d opportunities across %d matches (threshold %s%%, mode %s).\n",
		len(report.Opportunities), arbitrage.DistinctMatches(report.Opportunities), threshold, report.Config.Mode)

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Sport\tMatch\tStart (UTC)\tMode\tOutcome\tBookmaker\tPrice\tStake%\tMargin%")
	for _, row := range arbitrage.Rows(report.Opportunities) {
		stake := "-"
		if row.StakePct != nil {
			stake = row.StakePct.StringFixed(2)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
			row.Sport,
			row.Match,
			row.CommenceTime.UTC().Format(time.RFC3339),
			row.Mode,
			row.Outcome,
			row.Bookmaker,
			row.Price,
			stake,
			row.MarginPct.StringFixed(2),
		)
	}
	writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
