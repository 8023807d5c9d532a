package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sports-arb-scanner/internal/storage"
)

// Export renders stored opportunities as CSV and/or a PNG margin chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	defer store.Close()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	records, err := store.ListOpportunitiesBetween(ctx, from, to, opts.MaxPoints)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no opportunities found for export window")
		return nil
	}
	a.Logger.Info().Int("exported", len(records)).Time("from", from).Time("to", to).Msg("exporting opportunities")

	if opts.CSVPath != "" {
		if err := writeFile(opts.CSVPath, func(w io.Writer) error { return WriteOpportunitiesCSV(w, records) }); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		labels := make([]string, len(records))
		margins := make([]float64, len(records))
		for i, rec := range records {
			labels[i] = rec.Match
			margins[i] = rec.MarginPct.InexactFloat64()
		}
		if err := writeFile(opts.PNGPath, func(w io.Writer) error { return renderMarginBars(w, labels, margins) }); err != nil {
			return err
		}
	}

	return nil
}

// WriteOpportunitiesCSV writes one row per stored opportunity.
func WriteOpportunitiesCSV(w io.Writer, records []storage.OpportunityRecord) error {
	writer := csv.NewWriter(w)

	header := []string{"detected_at", "scan_id", "sport", "match", "commence_time", "mode", "margin_pct", "guaranteed_profit_pct", "legs"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		profit := ""
		if rec.GuaranteedProfitPct != nil {
			profit = rec.GuaranteedProfitPct.StringFixed(2)
		}
		row := []string{
			rec.DetectedAt.UTC().Format(time.RFC3339),
			rec.ScanID,
			rec.Sport,
			rec.Match,
			rec.CommenceTime.UTC().Format(time.RFC3339),
			rec.Mode,
			rec.MarginPct.StringFixed(2),
			profit,
			formatLegs(rec.Legs),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatLegs(legs []storage.LegRecord) string {
	parts := make([]string, 0, len(legs))
	for _, leg := range legs {
		part := fmt.Sprintf("%s=%s@%s", leg.Outcome, leg.Price.StringFixed(2), leg.Bookmaker)
		if leg.StakePct != nil {
			part += " (" + leg.StakePct.StringFixed(2) + "%)"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}

func writeFile(path string, render func(io.Writer) error) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
