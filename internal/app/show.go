package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"sports-arb-scanner/internal/storage"
)

// Show prints recently detected opportunities, or alerts with opts.Alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show history")
	}
	defer store.Close()

	if opts.Alerts {
		return a.showAlerts(ctx, opts.Limit, store)
	}

	records, err := store.ListRecentOpportunities(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no opportunities recorded")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Detected (UTC)\tSport\tMatch\tStart (UTC)\tMode\tMargin%\tProfit%\tLegs")
	for _, rec := range records {
		profit := "-"
		if rec.GuaranteedProfitPct != nil {
			profit = rec.GuaranteedProfitPct.StringFixed(2)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.DetectedAt.UTC().Format(time.RFC3339),
			rec.Sport,
			rec.Match,
			rec.CommenceTime.UTC().Format(time.RFC3339),
			rec.Mode,
			rec.MarginPct.StringFixed(2),
			profit,
			formatLegs(rec.Legs),
		)
	}
	return writer.Flush()
}

func (a *App) showAlerts(ctx context.Context, limit int, store storage.AlertStore) error {
	alerts, err := store.ListRecentAlerts(ctx, limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(a.Out, "no alerts recorded")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Sent (UTC)\tMargin%\tThreshold%\tChannels\tOpportunity")
	for _, alert := range alerts {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.MarginPct.StringFixed(2),
			alert.ThresholdPct.StringFixed(2),
			strings.Join(alert.Channels, ","),
			alert.OpportunityKey,
		)
	}
	return writer.Flush()
}
