package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sports-arb-scanner/internal/fetcher"
	"sports-arb-scanner/internal/scanner"
	"sports-arb-scanner/internal/scheduler"
)

// Backfill evaluates historical odds snapshots at every scheduler slot
// between opts.From and opts.To, opts.Workers slots at a time.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	interval := a.Config.Scheduler.Interval
	if interval <= 0 {
		return errors.New("scheduler.interval must be positive")
	}

	slots := scheduler.Slots(opts.From.UTC(), opts.To.UTC(), interval)
	if len(slots) == 0 {
		return errors.New("backfill range is empty; check --from/--to")
	}

	rt, err := a.openBackends(ctx, backendOptions{store: !opts.DryRun})
	if err != nil {
		return err
	}
	defer rt.Close()

	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: nothing will be written to the database")
	} else if rt.store == nil {
		return errors.New("database.dsn not configured; cannot backfill")
	}

	scanOpts := a.scannerOptions(rt)
	scanOpts.Alerting.Enabled = false
	scanOpts.Notifier = nil
	scanOpts.Publisher = nil
	scan, err := scanner.New(scanOpts, a.Logger)
	if err != nil {
		return err
	}

	sum, err := backfillSlots(ctx, slots, opts.Workers, scan.ProcessSnapshot, a.Logger)
	if err != nil {
		return err
	}
	processed, empty, failed, found := sum.processed, sum.empty, sum.failed, sum.found

	a.Logger.Info().
		Int("slots", len(slots)).
		Int("processed", processed).
		Int("no_data", empty).
		Int("failed", failed).
		Int("opportunities", found).
		Msg("backfill complete")
	fmt.Fprintf(a.Out, "Backfilled %d of %d slots (%d without data), %d opportunities found.\n", processed, len(slots), empty, found)

	if failed > 0 {
		return fmt.Errorf("%d backfill slot(s) failed; see logs", failed)
	}
	return nil
}

type backfillSummary struct {
	processed, empty, failed, found int
}

// backfillSlots processes slots with at most workers in flight. A failing slot
// is counted and logged; only cancellation aborts the run.
func backfillSlots(ctx context.Context, slots []time.Time, workers int, process func(context.Context, time.Time) (scanner.Report, error), logger zerolog.Logger) (backfillSummary, error) {
	if workers <= 0 {
		workers = 1
	}

	var (
		mu  sync.Mutex
		sum backfillSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, slot := range slots {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report, err := process(gctx, slot)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, fetcher.ErrNoData):
				sum.empty++
			case errors.Is(err, context.Canceled):
				return err
			case err != nil:
				sum.failed++
				logger.Error().Err(err).Time("slot", slot).Msg("backfill slot failed")
			default:
				sum.processed++
				sum.found += len(report.Opportunities)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}
	return sum, ctx.Err()
}
