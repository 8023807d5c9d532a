package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sports-arb-scanner/internal/odds"
)

// Collect fetches every sport concurrently (at most limit in flight). A
// failing sport becomes a SourceFailure; when every sport fails the result is
// returned together with ErrNoData. Events keep the order of sports.
func Collect(ctx context.Context, src OddsSource, sports []string, limit int, logger zerolog.Logger) (FetchResult, error) {
	return collect(ctx, sports, limit, logger, func(ctx context.Context, sport string) ([]odds.Event, error) {
		return src.FetchOdds(ctx, sport)
	})
}

// CollectHistorical is Collect against the historical snapshot closest to at.
func CollectHistorical(ctx context.Context, src OddsSource, sports []string, at time.Time, limit int, logger zerolog.Logger) (FetchResult, error) {
	return collect(ctx, sports, limit, logger, func(ctx context.Context, sport string) ([]odds.Event, error) {
		snap, err := src.FetchHistoricalOdds(ctx, sport, at)
		if err != nil {
			return nil, err
		}
		return snap.Events, nil
	})
}

func collect(ctx context.Context, sports []string, limit int, logger zerolog.Logger, fetch func(context.Context, string) ([]odds.Event, error)) (FetchResult, error) {
	result := FetchResult{Sources: sports}
	if len(sports) == 0 {
		return result, fmt.Errorf("%w: no sports requested", ErrNoData)
	}
	if limit <= 0 {
		limit = 1
	}

	perSport := make([][]odds.Event, len(sports))
	errs := make([]error, len(sports))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, sport := range sports {
		g.Go(func() error {
			events, err := fetch(gctx, sport)
			if err != nil {
				errs[i] = err
				return nil
			}
			perSport[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	for i, sport := range sports {
		if errs[i] != nil {
			logger.Warn().Err(errs[i]).Str("sport", sport).Msg("odds fetch failed")
			result.Failures = append(result.Failures, SourceFailure{Source: sport, Reason: errs[i].Error()})
			continue
		}
		result.Events = append(result.Events, perSport[i]...)
	}

	if result.Status() == StatusTotalFailure {
		return result, ErrNoData
	}
	return result, nil
}
