package fetcher

import (
	"context"
	"errors"
	"time"

	"sports-arb-scanner/internal/odds"
)

// ErrNoData means no source returned usable data; distinct from a successful
// scan that found nothing.
var ErrNoData = errors.New("fetcher: no data available")

// OddsSource retrieves fixtures and prices from a pricing service.
type OddsSource interface {
	FetchSports(ctx context.Context) ([]odds.Sport, error)
	FetchOdds(ctx context.Context, sport string) ([]odds.Event, error)
	FetchHistoricalOdds(ctx context.Context, sport string, at time.Time) (odds.Snapshot, error)
}

// ResponseCache stores raw response bodies keyed by request.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

// Status classifies a multi-source fetch.
type Status int

const (
	StatusSuccess Status = iota
	StatusPartialFailure
	StatusTotalFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPartialFailure:
		return "partial_failure"
	case StatusTotalFailure:
		return "total_failure"
	}
	return "unknown"
}

// SourceFailure records a source that could not be retrieved.
type SourceFailure struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// FetchResult is the outcome of fetching several sources.
type FetchResult struct {
	Events   []odds.Event
	Sources  []string
	Failures []SourceFailure
}

// Status reports success, partial coverage, or total failure.
func (r FetchResult) Status() Status {
	switch {
	case len(r.Failures) == 0:
		return StatusSuccess
	case len(r.Failures) < len(r.Sources):
		return StatusPartialFailure
	default:
		return StatusTotalFailure
	}
}
