package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"sports-arb-scanner/internal/odds"
)

type stubSource struct {
	events map[string][]odds.Event
	fail   map[string]error
}

func (s *stubSource) FetchSports(context.Context) ([]odds.Sport, error) { return nil, nil }

func (s *stubSource) FetchOdds(_ context.Context, sport string) ([]odds.Event, error) {
	if err := s.fail[sport]; err != nil {
		return nil, err
	}
	return s.events[sport], nil
}

func (s *stubSource) FetchHistoricalOdds(ctx context.Context, sport string, _ time.Time) (odds.Snapshot, error) {
	events, err := s.FetchOdds(ctx, sport)
	return odds.Snapshot{Events: events}, err
}

func TestCollectSuccessPreservesOrder(t *testing.T) {
	src := &stubSource{events: map[string][]odds.Event{
		"a": {{ID: "a1"}, {ID: "a2"}},
		"b": {{ID: "b1"}},
	}}
	res, err := Collect(context.Background(), src, []string{"b", "a"}, 2, noopLogger())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if res.Status() != StatusSuccess {
		t.Fatalf("expected success, got %s", res.Status())
	}
	if len(res.Events) != 3 || res.Events[0].ID != "b1" || res.Events[2].ID != "a2" {
		t.Fatalf("unexpected events %+v", res.Events)
	}
}

func TestCollectPartialFailure(t *testing.T) {
	src := &stubSource{
		events: map[string][]odds.Event{"a": {{ID: "a1"}}},
		fail:   map[string]error{"b": errors.New("timeout")},
	}
	res, err := Collect(context.Background(), src, []string{"a", "b"}, 1, noopLogger())
	if err != nil {
		t.Fatalf("partial failure is not an error: %v", err)
	}
	if res.Status() != StatusPartialFailure {
		t.Fatalf("expected partial failure, got %s", res.Status())
	}
	if len(res.Failures) != 1 || res.Failures[0].Source != "b" || res.Failures[0].Reason != "timeout" {
		t.Fatalf("unexpected failures %+v", res.Failures)
	}
}

func TestCollectTotalFailure(t *testing.T) {
	src := &stubSource{fail: map[string]error{"a": errors.New("down"), "b": errors.New("down")}}
	res, err := Collect(context.Background(), src, []string{"a", "b"}, 2, noopLogger())
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if res.Status() != StatusTotalFailure {
		t.Fatalf("expected total failure, got %s", res.Status())
	}
}

func TestCollectEmptyIsSuccess(t *testing.T) {
	src := &stubSource{}
	res, err := Collect(context.Background(), src, []string{"a"}, 1, noopLogger())
	if err != nil {
		t.Fatalf("empty feed must not be an error: %v", err)
	}
	if res.Status() != StatusSuccess || len(res.Events) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCollectHistorical(t *testing.T) {
	src := &stubSource{events: map[string][]odds.Event{"a": {{ID: "h1"}}}}
	res, err := CollectHistorical(context.Background(), src, []string{"a"}, time.Now(), 1, noopLogger())
	if err != nil || len(res.Events) != 1 {
		t.Fatalf("unexpected historical result %+v %v", res, err)
	}
}
