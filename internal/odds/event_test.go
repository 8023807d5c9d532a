package odds

import (
	"errors"
	"math"
	"testing"
	"time"
)

func sampleEvent() Event {
	return Event{
		ID:           "evt-1",
		SportKey:     "soccer_epl",
		SportTitle:   "EPL",
		CommenceTime: time.Date(2026, 10, 20, 15, 0, 0, 0, time.UTC),
		HomeTeam:     "Arsenal",
		AwayTeam:     "Chelsea",
		Bookmakers: []Bookmaker{
			{Key: "tab", Title: "TAB", Markets: []Market{
				{Key: "spreads", Outcomes: []Outcome{{Name: "Arsenal", Price: 9.0}}},
				{Key: HeadToHead, Outcomes: []Outcome{{Name: "Arsenal", Price: 2.1}, {Name: "Chelsea", Price: 0}}},
			}},
			{Key: "sportsbet", Markets: []Market{
				{Key: HeadToHead, Outcomes: []Outcome{{Name: "Arsenal", Price: 1.9}, {Name: "Chelsea", Price: 2.05}}},
			}},
			{Key: "empty"},
			{Key: "tab", Title: "TAB", Markets: []Market{
				{Key: HeadToHead, Outcomes: []Outcome{{Name: "Arsenal", Price: 5.0}}},
			}},
		},
	}
}

func TestByBookmakerFiltersMarketAndPrices(t *testing.T) {
	books := sampleEvent().ByBookmaker(HeadToHead)
	if len(books) != 2 {
		t.Fatalf("expected 2 bookmaker blocks, got %d", len(books))
	}
	if books[0].Bookmaker != "TAB" || len(books[0].Quotes) != 1 {
		t.Fatalf("unexpected first block: %+v", books[0])
	}
	if books[0].Quotes[0].Price != 2.1 {
		t.Fatalf("duplicate bookmaker block should be ignored, got price %v", books[0].Quotes[0].Price)
	}
	if books[1].Bookmaker != "sportsbet" {
		t.Fatalf("title should fall back to key, got %q", books[1].Bookmaker)
	}
}

func TestQuotesFlatten(t *testing.T) {
	quotes := sampleEvent().Quotes(HeadToHead)
	if len(quotes) != 3 {
		t.Fatalf("expected 3 quotes, got %d", len(quotes))
	}
	for _, q := range quotes {
		if q.Market != HeadToHead {
			t.Fatalf("unexpected market %q", q.Market)
		}
	}
}

func TestValidate(t *testing.T) {
	ev := sampleEvent()
	if err := ev.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}
	ev.AwayTeam = " "
	if err := ev.Validate(); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
	ev = sampleEvent()
	ev.CommenceTime = time.Time{}
	if err := ev.Validate(); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent for zero time, got %v", err)
	}
}

func TestValidPrice(t *testing.T) {
	for _, p := range []float64{0, -2, 1, math.Inf(1), math.NaN()} {
		if ValidPrice(p) {
			t.Fatalf("price %v should be invalid", p)
		}
	}
	if !ValidPrice(1.01) {
		t.Fatal("1.01 should be valid")
	}
}

func TestDecodeEventsSkipsBadRecords(t *testing.T) {
	payload := []byte(`[
		{"id":"a","sport_title":"NBA","commence_time":"2026-10-20T00:00:00Z","home_team":"A","away_team":"B","bookmakers":[]},
		{"id":"b","commence_time":"not-a-time"},
		{"id":"c","home_team":"C","away_team":"D","commence_time":"2026-10-21T00:00:00Z"}
	]`)
	events, skipped, err := DecodeEvents(payload)
	if err != nil {
		t.Fatalf("decode should succeed: %v", err)
	}
	if len(events) != 2 || skipped != 1 {
		t.Fatalf("expected 2 events and 1 skipped, got %d/%d", len(events), skipped)
	}
	if events[1].Bookmakers != nil {
		t.Fatalf("missing bookmakers should decode as nil")
	}
	if events[0].Label() != "A vs B" {
		t.Fatalf("unexpected label %q", events[0].Label())
	}
}

func TestDecodeSnapshot(t *testing.T) {
	payload := []byte(`{"timestamp":"2026-10-01T12:00:00Z","previous_timestamp":"2026-10-01T11:55:00Z","next_timestamp":"2026-10-01T12:05:00Z",
		"data":[{"id":"a","home_team":"A","away_team":"B","commence_time":"2026-10-02T00:00:00Z"}]}`)
	snap, skipped, err := DecodeSnapshot(payload)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if skipped != 0 || len(snap.Events) != 1 {
		t.Fatalf("unexpected snapshot contents: %+v", snap)
	}
	if !snap.Timestamp.Equal(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", snap.Timestamp)
	}
}
