package odds

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformedEvent marks an event record that cannot be evaluated.
var ErrMalformedEvent = errors.New("odds: malformed event")

// ValidPrice reports whether p is a usable decimal price.
func ValidPrice(p float64) bool {
	return p > 1 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

// Label renders the "home vs away" match label.
func (e Event) Label() string {
	return fmt.Sprintf("%s vs %s", e.HomeTeam, e.AwayTeam)
}

// Validate checks the fields every evaluation path relies on.
func (e Event) Validate() error {
	switch {
	case strings.TrimSpace(e.HomeTeam) == "":
		return fmt.Errorf("%w: missing home participant", ErrMalformedEvent)
	case strings.TrimSpace(e.AwayTeam) == "":
		return fmt.Errorf("%w: missing away participant", ErrMalformedEvent)
	case e.CommenceTime.IsZero():
		return fmt.Errorf("%w: missing commence time", ErrMalformedEvent)
	}
	return nil
}

// Quotes flattens every bookmaker block into quotes for the given market.
// Blocks without a name, outcomes without a name and invalid prices are dropped.
func (e Event) Quotes(market string) []Quote {
	var quotes []Quote
	for _, book := range e.ByBookmaker(market) {
		quotes = append(quotes, book.Quotes...)
	}
	return quotes
}

// ByBookmaker returns the first matching market of every bookmaker in feed order.
// A bookmaker name seen twice keeps only its first block.
func (e Event) ByBookmaker(market string) []BookQuotes {
	books := make([]BookQuotes, 0, len(e.Bookmakers))
	seen := make(map[string]struct{}, len(e.Bookmakers))
	for _, bm := range e.Bookmakers {
		name := bm.Name()
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		m, ok := bm.Market(market)
		if !ok {
			continue
		}

		quotes := make([]Quote, 0, len(m.Outcomes))
		for _, o := range m.Outcomes {
			if strings.TrimSpace(o.Name) == "" || !ValidPrice(o.Price) {
				continue
			}
			quotes = append(quotes, Quote{Outcome: o.Name, Price: o.Price, Bookmaker: name, Market: m.Key})
		}
		if len(quotes) == 0 {
			continue
		}
		seen[name] = struct{}{}
		books = append(books, BookQuotes{Bookmaker: name, Quotes: quotes})
	}
	return books
}

// Name prefers the display title and falls back to the key.
func (b Bookmaker) Name() string {
	if t := strings.TrimSpace(b.Title); t != "" {
		return t
	}
	return strings.TrimSpace(b.Key)
}

// Market returns the first market block with the given key.
func (b Bookmaker) Market(key string) (Market, bool) {
	for _, m := range b.Markets {
		if m.Key == key {
			return m, true
		}
	}
	return Market{}, false
}

// DecodeEvents decodes a JSON array of events one element at a time so a
// single bad record only costs that record. It returns the number skipped.
func DecodeEvents(payload []byte) ([]Event, int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, 0, fmt.Errorf("decode events: %w", err)
	}

	events := make([]Event, 0, len(raw))
	skipped := 0
	for _, item := range raw {
		var ev Event
		if err := json.Unmarshal(item, &ev); err != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	return events, skipped, nil
}

// DecodeSnapshot decodes a historical odds envelope.
func DecodeSnapshot(payload []byte) (Snapshot, int, error) {
	var envelope struct {
		Snapshot
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Snapshot{}, 0, fmt.Errorf("decode snapshot: %w", err)
	}

	snap := envelope.Snapshot
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return snap, 0, nil
	}

	events, skipped, err := DecodeEvents(envelope.Data)
	if err != nil {
		return Snapshot{}, 0, err
	}
	snap.Events = events
	return snap, skipped, nil
}
