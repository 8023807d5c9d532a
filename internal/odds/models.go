package odds

import (
	"time"
)

// HeadToHead is the market key for moneyline (one price per result) markets.
const HeadToHead = "h2h"

// Sport describes a competition offered by the pricing service.
type Sport struct {
	Key          string `json:"key"`
	Group        string `json:"group"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Active       bool   `json:"active"`
	HasOutrights bool   `json:"has_outrights"`
}

// Event is a single fixture together with every bookmaker block quoting it.
type Event struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	SportTitle   string      `json:"sport_title"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

// Bookmaker carries one bookmaker's markets for an event.
type Bookmaker struct {
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	LastUpdate time.Time `json:"last_update"`
	Markets    []Market  `json:"markets"`
}

// Market groups outcome prices under a market type identifier.
type Market struct {
	Key        string    `json:"key"`
	LastUpdate time.Time `json:"last_update"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Outcome is a decimal price for a named result.
type Outcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

// Quote is one bookmaker's price for one outcome of one market.
type Quote struct {
	Outcome   string  `json:"outcome"`
	Price     float64 `json:"price"`
	Bookmaker string  `json:"bookmaker"`
	Market    string  `json:"market"`
}

// BookQuotes holds the quotes a single bookmaker offers in one market of an event.
type BookQuotes struct {
	Bookmaker string
	Quotes    []Quote
}

// Snapshot is a historical odds capture.
type Snapshot struct {
	Timestamp         time.Time `json:"timestamp"`
	PreviousTimestamp time.Time `json:"previous_timestamp"`
	NextTimestamp     time.Time `json:"next_timestamp"`
	Events            []Event   `json:"-"`
}
