package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Scan kinds.
const (
	ScanKindLive     = "live"
	ScanKindSnapshot = "snapshot"
)

// ScanRecord is one persisted scan invocation. AsOf is the instant the odds
// describe: the start of a live scan or the slot of a historical snapshot.
type ScanRecord struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Status        string
	Sports        []string
	Failures      json.RawMessage
	EventsSeen    int
	Opportunities int
	MinProfitPct  decimal.Decimal
	Mode          string
	Kind          string
	AsOf          time.Time
}

// LegRecord is a persisted opportunity leg.
type LegRecord struct {
	Outcome   string           `json:"outcome"`
	Bookmaker string           `json:"bookmaker"`
	Price     decimal.Decimal  `json:"price"`
	StakePct  *decimal.Decimal `json:"stake_pct,omitempty"`
}

// OpportunityRecord is a persisted opportunity found by a scan.
type OpportunityRecord struct {
	ID                  int64
	ScanID              string
	Key                 string
	EventID             string
	SportKey            string
	Sport               string
	Match               string
	CommenceTime        time.Time
	Mode                string
	MarginPct           decimal.Decimal
	GuaranteedProfitPct *decimal.Decimal
	Legs                []LegRecord
	DetectedAt          time.Time
}

// AlertRecord captures an emitted alert for auditing.
type AlertRecord struct {
	ID             int64
	OpportunityKey string
	ScanID         string
	MarginPct      decimal.Decimal
	ThresholdPct   decimal.Decimal
	Channels       []string
	CreatedAt      time.Time
}
