package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sports-arb-scanner/internal/arbitrage"
)

// Notification carries one opportunity worth alerting on.
type Notification struct {
	ScanID        string
	DetectedAt    time.Time
	Opportunity   arbitrage.Opportunity
	ThresholdPct  decimal.Decimal
	Channels      []string
	AdditionalMsg string
}

// Notifier delivers notifications to a channel.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Multi fans a notification out to every notifier; all are attempted.
type Multi []Notifier

// Notify dispatches to every notifier and joins their errors.
func (m Multi) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func renderMessage(note Notification) string {
	opp := note.Opportunity
	builder := strings.Builder{}
	builder.WriteString("[Arbitrage Alert]\n")
	builder.WriteString(fmt.Sprintf("%s | %s\n", opp.Sport, opp.Match))
	builder.WriteString(fmt.Sprintf("Starts: %s UTC\n", opp.CommenceTime.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Margin: %s%% (threshold %s%%) [%s]\n", opp.MarginPct().StringFixed(2), note.ThresholdPct.StringFixed(2), opp.Mode))
	for _, leg := range opp.Legs {
		line := fmt.Sprintf("- %s @ %.2f (%s)", leg.Outcome, leg.Price, leg.Bookmaker)
		if leg.StakePct != nil {
			line += fmt.Sprintf(" stake %s%%", leg.StakePct.StringFixed(2))
		}
		builder.WriteString(line + "\n")
	}
	if opp.Mode == arbitrage.ModePairwise {
		builder.WriteString(fmt.Sprintf("Guaranteed profit: %s%% of stake\n", arbitrage.Round2(opp.GuaranteedProfit).StringFixed(2)))
	}
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var _ Notifier = Multi(nil)
