package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sports-arb-scanner/internal/alerting"
	"sports-arb-scanner/internal/arbitrage"
	"sports-arb-scanner/internal/fetcher"
	"sports-arb-scanner/internal/instrumentation"
	"sports-arb-scanner/internal/publisher"
	"sports-arb-scanner/internal/storage"
)

// StatusNoData marks a scan in which no source returned data.
const StatusNoData = "no_data"

// Deduper decides whether an opportunity may be alerted again. Release gives
// back a claim whose alert could not be delivered.
type Deduper interface {
	ShouldAlert(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// AlertOptions routes opportunities above a threshold to the notifier.
type AlertOptions struct {
	Enabled      bool
	ThresholdPct float64
	Channels     []string
}

// Options wires the scanner dependencies. Only Source is required.
type Options struct {
	Source      fetcher.OddsSource
	Sports      []string
	Concurrency int
	Evaluator   arbitrage.Config

	Store     storage.ScanStore
	Alerts    storage.AlertStore
	Notifier  alerting.Notifier
	Dedup     Deduper
	Publisher publisher.Publisher
	Metrics   *instrumentation.Metrics
	Locker    storage.AdvisoryLocker
	LockKey   int64
	Alerting  AlertOptions

	Now func() time.Time
}

// Report summarises one scan. AsOf is the instant the odds describe; it is
// the slot for historical snapshots and the start time otherwise.
type Report struct {
	ScanID        string
	StartedAt     time.Time
	FinishedAt    time.Time
	AsOf          time.Time
	Snapshot      bool
	Config        arbitrage.Config
	Fetch         fetcher.FetchResult
	Stats         arbitrage.Stats
	Opportunities []arbitrage.Opportunity
	Alerted       int
}

// NoData reports whether no source returned data.
func (r Report) NoData() bool {
	return len(r.Fetch.Sources) == 0 || r.Fetch.Status() == fetcher.StatusTotalFailure
}

// Status is the persisted scan status.
func (r Report) Status() string {
	if r.NoData() {
		return StatusNoData
	}
	return r.Fetch.Status().String()
}

// Scanner orchestrates retrieval, evaluation, persistence, publishing and alerting.
type Scanner struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a scanner.
func New(opts Options, logger zerolog.Logger) (*Scanner, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("scanner: odds source is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Locker == nil {
		if l, ok := opts.Store.(storage.AdvisoryLocker); ok {
			opts.Locker = l
		}
	}
	return &Scanner{
		opts:   opts,
		logger: logger.With().Str("component", "scanner").Logger(),
	}, nil
}

// Scan fetches live odds for sports (the configured list when empty) and
// evaluates them with cfg. When every source fails the report is returned
// together with an error wrapping fetcher.ErrNoData.
func (s *Scanner) Scan(ctx context.Context, cfg arbitrage.Config, sports []string) (Report, error) {
	if len(sports) == 0 {
		sports = s.opts.Sports
	}
	now := s.opts.Now()
	return s.run(ctx, cfg, now, now, false, func(ctx context.Context) (fetcher.FetchResult, error) {
		return fetcher.Collect(ctx, s.opts.Source, sports, s.opts.Concurrency, s.logger)
	})
}

// ProcessTick runs a scheduled live scan using the configured evaluator. The
// round is skipped when another instance holds the advisory lock.
func (s *Scanner) ProcessTick(ctx context.Context, slot time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("slot", slot).Msg("skip round because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = s.Scan(ctx, s.opts.Evaluator, nil)
	if errors.Is(err, fetcher.ErrNoData) {
		return nil
	}
	return err
}

// ProcessSnapshot evaluates the historical snapshot closest to at as if the
// scan had run then. Opportunities are stamped with at, and processing the
// same slot again with the same settings reuses the scan id.
func (s *Scanner) ProcessSnapshot(ctx context.Context, at time.Time) (Report, error) {
	return s.run(ctx, s.opts.Evaluator, s.opts.Now(), at, true, func(ctx context.Context) (fetcher.FetchResult, error) {
		return fetcher.CollectHistorical(ctx, s.opts.Source, s.opts.Sports, at, s.opts.Concurrency, s.logger)
	})
}

func (s *Scanner) run(ctx context.Context, cfg arbitrage.Config, started, asOf time.Time, snapshot bool, fetch func(context.Context) (fetcher.FetchResult, error)) (Report, error) {
	report := Report{
		ScanID:    uuid.NewString(),
		StartedAt: started,
		AsOf:      asOf.UTC(),
		Snapshot:  snapshot,
		Config:    cfg,
	}
	if snapshot {
		report.ScanID = SnapshotScanID(asOf, s.opts.Sports, cfg)
	}
	log := s.logger.With().Str("scan_id", report.ScanID).Logger()

	result, err := fetch(ctx)
	report.Fetch = result
	for _, f := range result.Failures {
		s.opts.Metrics.RecordSourceFailure(f.Source)
	}
	if err != nil && !errors.Is(err, fetcher.ErrNoData) {
		return report, fmt.Errorf("fetch odds: %w", err)
	}

	if err == nil {
		evaluator := arbitrage.NewEvaluator(cfg)
		report.Opportunities, report.Stats = evaluator.Evaluate(result.Events, asOf)
		report.Config = evaluator.Config()
	}
	report.FinishedAt = s.opts.Now()

	s.record(report)
	s.persist(ctx, report, log)

	if report.NoData() {
		log.Warn().Int("failures", len(result.Failures)).Msg("no odds data available")
		return report, fmt.Errorf("scan %s: %w", report.ScanID, fetcher.ErrNoData)
	}

	log.Info().
		Str("status", report.Status()).
		Int("events", report.Stats.Events).
		Int("malformed", report.Stats.Malformed).
		Int("opportunities", len(report.Opportunities)).
		Msg("scan complete")

	s.publish(ctx, report, log)
	report.Alerted = s.alert(ctx, report, log)
	return report, nil
}

func (s *Scanner) record(report Report) {
	m := s.opts.Metrics
	if m == nil {
		return
	}
	m.RecordScan(report.Status(), report.FinishedAt.Sub(report.StartedAt).Seconds())
	m.RecordEvaluation(report.Stats.Evaluated, report.Stats.Malformed)
	best := 0.0
	for i, opp := range report.Opportunities {
		m.RecordOpportunity(string(opp.Mode))
		if i == 0 {
			best = opp.Margin
		}
	}
	m.SetBestMargin(best)
}

func (s *Scanner) persist(ctx context.Context, report Report, log zerolog.Logger) {
	if s.opts.Store == nil {
		return
	}
	scan, opps, err := Records(report)
	if err != nil {
		log.Error().Err(err).Msg("failed to build scan records")
		return
	}
	if err := s.opts.Store.SaveScan(ctx, scan, opps); err != nil {
		log.Error().Err(err).Msg("failed to persist scan")
	}
}

func (s *Scanner) publish(ctx context.Context, report Report, log zerolog.Logger) {
	if s.opts.Publisher == nil || len(report.Opportunities) == 0 {
		return
	}
	if err := s.opts.Publisher.Publish(ctx, report.ScanID, report.Opportunities); err != nil {
		log.Error().Err(err).Msg("failed to publish opportunities")
	}
}

func (s *Scanner) alert(ctx context.Context, report Report, log zerolog.Logger) int {
	cfg := s.opts.Alerting
	if !cfg.Enabled || s.opts.Notifier == nil {
		return 0
	}
	threshold := decimal.NewFromFloat(cfg.ThresholdPct)

	sent := 0
	for _, opp := range report.Opportunities {
		if opp.Margin < cfg.ThresholdPct {
			continue
		}
		key := opp.Key()
		if s.opts.Dedup != nil {
			ok, err := s.opts.Dedup.ShouldAlert(ctx, key)
			if err != nil {
				log.Warn().Err(err).Str("opportunity", key).Msg("dedup check failed, alerting anyway")
			} else if !ok {
				log.Debug().Str("opportunity", key).Msg("alert suppressed by cooldown")
				continue
			}
		}

		note := alerting.Notification{
			ScanID:       report.ScanID,
			DetectedAt:   report.FinishedAt,
			Opportunity:  opp,
			ThresholdPct: threshold,
			Channels:     cfg.Channels,
		}
		if err := s.opts.Notifier.Notify(ctx, note); err != nil {
			log.Error().Err(err).Str("opportunity", key).Msg("failed to dispatch alert")
			if s.opts.Dedup != nil {
				if relErr := s.opts.Dedup.Release(ctx, key); relErr != nil {
					log.Warn().Err(relErr).Str("opportunity", key).Msg("failed to release dedup claim")
				}
			}
			continue
		}
		sent++
		s.opts.Metrics.RecordAlert()

		if s.opts.Alerts != nil {
			record := storage.AlertRecord{
				OpportunityKey: key,
				ScanID:         report.ScanID,
				MarginPct:      opp.MarginPct(),
				ThresholdPct:   threshold,
				Channels:       cfg.Channels,
			}
			if _, err := s.opts.Alerts.InsertAlert(ctx, record); err != nil {
				log.Error().Err(err).Str("opportunity", key).Msg("failed to persist alert record")
			}
		}
	}
	return sent
}

func (s *Scanner) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.LockKey == 0 || s.opts.Locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.opts.Locker.TryAdvisoryLock(ctx, s.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// Records converts a report into its persisted form.
func Records(report Report) (storage.ScanRecord, []storage.OpportunityRecord, error) {
	failures, err := json.Marshal(report.Fetch.Failures)
	if err != nil {
		return storage.ScanRecord{}, nil, fmt.Errorf("marshal failures: %w", err)
	}
	scan := storage.ScanRecord{
		ID:            report.ScanID,
		StartedAt:     report.StartedAt,
		FinishedAt:    report.FinishedAt,
		Status:        report.Status(),
		Sports:        report.Fetch.Sources,
		Failures:      failures,
		EventsSeen:    report.Stats.Events,
		Opportunities: len(report.Opportunities),
		MinProfitPct:  decimal.NewFromFloat(report.Config.MinProfitPct),
		Mode:          string(report.Config.Mode),
		Kind:          storage.ScanKindLive,
		AsOf:          report.AsOf,
	}
	if report.Snapshot {
		scan.Kind = storage.ScanKindSnapshot
	}

	opps := make([]storage.OpportunityRecord, 0, len(report.Opportunities))
	for _, opp := range report.Opportunities {
		opps = append(opps, OpportunityRecord(report.ScanID, report.AsOf, opp))
	}
	return scan, opps, nil
}

// OpportunityRecord converts one opportunity into its persisted form.
func OpportunityRecord(scanID string, detectedAt time.Time, opp arbitrage.Opportunity) storage.OpportunityRecord {
	rec := storage.OpportunityRecord{
		ScanID:       scanID,
		Key:          opp.Key(),
		EventID:      opp.EventID,
		SportKey:     opp.SportKey,
		Sport:        opp.Sport,
		Match:        opp.Match,
		CommenceTime: opp.CommenceTime,
		Mode:         string(opp.Mode),
		MarginPct:    opp.MarginPct(),
		DetectedAt:   detectedAt,
	}
	if opp.Mode == arbitrage.ModePairwise {
		profit := arbitrage.Round2(opp.GuaranteedProfit)
		rec.GuaranteedProfitPct = &profit
	}
	for _, leg := range opp.Legs {
		rec.Legs = append(rec.Legs, storage.LegRecord{
			Outcome:   leg.Outcome,
			Bookmaker: leg.Bookmaker,
			Price:     decimal.NewFromFloat(leg.Price),
			StakePct:  leg.StakePct,
		})
	}
	return rec
}

var snapshotNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("arbscanner:snapshot"))

// SnapshotScanID derives a stable scan id from the slot and the settings that
// shape its result.
func SnapshotScanID(at time.Time, sports []string, cfg arbitrage.Config) string {
	name := fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		at.UTC().Format(time.RFC3339Nano),
		strings.Join(sports, ","),
		cfg.Mode,
		strconv.FormatFloat(cfg.MinProfitPct, 'f', -1, 64),
		cfg.MinBookmakers,
		int64(cfg.Horizon),
	)
	return uuid.NewSHA1(snapshotNamespace, []byte(name)).String()
}
