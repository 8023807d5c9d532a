package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"sports-arb-scanner/internal/alerting"
	"sports-arb-scanner/internal/arbitrage"
	"sports-arb-scanner/internal/cache"
	"sports-arb-scanner/internal/fetcher"
	"sports-arb-scanner/internal/instrumentation"
	"sports-arb-scanner/internal/odds"
	"sports-arb-scanner/internal/storage"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type stubSource struct {
	events     map[string][]odds.Event
	errs       map[string]error
	historical map[string]odds.Snapshot
}

func (s *stubSource) FetchSports(context.Context) ([]odds.Sport, error) {
	var out []odds.Sport
	for key := range s.events {
		out = append(out, odds.Sport{Key: key, Active: true})
	}
	return out, nil
}

func (s *stubSource) FetchOdds(_ context.Context, sport string) ([]odds.Event, error) {
	if err := s.errs[sport]; err != nil {
		return nil, err
	}
	return s.events[sport], nil
}

func (s *stubSource) FetchHistoricalOdds(_ context.Context, sport string, at time.Time) (odds.Snapshot, error) {
	snap, ok := s.historical[sport]
	if !ok {
		return odds.Snapshot{}, errors.New("no snapshot")
	}
	snap.Timestamp = at
	return snap, nil
}

type memoryStore struct {
	mu     sync.Mutex
	scans  []storage.ScanRecord
	opps   []storage.OpportunityRecord
	alerts []storage.AlertRecord
	locked bool
}

func (m *memoryStore) SaveScan(_ context.Context, scan storage.ScanRecord, opps []storage.OpportunityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans = append(m.scans, scan)
	m.opps = append(m.opps, opps...)
	return nil
}

func (m *memoryStore) ListRecentOpportunities(context.Context, int) ([]storage.OpportunityRecord, error) {
	return m.opps, nil
}

func (m *memoryStore) ListOpportunitiesBetween(context.Context, time.Time, time.Time, int) ([]storage.OpportunityRecord, error) {
	return m.opps, nil
}

func (m *memoryStore) CountOpportunities(context.Context) (int64, error) {
	return int64(len(m.opps)), nil
}

func (m *memoryStore) InsertAlert(_ context.Context, alert storage.AlertRecord) (storage.AlertRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert.ID = int64(len(m.alerts) + 1)
	m.alerts = append(m.alerts, alert)
	return alert, nil
}

func (m *memoryStore) ListRecentAlerts(context.Context, int) ([]storage.AlertRecord, error) {
	return m.alerts, nil
}

func (m *memoryStore) DeleteAlertsBefore(context.Context, time.Time) error { return nil }

func (m *memoryStore) TryAdvisoryLock(context.Context, int64) (func(), bool, error) {
	if m.locked {
		return nil, false, nil
	}
	return func() {}, true, nil
}

type recordingNotifier struct {
	notes []alerting.Notification
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, note alerting.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.notes = append(r.notes, note)
	return nil
}

type recordingPublisher struct {
	scanIDs []string
	count   int
}

func (p *recordingPublisher) Publish(_ context.Context, scanID string, opps []arbitrage.Opportunity) error {
	p.scanIDs = append(p.scanIDs, scanID)
	p.count += len(opps)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func h2hBook(title string, home, away float64) odds.Bookmaker {
	return odds.Bookmaker{Key: title, Title: title, Markets: []odds.Market{{
		Key:      odds.HeadToHead,
		Outcomes: []odds.Outcome{{Name: "Home", Price: home}, {Name: "Away", Price: away}},
	}}}
}

func fixture(id string, start time.Time, books ...odds.Bookmaker) odds.Event {
	return odds.Event{
		ID:           id,
		SportKey:     "basketball_nba",
		SportTitle:   "NBA",
		CommenceTime: start,
		HomeTeam:     "Home",
		AwayTeam:     "Away",
		Bookmakers:   books,
	}
}

func arbSource() *stubSource {
	return &stubSource{events: map[string][]odds.Event{
		"basketball_nba": {
			fixture("arb", fixedNow.Add(24*time.Hour), h2hBook("X", 2.10, 1.80), h2hBook("Y", 1.70, 2.05)),
			fixture("fair", fixedNow.Add(24*time.Hour), h2hBook("X", 1.90, 1.90)),
		},
	}}
}

func newScanner(t *testing.T, opts Options) *Scanner {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	if opts.Evaluator.Market == "" {
		opts.Evaluator = arbitrage.DefaultConfig()
	}
	if len(opts.Sports) == 0 {
		opts.Sports = []string{"basketball_nba"}
	}
	s, err := New(opts, zerolog.Nop())
	if err != nil {
		t.Fatalf("new scanner: %v", err)
	}
	return s
}

func TestNewRequiresSource(t *testing.T) {
	if _, err := New(Options{}, zerolog.Nop()); err == nil {
		t.Fatal("expected error without a source")
	}
}

func TestScanFindsAndPersistsOpportunity(t *testing.T) {
	store := &memoryStore{}
	pub := &recordingPublisher{}
	metrics := instrumentation.NewMetrics()
	s := newScanner(t, Options{Source: arbSource(), Store: store, Publisher: pub, Metrics: metrics})

	report, err := s.Scan(context.Background(), arbitrage.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(report.Opportunities) != 1 {
		t.Fatalf("expected one opportunity, got %d", len(report.Opportunities))
	}
	if got := report.Opportunities[0].MarginPct().StringFixed(2); got != "3.60" {
		t.Fatalf("expected margin 3.60, got %s", got)
	}
	if report.Status() != "success" {
		t.Fatalf("unexpected status %s", report.Status())
	}
	if len(store.scans) != 1 || store.scans[0].ID != report.ScanID || store.scans[0].Opportunities != 1 {
		t.Fatalf("unexpected persisted scans %+v", store.scans)
	}
	if len(store.opps) != 1 || len(store.opps[0].Legs) != 2 {
		t.Fatalf("unexpected persisted opportunities %+v", store.opps)
	}
	if pub.count != 1 || pub.scanIDs[0] != report.ScanID {
		t.Fatalf("unexpected publish calls %+v", pub)
	}
}

func TestScanNoDataIsDistinct(t *testing.T) {
	store := &memoryStore{}
	src := &stubSource{errs: map[string]error{"basketball_nba": errors.New("boom")}}
	s := newScanner(t, Options{Source: src, Store: store})

	report, err := s.Scan(context.Background(), arbitrage.DefaultConfig(), nil)
	if !errors.Is(err, fetcher.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if !report.NoData() || report.Status() != StatusNoData {
		t.Fatalf("expected no-data report, got %s", report.Status())
	}
	if len(store.scans) != 1 || store.scans[0].Status != StatusNoData {
		t.Fatalf("no-data scan should still be recorded: %+v", store.scans)
	}
}

func TestScanPartialFailureKeepsResults(t *testing.T) {
	src := arbSource()
	src.errs = map[string]error{"soccer_epl": errors.New("quota exceeded")}
	s := newScanner(t, Options{Source: src})

	report, err := s.Scan(context.Background(), arbitrage.DefaultConfig(), []string{"basketball_nba", "soccer_epl"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.Fetch.Status() != fetcher.StatusPartialFailure {
		t.Fatalf("expected partial failure, got %s", report.Fetch.Status())
	}
	if len(report.Opportunities) != 1 {
		t.Fatalf("expected opportunities from the healthy sport, got %d", len(report.Opportunities))
	}
}

func TestScanEmptyResultIsNotNoData(t *testing.T) {
	src := &stubSource{events: map[string][]odds.Event{"basketball_nba": {}}}
	s := newScanner(t, Options{Source: src})

	report, err := s.Scan(context.Background(), arbitrage.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.NoData() || len(report.Opportunities) != 0 {
		t.Fatalf("expected an empty but successful scan, got %+v", report)
	}
}

func TestAlertsRespectThresholdAndDedup(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &memoryStore{}
	notifier := &recordingNotifier{}
	s := newScanner(t, Options{
		Source:   arbSource(),
		Alerts:   store,
		Notifier: notifier,
		Dedup:    cache.NewDeduplicator(client, time.Hour, "test"),
		Alerting: AlertOptions{Enabled: true, ThresholdPct: 3.0, Channels: []string{"telegram"}},
	})

	ctx := context.Background()
	first, err := s.Scan(ctx, arbitrage.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if first.Alerted != 1 || len(notifier.notes) != 1 {
		t.Fatalf("expected one alert, got %d", len(notifier.notes))
	}
	if notifier.notes[0].ThresholdPct.StringFixed(2) != "3.00" {
		t.Fatalf("unexpected threshold %s", notifier.notes[0].ThresholdPct)
	}
	if len(store.alerts) != 1 || store.alerts[0].OpportunityKey != first.Opportunities[0].Key() {
		t.Fatalf("unexpected alert records %+v", store.alerts)
	}

	second, err := s.Scan(ctx, arbitrage.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if second.Alerted != 0 || len(notifier.notes) != 1 {
		t.Fatal("repeat opportunity should be suppressed during cooldown")
	}

	mr.FastForward(2 * time.Hour)
	third, err := s.Scan(ctx, arbitrage.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if third.Alerted != 1 {
		t.Fatal("alert should fire again after cooldown")
	}
}

func TestFailedAlertIsRetriedNextScan(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	notifier := &recordingNotifier{err: errors.New("telegram down")}
	s := newScanner(t, Options{
		Source:   arbSource(),
		Notifier: notifier,
		Dedup:    cache.NewDeduplicator(client, time.Hour, "test"),
		Alerting: AlertOptions{Enabled: true, ThresholdPct: 3.0},
	})

	ctx := context.Background()
	first, err := s.Scan(ctx, arbitrage.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if first.Alerted != 0 {
		t.Fatalf("failed delivery must not count as alerted, got %d", first.Alerted)
	}

	notifier.err = nil
	second, err := s.Scan(ctx, arbitrage.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if second.Alerted != 1 || len(notifier.notes) != 1 {
		t.Fatalf("undelivered alert should be retried within the cooldown, got %d", second.Alerted)
	}
}

func TestAlertsBelowThresholdSkipped(t *testing.T) {
	notifier := &recordingNotifier{}
	s := newScanner(t, Options{
		Source:   arbSource(),
		Notifier: notifier,
		Alerting: AlertOptions{Enabled: true, ThresholdPct: 5.0},
	})
	if _, err := s.Scan(context.Background(), arbitrage.DefaultConfig(), nil); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatal("3.60% margin must not alert at a 5% threshold")
	}
}

func TestProcessTickSkipsWhenLocked(t *testing.T) {
	store := &memoryStore{locked: true}
	s := newScanner(t, Options{Source: arbSource(), Store: store, LockKey: 42})
	if err := s.ProcessTick(context.Background(), fixedNow); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(store.scans) != 0 {
		t.Fatal("locked round must not scan")
	}

	store.locked = false
	if err := s.ProcessTick(context.Background(), fixedNow); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(store.scans) != 1 {
		t.Fatal("unlocked round should scan")
	}
}

func TestProcessSnapshotUsesSnapshotTime(t *testing.T) {
	at := fixedNow.Add(-30 * 24 * time.Hour)
	src := &stubSource{historical: map[string]odds.Snapshot{
		"basketball_nba": {Events: []odds.Event{
			fixture("old", at.Add(24*time.Hour), h2hBook("X", 2.10, 1.80), h2hBook("Y", 1.70, 2.05)),
		}},
	}}
	cfg := arbitrage.DefaultConfig()
	cfg.Horizon = 48 * time.Hour
	store := &memoryStore{}
	s := newScanner(t, Options{Source: src, Evaluator: cfg, Store: store})

	report, err := s.ProcessSnapshot(context.Background(), at)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(report.Opportunities) != 1 {
		t.Fatalf("horizon should be measured from the snapshot time, got %d", len(report.Opportunities))
	}
	if len(store.scans) != 1 || len(store.opps) != 1 {
		t.Fatalf("expected one persisted scan and opportunity, got %d/%d", len(store.scans), len(store.opps))
	}
	if !store.opps[0].DetectedAt.Equal(at) {
		t.Fatalf("opportunity should be stamped with the slot %v, got %v", at, store.opps[0].DetectedAt)
	}
	if !store.scans[0].AsOf.Equal(at) || store.scans[0].Kind != storage.ScanKindSnapshot {
		t.Fatalf("unexpected scan record %+v", store.scans[0])
	}
	if store.opps[0].Key != report.Opportunities[0].Key() {
		t.Fatalf("opportunity key not persisted: %q", store.opps[0].Key)
	}

	again, err := s.ProcessSnapshot(context.Background(), at)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if again.ScanID != report.ScanID {
		t.Fatalf("reprocessing a slot should reuse the scan id, got %s and %s", report.ScanID, again.ScanID)
	}
	if other, _ := s.ProcessSnapshot(context.Background(), at.Add(time.Hour)); other.ScanID == report.ScanID {
		t.Fatal("different slots must get different scan ids")
	}
}

func TestLiveScanStampedWithStart(t *testing.T) {
	store := &memoryStore{}
	s := newScanner(t, Options{Source: arbSource(), Store: store})

	first, err := s.Scan(context.Background(), arbitrage.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	second, err := s.Scan(context.Background(), arbitrage.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if first.ScanID == second.ScanID {
		t.Fatal("live scans must get fresh ids")
	}
	if store.scans[0].Kind != storage.ScanKindLive || !store.opps[0].DetectedAt.Equal(fixedNow) {
		t.Fatalf("unexpected live records %+v %+v", store.scans[0], store.opps[0])
	}
}

func TestRecordsPairwiseProfit(t *testing.T) {
	cfg := arbitrage.DefaultConfig()
	cfg.Mode = arbitrage.ModePairwise
	s := newScanner(t, Options{Source: arbSource()})

	report, err := s.Scan(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	_, opps, err := Records(report)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(opps) == 0 {
		t.Fatal("expected pairwise records")
	}
	for _, rec := range opps {
		if rec.GuaranteedProfitPct == nil || rec.Legs[0].StakePct == nil {
			t.Fatalf("pairwise record missing profit or stakes: %+v", rec)
		}
	}
}
