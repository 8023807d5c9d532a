package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertScanSQL = `INSERT INTO scans (
        id,
        started_at,
        finished_at,
        status,
        sports,
        failures,
        events_seen,
        opportunities,
        min_profit_pct,
        mode,
        kind,
        as_of
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
    )
    ON CONFLICT (id) DO UPDATE SET
        started_at = EXCLUDED.started_at,
        finished_at = EXCLUDED.finished_at,
        status = EXCLUDED.status,
        failures = EXCLUDED.failures,
        events_seen = EXCLUDED.events_seen,
        opportunities = EXCLUDED.opportunities;`

	deleteScanOpportunitiesSQL = `DELETE FROM opportunities WHERE scan_id = $1;`

	insertOpportunitySQL = `INSERT INTO opportunities (
        scan_id,
        opportunity_key,
        event_id,
        sport_key,
        sport_title,
        match_label,
        commence_time,
        mode,
        margin_pct,
        guaranteed_profit_pct,
        legs,
        detected_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
    )
    ON CONFLICT (opportunity_key, detected_at) WHERE opportunity_key <> '' DO UPDATE SET
        scan_id = EXCLUDED.scan_id,
        margin_pct = EXCLUDED.margin_pct,
        guaranteed_profit_pct = EXCLUDED.guaranteed_profit_pct,
        legs = EXCLUDED.legs;`

	opportunityColumns = `
        id,
        scan_id::text,
        opportunity_key,
        event_id,
        sport_key,
        sport_title,
        match_label,
        commence_time,
        mode,
        margin_pct::text,
        guaranteed_profit_pct::text,
        legs,
        detected_at`

	listRecentOpportunitiesSQL = `SELECT` + opportunityColumns + `
    FROM opportunities
    ORDER BY detected_at DESC, margin_pct DESC
    LIMIT $1;`

	listOpportunitiesBetweenSQL = `SELECT` + opportunityColumns + `
    FROM opportunities
    WHERE detected_at >= $1
      AND detected_at < $2
    ORDER BY margin_pct DESC
    LIMIT $3;`

	countOpportunitiesSQL = `SELECT COUNT(*) FROM opportunities;`

	insertAlertSQL = `INSERT INTO alerts (
        opportunity_key,
        scan_id,
        margin_pct,
        threshold_pct,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    RETURNING id, opportunity_key, scan_id::text, margin_pct::text, threshold_pct::text, channels, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        opportunity_key,
        scan_id::text,
        margin_pct::text,
        threshold_pct::text,
        channels,
        created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ScanStore defines persistence of scans and their opportunities.
type ScanStore interface {
	SaveScan(ctx context.Context, scan ScanRecord, opps []OpportunityRecord) error
	ListRecentOpportunities(ctx context.Context, limit int) ([]OpportunityRecord, error)
	ListOpportunitiesBetween(ctx context.Context, from, to time.Time, limit int) ([]OpportunityRecord, error)
	CountOpportunities(ctx context.Context) (int64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to scans, opportunities and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// SaveScan writes a scan and its opportunities in one transaction. Saving the
// same scan id again replaces its opportunities, and an opportunity already
// stored for the same key and detection time is updated in place.
func (s *Store) SaveScan(ctx context.Context, scan ScanRecord, opps []OpportunityRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	failures := scan.Failures
	if len(failures) == 0 {
		failures = json.RawMessage("[]")
	}
	sports := scan.Sports
	if sports == nil {
		sports = []string{}
	}
	kind := scan.Kind
	if kind == "" {
		kind = ScanKindLive
	}
	asOf := scan.AsOf
	if asOf.IsZero() {
		asOf = scan.StartedAt
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertScanSQL,
			scan.ID,
			scan.StartedAt,
			scan.FinishedAt,
			scan.Status,
			sports,
			[]byte(failures),
			scan.EventsSeen,
			scan.Opportunities,
			scan.MinProfitPct.String(),
			scan.Mode,
			kind,
			asOf,
		); err != nil {
			return fmt.Errorf("insert scan: %w", err)
		}
		if _, err := tx.Exec(ctx, deleteScanOpportunitiesSQL, scan.ID); err != nil {
			return fmt.Errorf("clear scan opportunities: %w", err)
		}

		batch := &pgx.Batch{}
		for _, opp := range opps {
			legs, err := json.Marshal(opp.Legs)
			if err != nil {
				return fmt.Errorf("marshal legs: %w", err)
			}
			var profit interface{}
			if opp.GuaranteedProfitPct != nil {
				profit = opp.GuaranteedProfitPct.String()
			}
			batch.Queue(insertOpportunitySQL,
				scan.ID,
				opp.Key,
				opp.EventID,
				opp.SportKey,
				opp.Sport,
				opp.Match,
				opp.CommenceTime,
				opp.Mode,
				opp.MarginPct.String(),
				profit,
				legs,
				opp.DetectedAt,
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert opportunities: %w", err)
		}
		return nil
	})
}

// ListRecentOpportunities lists the most recently detected opportunities.
func (s *Store) ListRecentOpportunities(ctx context.Context, limit int) ([]OpportunityRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentOpportunitiesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent opportunities: %w", queryErr)
	}
	return collectOpportunities(rows, limit)
}

// ListOpportunitiesBetween lists opportunities detected within a window, best margin first.
func (s *Store) ListOpportunitiesBetween(ctx context.Context, from, to time.Time, limit int) ([]OpportunityRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listOpportunitiesBetweenSQL, from, to, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list opportunities between: %w", queryErr)
	}
	return collectOpportunities(rows, limit)
}

// CountOpportunities counts stored opportunities.
func (s *Store) CountOpportunities(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countOpportunitiesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count opportunities: %w", scanErr)
	}
	return count, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.OpportunityKey,
		alert.ScanID,
		alert.MarginPct.String(),
		alert.ThresholdPct.String(),
		alert.Channels,
	)
	rec, scanErr := scanAlert(row)
	if scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func scanAlert(row pgx.Row) (AlertRecord, error) {
	var (
		rec                     AlertRecord
		marginStr, thresholdStr string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.OpportunityKey,
		&rec.ScanID,
		&marginStr,
		&thresholdStr,
		&rec.Channels,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	var err error
	if rec.MarginPct, err = decimal.NewFromString(marginStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse margin pct: %w", err)
	}
	if rec.ThresholdPct, err = decimal.NewFromString(thresholdStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse threshold pct: %w", err)
	}
	return rec, nil
}

func collectOpportunities(rows pgx.Rows, capacity int) ([]OpportunityRecord, error) {
	defer rows.Close()

	if capacity < 0 {
		capacity = 0
	}
	out := make([]OpportunityRecord, 0, capacity)
	for rows.Next() {
		rec, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanOpportunity(rows pgx.Rows) (OpportunityRecord, error) {
	var (
		rec       OpportunityRecord
		marginStr string
		profitStr sql.NullString
		legs      []byte
	)
	if err := rows.Scan(
		&rec.ID,
		&rec.ScanID,
		&rec.Key,
		&rec.EventID,
		&rec.SportKey,
		&rec.Sport,
		&rec.Match,
		&rec.CommenceTime,
		&rec.Mode,
		&marginStr,
		&profitStr,
		&legs,
		&rec.DetectedAt,
	); err != nil {
		return OpportunityRecord{}, err
	}

	margin, err := decimal.NewFromString(marginStr)
	if err != nil {
		return OpportunityRecord{}, fmt.Errorf("parse margin pct: %w", err)
	}
	rec.MarginPct = margin

	if profitStr.Valid {
		profit, err := decimal.NewFromString(profitStr.String)
		if err != nil {
			return OpportunityRecord{}, fmt.Errorf("parse guaranteed profit: %w", err)
		}
		rec.GuaranteedProfitPct = &profit
	}
	if err := json.Unmarshal(legs, &rec.Legs); err != nil {
		return OpportunityRecord{}, fmt.Errorf("decode legs: %w", err)
	}
	return rec, nil
}
