package storage

import (
	"context"
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
	insertCycleSQL = `INSERT INTO cycles (
        id,
        started_at,
        completed_at,
        status,
        envelopes,
        quotes,
        games,
        records,
        unresolved,
        markets,
        opportunities,
        arbitrages
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
    )
    ON CONFLICT (id) DO NOTHING;`

	insertOpportunitySQL = `INSERT INTO opportunities (
        cycle_id,
        rank,
        market_key,
        game,
        market,
        spread,
        sport,
        live,
        total_implied_prob,
        profit_pct,
        total_stake,
        guaranteed_profit,
        is_arbitrage,
        legs
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
    );`

	listRecentOpportunitiesSQL = `SELECT
        id,
        cycle_id,
        rank,
        market_key,
        game,
        market,
        spread,
        sport,
        live,
        total_implied_prob,
        profit_pct,
        total_stake,
        guaranteed_profit,
        is_arbitrage,
        legs,
        created_at
    FROM opportunities
    WHERE ($2 = FALSE OR is_arbitrage)
    ORDER BY created_at DESC, rank ASC
    LIMIT $1;`

	latestCycleSQL = `SELECT
        id,
        started_at,
        completed_at,
        status,
        envelopes,
        quotes,
        games,
        records,
        unresolved,
        markets,
        opportunities,
        arbitrages,
        created_at
    FROM cycles
    ORDER BY started_at DESC
    LIMIT 1;`

	deleteOpportunitiesBeforeSQL = `DELETE FROM opportunities WHERE created_at < $1;`
	deleteCyclesBeforeSQL        = `DELETE FROM cycles WHERE started_at < $1;`
	deleteAlertsBeforeSQL        = `DELETE FROM alerts WHERE created_at < $1;`

	insertAlertSQL = `INSERT INTO alerts (
        cycle_id,
        market_key,
        profit_pct,
        threshold_pct,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    RETURNING id, cycle_id, market_key, profit_pct, threshold_pct, channels, created_at;`

	lastAlertAtSQL = `SELECT MAX(created_at) FROM alerts WHERE market_key = $1;`

	listRecentAlertsSQL = `SELECT
        id,
        cycle_id,
        market_key,
        profit_pct,
        threshold_pct,
        channels,
        created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// CycleStore defines operations for cycle persistence.
type CycleStore interface {
	InsertCycle(ctx context.Context, cycle CycleRecord, opps []OpportunityRecord) error
	LatestCycle(ctx context.Context) (CycleRecord, error)
	ListRecentOpportunities(ctx context.Context, limit int, onlyArbitrage bool) ([]OpportunityRecord, error)
	PruneBefore(ctx context.Context, olderThan time.Time) (PruneResult, error)
}

// AlertStore defines operations for alert auditing and cooldown.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	LastAlertAt(ctx context.Context, marketKey string) (time.Time, bool, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to cycles, opportunities and alerts.
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

// InsertCycle stores a cycle and its opportunities in one transaction.
func (s *Store) InsertCycle(ctx context.Context, cycle CycleRecord, opps []OpportunityRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertCycleSQL,
			cycle.ID,
			cycle.StartedAt,
			cycle.CompletedAt,
			cycle.Status,
			cycle.Envelopes,
			cycle.Quotes,
			cycle.Games,
			cycle.Records,
			cycle.Unresolved,
			cycle.Markets,
			cycle.Opportunities,
			cycle.Arbitrages,
		); err != nil {
			return fmt.Errorf("insert cycle: %w", err)
		}
		if len(opps) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, o := range opps {
			batch.Queue(insertOpportunitySQL,
				cycle.ID,
				o.Rank,
				o.MarketKey,
				o.Game,
				o.Market,
				o.Spread,
				o.Sport,
				o.Live,
				o.TotalImpliedProb.String(),
				o.ProfitPct.String(),
				o.TotalStake.String(),
				o.GuaranteedProfit.String(),
				o.IsArbitrage,
				[]byte(o.Legs),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert opportunities: %w", err)
		}
		return nil
	})
}

// LatestCycle returns the most recently started cycle.
func (s *Store) LatestCycle(ctx context.Context) (CycleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return CycleRecord{}, err
	}

	var c CycleRecord
	if err := pool.QueryRow(ctx, latestCycleSQL).Scan(
		&c.ID,
		&c.StartedAt,
		&c.CompletedAt,
		&c.Status,
		&c.Envelopes,
		&c.Quotes,
		&c.Games,
		&c.Records,
		&c.Unresolved,
		&c.Markets,
		&c.Opportunities,
		&c.Arbitrages,
		&c.CreatedAt,
	); err != nil {
		return CycleRecord{}, fmt.Errorf("latest cycle: %w", err)
	}
	return c, nil
}

// ListRecentOpportunities lists the newest opportunities, best rank first
// within a cycle.
func (s *Store) ListRecentOpportunities(ctx context.Context, limit int, onlyArbitrage bool) ([]OpportunityRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentOpportunitiesSQL, limit, onlyArbitrage)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent opportunities: %w", queryErr)
	}
	defer rows.Close()

	out := make([]OpportunityRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanOpportunity(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// PruneBefore deletes history older than the cutoff.
func (s *Store) PruneBefore(ctx context.Context, olderThan time.Time) (PruneResult, error) {
	pool, err := s.getPool()
	if err != nil {
		return PruneResult{}, err
	}

	var res PruneResult
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, deleteOpportunitiesBeforeSQL, olderThan)
		if err != nil {
			return fmt.Errorf("delete opportunities: %w", err)
		}
		res.Opportunities = tag.RowsAffected()

		if tag, err = tx.Exec(ctx, deleteCyclesBeforeSQL, olderThan); err != nil {
			return fmt.Errorf("delete cycles: %w", err)
		}
		res.Cycles = tag.RowsAffected()

		if tag, err = tx.Exec(ctx, deleteAlertsBeforeSQL, olderThan); err != nil {
			return fmt.Errorf("delete alerts: %w", err)
		}
		res.Alerts = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return PruneResult{}, err
	}
	return res, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.CycleID,
		alert.MarketKey,
		alert.ProfitPct.String(),
		alert.ThresholdPct.String(),
		alert.Channels,
	)
	rec, scanErr := scanAlert(row)
	if scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// LastAlertAt reports when the market was last alerted on.
func (s *Store) LastAlertAt(ctx context.Context, marketKey string) (time.Time, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return time.Time{}, false, err
	}

	var last *time.Time
	if err := pool.QueryRow(ctx, lastAlertAtSQL, marketKey).Scan(&last); err != nil {
		return time.Time{}, false, fmt.Errorf("last alert: %w", err)
	}
	if last == nil {
		return time.Time{}, false, nil
	}
	return *last, true, nil
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

func scanAlert(row pgx.Row) (AlertRecord, error) {
	var (
		rec          AlertRecord
		profitStr    string
		thresholdStr string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.CycleID,
		&rec.MarketKey,
		&profitStr,
		&thresholdStr,
		&rec.Channels,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	var err error
	if rec.ProfitPct, err = decimal.NewFromString(profitStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse profit pct: %w", err)
	}
	if rec.ThresholdPct, err = decimal.NewFromString(thresholdStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse threshold pct: %w", err)
	}
	return rec, nil
}

func scanOpportunity(rows pgx.Rows) (OpportunityRecord, error) {
	var (
		rec                                    OpportunityRecord
		impliedStr, profitStr, stakeStr, gpStr string
		legs                                   json.RawMessage
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.CycleID,
		&rec.Rank,
		&rec.MarketKey,
		&rec.Game,
		&rec.Market,
		&rec.Spread,
		&rec.Sport,
		&rec.Live,
		&impliedStr,
		&profitStr,
		&stakeStr,
		&gpStr,
		&rec.IsArbitrage,
		&legs,
		&rec.CreatedAt,
	); err != nil {
		return OpportunityRecord{}, err
	}

	var err error
	if rec.TotalImpliedProb, err = decimal.NewFromString(impliedStr); err != nil {
		return OpportunityRecord{}, fmt.Errorf("parse implied probability: %w", err)
	}
	if rec.ProfitPct, err = decimal.NewFromString(profitStr); err != nil {
		return OpportunityRecord{}, fmt.Errorf("parse profit pct: %w", err)
	}
	if rec.TotalStake, err = decimal.NewFromString(stakeStr); err != nil {
		return OpportunityRecord{}, fmt.Errorf("parse total stake: %w", err)
	}
	if rec.GuaranteedProfit, err = decimal.NewFromString(gpStr); err != nil {
		return OpportunityRecord{}, fmt.Errorf("parse guaranteed profit: %w", err)
	}
	rec.Legs = legs
	return rec, nil
}

var (
	_ CycleStore     = (*Store)(nil)
	_ AlertStore     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
