package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawmove/swap-engine/internal/models"
)

type scannable interface {
	Scan(dest ...any) error
}

type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// TradingDay returns the UTC calendar day (YYYY-MM-DD) for a timestamp.
func TradingDay(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

// TradingDayNow returns the trading day for the current moment.
func TradingDayNow() string {
	return TradingDay(time.Now())
}

type SignalRepo struct {
	pool *pgxpool.Pool
}

func NewSignalRepo(pool *pgxpool.Pool) *SignalRepo {
	return &SignalRepo{pool: pool}
}

func (r *SignalRepo) Record(ctx context.Context, s *models.SignalRecord) (*models.SignalRecord, error) {
	ts := s.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	td := TradingDay(ts)

	row := r.pool.QueryRow(ctx,
		`INSERT INTO signal_history
		 (timestamp, trading_day, signal_id, symbol, tf, side, venue,
		  amount_in, expected_out, min_out, approve_tx_hash, tx_hash,
		  unwrap_tx_hash, status, used_fallback, fallback_reason,
		  is_dry_run, error)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		 RETURNING *`,
		ts, td, s.SignalID, s.Symbol, s.TF, s.Side, s.Venue,
		s.AmountIn, s.ExpectedOut, s.MinOut, s.ApproveTxHash, s.TxHash,
		s.UnwrapTxHash, s.Status, s.UsedFallback, s.FallbackReason,
		s.IsDryRun, s.Error,
	)
	return scanSignal(row)
}

// GetByDay returns executions for one trading day in submission order.
func (r *SignalRepo) GetByDay(ctx context.Context, tradingDay string) ([]models.SignalRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT * FROM signal_history WHERE trading_day = $1 ORDER BY timestamp ASC`,
		tradingDay,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSignals(rows)
}

// GetAll returns the most recent executions.
func (r *SignalRepo) GetAll(ctx context.Context, limit int) ([]models.SignalRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT * FROM signal_history ORDER BY timestamp DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSignals(rows)
}

// CountToday counts executions that actually submitted (or dry-ran) today,
// failed attempts included: the daily cap is about how often the wallet
// acts, and a failed swap still consumed a quote and possibly gas.
func (r *SignalRepo) CountToday(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM signal_history WHERE trading_day = $1`,
		TradingDayNow(),
	).Scan(&count)
	return count, err
}

// SeenToday reports whether a signal id was already executed successfully
// today. Used by the opt-in replay guard.
func (r *SignalRepo) SeenToday(ctx context.Context, signalID string) (bool, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM signal_history
		 WHERE trading_day = $1 AND signal_id = $2 AND status = 'done'`,
		TradingDayNow(), signalID,
	).Scan(&count)
	return count > 0, err
}

// GetStats returns aggregate execution statistics.
func (r *SignalRepo) GetStats(ctx context.Context) (*models.ExecutionStats, error) {
	var s models.ExecutionStats
	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(CASE WHEN side = 'BUY' THEN 1 END),
			COUNT(CASE WHEN side = 'SELL' THEN 1 END),
			COUNT(CASE WHEN status = 'done' THEN 1 END),
			COUNT(CASE WHEN status = 'failed' THEN 1 END),
			COUNT(CASE WHEN used_fallback THEN 1 END),
			COUNT(CASE WHEN is_dry_run THEN 1 END),
			MIN(timestamp),
			MAX(timestamp)
		 FROM signal_history`,
	).Scan(
		&s.TotalSignals, &s.BuyCount, &s.SellCount, &s.DoneCount,
		&s.FailedCount, &s.FallbackCount, &s.DryRunCount,
		&s.FirstSignal, &s.LastSignal,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// --- scan helpers ---

func scanSignal(row scannable) (*models.SignalRecord, error) {
	var rec models.SignalRecord
	var td time.Time
	err := row.Scan(
		&rec.ID, &rec.Timestamp, &td, &rec.SignalID, &rec.Symbol, &rec.TF,
		&rec.Side, &rec.Venue, &rec.AmountIn, &rec.ExpectedOut, &rec.MinOut,
		&rec.ApproveTxHash, &rec.TxHash, &rec.UnwrapTxHash, &rec.Status,
		&rec.UsedFallback, &rec.FallbackReason, &rec.IsDryRun, &rec.Error,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.TradingDay = td.Format("2006-01-02")
	return &rec, nil
}

func collectSignals(rows rowsIter) ([]models.SignalRecord, error) {
	var out []models.SignalRecord
	for rows.Next() {
		var rec models.SignalRecord
		var td time.Time
		if err := rows.Scan(
			&rec.ID, &rec.Timestamp, &td, &rec.SignalID, &rec.Symbol, &rec.TF,
			&rec.Side, &rec.Venue, &rec.AmountIn, &rec.ExpectedOut, &rec.MinOut,
			&rec.ApproveTxHash, &rec.TxHash, &rec.UnwrapTxHash, &rec.Status,
			&rec.UsedFallback, &rec.FallbackReason, &rec.IsDryRun, &rec.Error,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.TradingDay = td.Format("2006-01-02")
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Schema reference (applied by migrations outside this binary):
//
//	CREATE TABLE signal_history (
//	    id              BIGSERIAL PRIMARY KEY,
//	    timestamp       TIMESTAMPTZ NOT NULL,
//	    trading_day     DATE NOT NULL,
//	    signal_id       TEXT NOT NULL,
//	    symbol          TEXT NOT NULL,
//	    tf              TEXT NOT NULL,
//	    side            TEXT NOT NULL,
//	    venue           TEXT NOT NULL,
//	    amount_in       TEXT,
//	    expected_out    TEXT,
//	    min_out         TEXT,
//	    approve_tx_hash TEXT,
//	    tx_hash         TEXT,
//	    unwrap_tx_hash  TEXT,
//	    status          TEXT NOT NULL,
//	    used_fallback   BOOLEAN NOT NULL DEFAULT FALSE,
//	    fallback_reason TEXT,
//	    is_dry_run      BOOLEAN NOT NULL DEFAULT FALSE,
//	    error           TEXT,
//	    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//	CREATE INDEX idx_signal_history_day ON signal_history (trading_day);
//	CREATE INDEX idx_signal_history_sig ON signal_history (signal_id);
