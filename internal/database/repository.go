package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Repository provides data access on top of DB.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

const screeningColumns = `id, pass_id, symbol, timeframe, price,
	price_change_5m, price_change_15m, price_change_1h, price_change_4h, price_change_24h,
	quote_volume_24h, beta_score, volume_score, technical_score, total_score, rsi,
	volume_surge, macd_golden_cross, above_all_ema, price_anomaly, signals, indicators, created_at`

// ReplaceScreeningWindow persists a screening pass: rows for the same
// timeframe created inside the dedup window are deleted and the new batch
// inserted, all in one transaction, so repeated passes never pile up
// near-identical snapshots.
func (r *Repository) ReplaceScreeningWindow(ctx context.Context, timeframe string, window time.Duration, results []ScreeningResult) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		cutoff := time.Now().Add(-window)
		if _, err := tx.Exec(ctx,
			`DELETE FROM screening_results WHERE timeframe = $1 AND created_at >= $2`,
			timeframe, cutoff); err != nil {
			return fmt.Errorf("error clearing dedup window: %w", err)
		}

		for _, res := range results {
			signals, err := json.Marshal(res.Signals)
			if err != nil {
				return fmt.Errorf("error encoding signals: %w", err)
			}
			indicators := res.Indicators
			if indicators == nil {
				indicators = json.RawMessage("null")
			}

			if _, err := tx.Exec(ctx, `
				INSERT INTO screening_results (
					pass_id, symbol, timeframe, price,
					price_change_5m, price_change_15m, price_change_1h, price_change_4h, price_change_24h,
					quote_volume_24h, beta_score, volume_score, technical_score, total_score, rsi,
					volume_surge, macd_golden_cross, above_all_ema, price_anomaly, signals, indicators)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
				res.PassID, res.Symbol, res.Timeframe, res.Price,
				res.PriceChange5m, res.PriceChange15m, res.PriceChange1h, res.PriceChange4h, res.PriceChange24h,
				res.QuoteVolume24h, res.BetaScore, res.VolumeScore, res.TechnicalScore, res.TotalScore, res.RSI,
				res.VolumeSurge, res.MACDGolden, res.AboveAllEMA, res.PriceAnomaly, signals, indicators); err != nil {
				return fmt.Errorf("error inserting screening result for %s: %w", res.Symbol, err)
			}
		}
		return nil
	})
}

// GetScreeningResults returns recent snapshots for a timeframe filtered by
// minimum total score, newest pass first, best score first within a pass.
func (r *Repository) GetScreeningResults(ctx context.Context, timeframe string, minScore float64, limit int) ([]ScreeningResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+screeningColumns+`
		FROM screening_results
		WHERE timeframe = $1 AND total_score >= $2
		ORDER BY created_at DESC, total_score DESC
		LIMIT $3`,
		timeframe, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying screening results: %w", err)
	}
	defer rows.Close()

	return scanScreeningResults(rows)
}

// GetTopOpportunities returns the highest-scoring snapshots across all
// timeframes from the recent window.
func (r *Repository) GetTopOpportunities(ctx context.Context, since time.Time, limit int) ([]ScreeningResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+screeningColumns+`
		FROM screening_results
		WHERE created_at >= $1
		ORDER BY total_score DESC
		LIMIT $2`,
		since, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying top opportunities: %w", err)
	}
	defer rows.Close()

	return scanScreeningResults(rows)
}

// GetEntryCandidates returns recent snapshots for one timeframe ordered by
// total score, for the auto-trade evaluator.
func (r *Repository) GetEntryCandidates(ctx context.Context, timeframe string, since time.Time, limit int) ([]ScreeningResult, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+screeningColumns+`
		FROM screening_results
		WHERE timeframe = $1 AND created_at >= $2
		ORDER BY total_score DESC
		LIMIT $3`,
		timeframe, since, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying entry candidates: %w", err)
	}
	defer rows.Close()

	return scanScreeningResults(rows)
}

// GetSymbolHistory returns snapshots for one symbol newest first, optionally
// restricted to a timeframe.
func (r *Repository) GetSymbolHistory(ctx context.Context, symbol, timeframe string, since time.Time, limit int) ([]ScreeningResult, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + screeningColumns + ` FROM screening_results
		WHERE symbol = $1 AND created_at >= $2`
	args := []interface{}{symbol, since}
	if timeframe != "" {
		args = append(args, timeframe)
		query += fmt.Sprintf(" AND timeframe = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying symbol history: %w", err)
	}
	defer rows.Close()

	return scanScreeningResults(rows)
}

// CleanupScreeningResults deletes snapshots older than cutoff.
func (r *Repository) CleanupScreeningResults(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM screening_results WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error cleaning up screening results: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SaveAlert records a sent notification.
func (r *Repository) SaveAlert(ctx context.Context, alert *Alert) error {
	channels, err := json.Marshal(alert.Channels)
	if err != nil {
		return fmt.Errorf("error encoding channels: %w", err)
	}
	err = r.db.Pool.QueryRow(ctx, `
		INSERT INTO alerts (symbol, timeframe, total_score, message, channels)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		alert.Symbol, alert.Timeframe, alert.TotalScore, alert.Message, channels).
		Scan(&alert.ID, &alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("error saving alert: %w", err)
	}
	return nil
}

// ListAlerts returns the most recent alerts.
func (r *Repository) ListAlerts(ctx context.Context, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, symbol, timeframe, total_score, message, channels, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var channels []byte
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Timeframe, &a.TotalScore,
			&a.Message, &channels, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning alert: %w", err)
		}
		if err := json.Unmarshal(channels, &a.Channels); err != nil {
			return nil, fmt.Errorf("error decoding channels: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func scanScreeningResults(rows pgx.Rows) ([]ScreeningResult, error) {
	var results []ScreeningResult
	for rows.Next() {
		var res ScreeningResult
		var signals, indicators []byte
		if err := rows.Scan(&res.ID, &res.PassID, &res.Symbol, &res.Timeframe, &res.Price,
			&res.PriceChange5m, &res.PriceChange15m, &res.PriceChange1h, &res.PriceChange4h, &res.PriceChange24h,
			&res.QuoteVolume24h, &res.BetaScore, &res.VolumeScore, &res.TechnicalScore, &res.TotalScore, &res.RSI,
			&res.VolumeSurge, &res.MACDGolden, &res.AboveAllEMA, &res.PriceAnomaly,
			&signals, &indicators, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning screening result: %w", err)
		}
		if err := json.Unmarshal(signals, &res.Signals); err != nil {
			return nil, fmt.Errorf("error decoding signals: %w", err)
		}
		res.Indicators = json.RawMessage(indicators)
		results = append(results, res)
	}
	return results, rows.Err()
}
