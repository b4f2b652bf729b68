// Package tsdb is the candle store: a TimescaleDB hypertable of 5m base
// k-lines with on-read rollup to larger timeframes and age-based retention.
package tsdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// BaseTimeframe is the only timeframe the collector writes. Larger frames
// are rolled up on read.
const BaseTimeframe = "5m"

// TimeframeMinutes maps supported timeframes to their length in minutes.
var TimeframeMinutes = map[string]int{
	"5m":  5,
	"15m": 15,
	"1h":  60,
	"4h":  240,
	"1d":  1440,
}

// ErrInsufficientHistory is returned when the store lacks enough base
// candles to serve a rollup; callers fall through to the exchange.
var ErrInsufficientHistory = errors.New("insufficient stored history")

// ValidTimeframe reports whether tf is a supported timeframe.
func ValidTimeframe(tf string) bool {
	_, ok := TimeframeMinutes[tf]
	return ok
}

// Candle is one stored k-line row.
type Candle struct {
	Time        time.Time `json:"time"`
	Symbol      string    `json:"symbol"`
	Timeframe   string    `json:"timeframe"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	QuoteVolume float64   `json:"quote_volume"`
	Trades      int64     `json:"trades"`
}

// Store wraps the candle hypertable pool.
type Store struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewStore(ctx context.Context, url string, maxConns int, logger zerolog.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("error parsing timescale config: %w", err)
	}

	poolConfig.MaxConns = int32(maxConns)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("error creating timescale pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error connecting to timescale: %w", err)
	}

	return &Store{Pool: pool, log: logger.With().Str("component", "tsdb").Logger()}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

// Init creates the klines table and, when the timescaledb extension is
// available, converts it to a hypertable. A plain Postgres server still
// works for everything except time_bucket rollups.
func (s *Store) Init(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS klines (
			time TIMESTAMPTZ NOT NULL,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			open DOUBLE PRECISION NOT NULL,
			high DOUBLE PRECISION NOT NULL,
			low DOUBLE PRECISION NOT NULL,
			close DOUBLE PRECISION NOT NULL,
			volume DOUBLE PRECISION NOT NULL DEFAULT 0,
			quote_volume DOUBLE PRECISION NOT NULL DEFAULT 0,
			trades BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (time, symbol, timeframe)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_klines_symbol_tf_time
			ON klines (symbol, timeframe, time DESC)`,
	}

	for _, migration := range migrations {
		if _, err := s.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("error running candle store migration: %w", err)
		}
	}

	if _, err := s.Pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS timescaledb`); err != nil {
		s.log.Warn().Err(err).Msg("timescaledb extension unavailable, continuing without hypertable")
		return nil
	}
	if _, err := s.Pool.Exec(ctx,
		`SELECT create_hypertable('klines', 'time', if_not_exists => TRUE, migrate_data => TRUE)`); err != nil {
		s.log.Warn().Err(err).Msg("create_hypertable failed, continuing with plain table")
	}

	return nil
}

// SaveCandles upserts a batch of candles. The (time, symbol, timeframe)
// primary key makes re-collection idempotent.
func (s *Store) SaveCandles(ctx context.Context, candles []Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(`
			INSERT INTO klines (time, symbol, timeframe, open, high, low, close, volume, quote_volume, trades)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (time, symbol, timeframe) DO UPDATE SET
				open = EXCLUDED.open,
				high = EXCLUDED.high,
				low = EXCLUDED.low,
				close = EXCLUDED.close,
				volume = EXCLUDED.volume,
				quote_volume = EXCLUDED.quote_volume,
				trades = EXCLUDED.trades`,
			c.Time, c.Symbol, c.Timeframe, c.Open, c.High, c.Low, c.Close,
			c.Volume, c.QuoteVolume, c.Trades)
	}

	results := s.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range candles {
		if _, err := results.Exec(); err != nil {
			return 0, fmt.Errorf("error upserting candles: %w", err)
		}
	}

	return len(candles), nil
}

// GetCandles returns up to limit stored candles for a symbol and timeframe,
// ascending by time. Zero start/end leave that bound open.
func (s *Store) GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time, limit int) ([]Candle, error) {
	if !ValidTimeframe(timeframe) {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	if limit <= 0 {
		limit = 500
	}

	query := `
		SELECT time, symbol, timeframe, open, high, low, close, volume, quote_volume, trades
		FROM klines
		WHERE symbol = $1 AND timeframe = $2`
	args := []interface{}{symbol, timeframe}

	if !start.IsZero() {
		args = append(args, start)
		query += fmt.Sprintf(" AND time >= $%d", len(args))
	}
	if !end.IsZero() {
		args = append(args, end)
		query += fmt.Sprintf(" AND time <= $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY time DESC LIMIT $%d", len(args))

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying candles: %w", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil {
		return nil, err
	}

	reverseCandles(candles)
	return candles, nil
}

// LatestCandleTime returns the newest stored open time for a symbol and
// timeframe, or ok=false when nothing is stored.
func (s *Store) LatestCandleTime(ctx context.Context, symbol, timeframe string) (time.Time, bool, error) {
	var latest *time.Time
	err := s.Pool.QueryRow(ctx,
		`SELECT max(time) FROM klines WHERE symbol = $1 AND timeframe = $2`,
		symbol, timeframe).Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("error querying latest candle time: %w", err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

// CountCandles returns the number of stored candles for a symbol/timeframe.
func (s *Store) CountCandles(ctx context.Context, symbol, timeframe string) (int64, error) {
	var count int64
	err := s.Pool.QueryRow(ctx,
		`SELECT count(*) FROM klines WHERE symbol = $1 AND timeframe = $2`,
		symbol, timeframe).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting candles: %w", err)
	}
	return count, nil
}

// SymbolsWithData lists symbols that have stored candles for a timeframe.
func (s *Store) SymbolsWithData(ctx context.Context, timeframe string) ([]string, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT DISTINCT symbol FROM klines WHERE timeframe = $1 ORDER BY symbol`,
		timeframe)
	if err != nil {
		return nil, fmt.Errorf("error querying symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// DeleteOlderThan removes candles with time before cutoff and returns the
// number of rows removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM klines WHERE time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error deleting old candles: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats summarizes store contents for the health surface.
type Stats struct {
	TotalCandles int64      `json:"total_candles"`
	SymbolCount  int64      `json:"symbol_count"`
	OldestCandle *time.Time `json:"oldest_candle,omitempty"`
	NewestCandle *time.Time `json:"newest_candle,omitempty"`
}

func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := s.Pool.QueryRow(ctx, `
		SELECT count(*), count(DISTINCT symbol), min(time), max(time)
		FROM klines`).Scan(&stats.TotalCandles, &stats.SymbolCount, &stats.OldestCandle, &stats.NewestCandle)
	if err != nil {
		return nil, fmt.Errorf("error querying store stats: %w", err)
	}
	return &stats, nil
}

func scanCandles(rows pgx.Rows) ([]Candle, error) {
	var candles []Candle
	for rows.Next() {
		var c Candle
		if err := rows.Scan(&c.Time, &c.Symbol, &c.Timeframe, &c.Open, &c.High,
			&c.Low, &c.Close, &c.Volume, &c.QuoteVolume, &c.Trades); err != nil {
			return nil, fmt.Errorf("error scanning candle: %w", err)
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

func reverseCandles(candles []Candle) {
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
}
