package tsdb

import (
	"context"
	"fmt"
	"time"
)

// minBaseCandles is the floor below which a rollup is considered unreliable
// and the caller should go to the exchange instead.
const minBaseCandles = 50

// AggregateCandles rolls up stored 5m candles into a larger timeframe using
// time_bucket: open is the first candle of the bucket, close the last, high
// and low the extremes, volumes and trade counts are summed. Returns up to
// limit buckets ascending by time.
func (s *Store) AggregateCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	minutes, ok := TimeframeMinutes[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	if timeframe == BaseTimeframe {
		return s.GetCandles(ctx, symbol, BaseTimeframe, time.Time{}, time.Time{}, limit)
	}
	if limit <= 0 {
		limit = 500
	}

	interval := fmt.Sprintf("%d minutes", minutes)
	rows, err := s.Pool.Query(ctx, `
		SELECT bucket, $4::text, open, high, low, close, volume, quote_volume, trades FROM (
			SELECT
				time_bucket($1::interval, time) AS bucket,
				first(open, time) AS open,
				max(high) AS high,
				min(low) AS low,
				last(close, time) AS close,
				sum(volume) AS volume,
				sum(quote_volume) AS quote_volume,
				sum(trades)::bigint AS trades
			FROM klines
			WHERE symbol = $2 AND timeframe = $3
			GROUP BY bucket
			ORDER BY bucket DESC
			LIMIT $5
		) buckets
		ORDER BY bucket ASC`,
		interval, symbol, BaseTimeframe, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("error aggregating candles: %w", err)
	}
	defer rows.Close()

	var candles []Candle
	for rows.Next() {
		c := Candle{Symbol: symbol}
		if err := rows.Scan(&c.Time, &c.Timeframe, &c.Open, &c.High, &c.Low,
			&c.Close, &c.Volume, &c.QuoteVolume, &c.Trades); err != nil {
			return nil, fmt.Errorf("error scanning rollup: %w", err)
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// HasSufficientHistory reports whether enough 5m candles exist to serve a
// rollup for the given window.
func (s *Store) HasSufficientHistory(ctx context.Context, symbol string) (bool, error) {
	count, err := s.CountCandles(ctx, symbol, BaseTimeframe)
	if err != nil {
		return false, err
	}
	return count >= minBaseCandles, nil
}
