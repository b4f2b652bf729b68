// Package marketdata serves candles from the store when it can and from the
// exchange when it must.
package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"altcoin-screener/internal/binance"
	"altcoin-screener/internal/tsdb"
)

// Provider is the smart candle path: 5m reads go straight to the exchange
// for freshness, larger timeframes are rolled up from stored 5m history when
// enough of it exists, and anything the store cannot serve falls through to
// the exchange so a screening pass never stalls on missing history.
type Provider struct {
	client *binance.Client
	store  *tsdb.Store
	log    zerolog.Logger
}

func NewProvider(client *binance.Client, store *tsdb.Store, logger zerolog.Logger) *Provider {
	return &Provider{
		client: client,
		store:  store,
		log:    logger.With().Str("component", "marketdata").Logger(),
	}
}

// GetCandles returns up to limit candles for a symbol and timeframe,
// ascending by open time.
func (p *Provider) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]binance.Kline, error) {
	if timeframe == tsdb.BaseTimeframe || p.store == nil {
		return p.client.GetKlines(ctx, symbol, timeframe, 0, limit)
	}

	ok, err := p.store.HasSufficientHistory(ctx, symbol)
	if err != nil {
		p.log.Warn().Err(err).Str("symbol", symbol).Msg("history check failed, using exchange")
		return p.client.GetKlines(ctx, symbol, timeframe, 0, limit)
	}
	if !ok {
		return p.client.GetKlines(ctx, symbol, timeframe, 0, limit)
	}

	candles, err := p.store.AggregateCandles(ctx, symbol, timeframe, limit)
	if err != nil || len(candles) == 0 {
		if err != nil {
			p.log.Warn().Err(err).Str("symbol", symbol).Msg("rollup failed, using exchange")
		}
		return p.client.GetKlines(ctx, symbol, timeframe, 0, limit)
	}

	return toKlines(candles), nil
}

func toKlines(candles []tsdb.Candle) []binance.Kline {
	klines := make([]binance.Kline, len(candles))
	for i, c := range candles {
		klines[i] = binance.Kline{
			OpenTime:         c.Time.UnixMilli(),
			Open:             c.Open,
			High:             c.High,
			Low:              c.Low,
			Close:            c.Close,
			Volume:           c.Volume,
			QuoteAssetVolume: c.QuoteVolume,
			NumberOfTrades:   int(c.Trades),
		}
	}
	return klines
}

// ToCandles converts exchange klines into store rows for persistence.
func ToCandles(symbol, timeframe string, klines []binance.Kline) []tsdb.Candle {
	candles := make([]tsdb.Candle, len(klines))
	for i, k := range klines {
		candles[i] = tsdb.Candle{
			Time:        time.UnixMilli(k.OpenTime).UTC(),
			Symbol:      symbol,
			Timeframe:   timeframe,
			Open:        k.Open,
			High:        k.High,
			Low:         k.Low,
			Close:       k.Close,
			Volume:      k.Volume,
			QuoteVolume: k.QuoteAssetVolume,
			Trades:      int64(k.NumberOfTrades),
		}
	}
	return candles
}
