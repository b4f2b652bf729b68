// Package screener runs scoring passes over the altcoin universe: a cheap
// ticker prefilter, then a worker pool that fetches candles, computes
// indicators and composes beta, volume and technical scores into a ranked,
// deduplicated snapshot.
package screener

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"altcoin-screener/config"
	"altcoin-screener/internal/binance"
	"altcoin-screener/internal/database"
	"altcoin-screener/internal/indicator"
	"altcoin-screener/internal/marketdata"
	"altcoin-screener/internal/tsdb"
)

// klineLimit is the candle history fetched per symbol; enough for the full
// indicator set plus a 24h beta lookback on 5m frames.
const klineLimit = 500

// persistTimeout bounds the snapshot write at the end of a pass.
const persistTimeout = 10 * time.Second

// persistContext derives a write context that keeps the parent's values but
// not its cancellation, so an expired pass deadline cannot abort the final
// snapshot write.
func persistContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), persistTimeout)
}

type Screener struct {
	client   *binance.Client
	provider *marketdata.Provider
	repo     *database.Repository
	cfg      config.ScreenerConfig
	log      zerolog.Logger
}

func New(client *binance.Client, provider *marketdata.Provider, repo *database.Repository, cfg config.ScreenerConfig, logger zerolog.Logger) *Screener {
	return &Screener{
		client:   client,
		provider: provider,
		repo:     repo,
		cfg:      cfg,
		log:      logger.With().Str("component", "screener").Logger(),
	}
}

// AnomalyThreshold exposes the configured single-candle anomaly ratio for
// callers running ad-hoc analyses.
func (s *Screener) AnomalyThreshold() float64 {
	return s.cfg.AnomalyThreshold
}

// Screen runs one full pass for a timeframe and persists the ranked
// snapshot. Results come back sorted by total score descending.
func (s *Screener) Screen(ctx context.Context, timeframe string) ([]database.ScreeningResult, error) {
	if !tsdb.ValidTimeframe(timeframe) {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}

	passCtx, cancel := context.WithTimeout(ctx, s.cfg.TimeoutDuration())
	defer cancel()

	started := time.Now()
	passID := uuid.NewString()

	symbols, err := s.client.GetAltcoins(passCtx)
	if err != nil {
		return nil, fmt.Errorf("error loading altcoin universe: %w", err)
	}

	tickers, err := s.client.GetTickers(passCtx, symbols)
	if err != nil {
		return nil, fmt.Errorf("error loading tickers: %w", err)
	}

	candidates := s.Prefilter(symbols, tickers, timeframe)
	s.log.Info().Str("timeframe", timeframe).
		Int("universe", len(symbols)).
		Int("candidates", len(candidates)).
		Msg("screening pass started")

	btcCloses, ethCloses, err := s.majorCloses(passCtx, timeframe)
	if err != nil {
		return nil, fmt.Errorf("error loading major candles: %w", err)
	}

	results := s.runPool(passCtx, passID, timeframe, candidates, tickers, btcCloses, ethCloses)

	sort.Slice(results, func(i, j int) bool {
		return results[i].TotalScore > results[j].TotalScore
	})

	// Persist on its own deadline so a pass that burned its whole timeout on
	// fetching does not lose the computed snapshot.
	saveCtx, saveCancel := persistContext(ctx)
	defer saveCancel()
	if err := s.repo.ReplaceScreeningWindow(saveCtx, timeframe,
		time.Duration(s.cfg.DedupWindow)*time.Minute, results); err != nil {
		return nil, fmt.Errorf("error persisting screening pass: %w", err)
	}

	s.log.Info().Str("timeframe", timeframe).
		Int("results", len(results)).
		Dur("elapsed", time.Since(started)).
		Msg("screening pass finished")

	return results, nil
}

// Prefilter drops symbols that fail the cheap ticker checks before any
// candle fetch: 24h quote volume floor and the per-timeframe 24h change
// floor.
func (s *Screener) Prefilter(symbols []string, tickers map[string]binance.Ticker24hr, timeframe string) []string {
	changeFloor := s.changeFloor(timeframe)

	candidates := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		ticker, ok := tickers[symbol]
		if !ok {
			continue
		}
		if ticker.EffectiveQuoteVolume() < s.cfg.MinVolumeUSD {
			continue
		}
		if abs(ticker.PriceChangePercent) < changeFloor {
			continue
		}
		candidates = append(candidates, symbol)
	}
	return candidates
}

func (s *Screener) changeFloor(timeframe string) float64 {
	switch timeframe {
	case "5m":
		return s.cfg.MinPriceChange5m
	case "15m":
		return s.cfg.MinPriceChange15m
	default:
		return 0
	}
}

// runPool fans candidates out over the worker pool and collects results.
func (s *Screener) runPool(ctx context.Context, passID, timeframe string, candidates []string,
	tickers map[string]binance.Ticker24hr, btcCloses, ethCloses []float64) []database.ScreeningResult {

	symbolChan := make(chan string, len(candidates))
	resultChan := make(chan *database.ScreeningResult, len(candidates))

	var wg sync.WaitGroup
	for w := 0; w < s.cfg.WorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symbolChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if res := s.analyzeSymbol(ctx, passID, timeframe, symbol, tickers[symbol], btcCloses, ethCloses); res != nil {
					resultChan <- res
				}
			}
		}()
	}

	for _, symbol := range candidates {
		symbolChan <- symbol
	}
	close(symbolChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var results []database.ScreeningResult
	for res := range resultChan {
		results = append(results, *res)
	}
	return results
}

// analyzeSymbol produces a snapshot row for one symbol, or nil when the
// symbol is rejected (stale data, thin history, or below the score floors).
func (s *Screener) analyzeSymbol(ctx context.Context, passID, timeframe, symbol string,
	ticker binance.Ticker24hr, btcCloses, ethCloses []float64) *database.ScreeningResult {

	klines, err := s.provider.GetCandles(ctx, symbol, timeframe, klineLimit)
	if err != nil {
		if binance.IsTransient(err) {
			s.log.Debug().Err(err).Str("symbol", symbol).Msg("transient fetch error, skipping")
		} else {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("candle fetch failed")
		}
		return nil
	}
	if len(klines) == 0 || s.isStale(klines, timeframe) {
		return nil
	}

	analysis, err := indicator.Analyze(klines, s.cfg.AnomalyThreshold)
	if err != nil {
		return nil
	}

	closes := indicator.Closes(klines)
	lookback := betaLookback(timeframe)
	beta := BetaScore(closes, btcCloses, ethCloses, lookback)
	if beta < s.cfg.BetaThreshold {
		return nil
	}

	quoteVolume := ticker.EffectiveQuoteVolume()
	volScore := VolumeScore(quoteVolume, analysis.VolumeSurge)
	total := TotalScore(beta, volScore, analysis.TechnicalScore)
	if total < MinTotalScore {
		return nil
	}

	res := &database.ScreeningResult{
		PassID:         passID,
		Symbol:         symbol,
		Timeframe:      timeframe,
		Price:          analysis.Close,
		PriceChange24h: ticker.PriceChangePercent,
		QuoteVolume24h: quoteVolume,
		BetaScore:      beta,
		VolumeScore:    volScore,
		TechnicalScore: analysis.TechnicalScore,
		TotalScore:     total,
		RSI:            analysis.RSI14,
		VolumeSurge:    analysis.VolumeSurge,
		MACDGolden:     analysis.MACDGoldenCross,
		AboveAllEMA:    analysis.AboveAllEMA,
		PriceAnomaly:   analysis.PriceAnomaly,
		Signals:        analysis.Signals(),
		Indicators:     marshalAnalysis(analysis),
	}
	res.PriceChange5m, res.PriceChange15m, res.PriceChange1h, res.PriceChange4h =
		multiTimeframeChanges(closes, timeframe)

	return res
}

// isStale rejects symbols whose latest candle is too old to represent the
// current market; delisted or halted pairs keep returning frozen history.
func (s *Screener) isStale(klines []binance.Kline, timeframe string) bool {
	last := time.UnixMilli(klines[len(klines)-1].OpenTime)
	cutoff := time.Hour
	if d := 2 * timeframeDuration(timeframe); d > cutoff {
		cutoff = d
	}
	return time.Since(last) > cutoff
}

// betaLookback is the candle count covering 24 hours at a timeframe.
func betaLookback(timeframe string) int {
	minutes := tsdb.TimeframeMinutes[timeframe]
	if minutes <= 0 {
		return 1
	}
	return 1440 / minutes
}

func timeframeDuration(timeframe string) time.Duration {
	return time.Duration(tsdb.TimeframeMinutes[timeframe]) * time.Minute
}

// multiTimeframeChanges derives short-horizon percent changes from the
// fetched close series. Horizons shorter than one candle of the pass
// timeframe come back as zero.
func multiTimeframeChanges(closes []float64, timeframe string) (c5m, c15m, c1h, c4h float64) {
	minutes := tsdb.TimeframeMinutes[timeframe]
	if minutes <= 0 {
		return
	}
	c5m = changeOverCandles(closes, 5/minutes)
	c15m = changeOverCandles(closes, 15/minutes)
	c1h = changeOverCandles(closes, 60/minutes)
	c4h = changeOverCandles(closes, 240/minutes)
	return
}

func changeOverCandles(closes []float64, count int) float64 {
	n := len(closes)
	if count < 1 || n <= count {
		return 0
	}
	then := closes[n-1-count]
	if then == 0 {
		return 0
	}
	return (closes[n-1]/then - 1) * 100
}

// majorCloses fetches BTC and ETH close series once per pass for the beta
// calculation.
func (s *Screener) majorCloses(ctx context.Context, timeframe string) (btc, eth []float64, err error) {
	btcKlines, err := s.provider.GetCandles(ctx, "BTC/USDT", timeframe, klineLimit)
	if err != nil {
		return nil, nil, err
	}
	ethKlines, err := s.provider.GetCandles(ctx, "ETH/USDT", timeframe, klineLimit)
	if err != nil {
		return nil, nil, err
	}
	return indicator.Closes(btcKlines), indicator.Closes(ethKlines), nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// marshalAnalysis serializes the indicator snapshot for the JSONB column.
func marshalAnalysis(a *indicator.Analysis) json.RawMessage {
	clean := a.Sanitized()
	raw, err := json.Marshal(&clean)
	if err != nil {
		return nil
	}
	return raw
}
