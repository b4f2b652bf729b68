// Package collector keeps the candle store current: it walks the altcoin
// universe in batches, fetching 5m k-lines from the last stored open time
// forward and upserting them.
package collector

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"altcoin-screener/config"
	"altcoin-screener/internal/binance"
	"altcoin-screener/internal/events"
	"altcoin-screener/internal/marketdata"
	"altcoin-screener/internal/tsdb"
)

type Collector struct {
	client *binance.Client
	store  *tsdb.Store
	bus    *events.Bus
	cfg    config.CollectorConfig
	log    zerolog.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

func New(client *binance.Client, store *tsdb.Store, bus *events.Bus, cfg config.CollectorConfig, logger zerolog.Logger) *Collector {
	return &Collector{
		client:   client,
		store:    store,
		bus:      bus,
		cfg:      cfg,
		log:      logger.With().Str("component", "collector").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start launches the collection loop.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(ctx)
	c.log.Info().Int("batch_size", c.cfg.BatchSize).Msg("collector started")
}

// Stop signals the loop and waits for the current unit of work to finish.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	close(c.stopChan)
	c.wg.Wait()
	c.log.Info().Msg("collector stopped")
}

func (c *Collector) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		c.runCycle(ctx)

		select {
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(c.cfg.CycleDelay) * time.Second):
		}
	}
}

// majorSymbols are always collected even though the screening universe
// excludes them: the beta score and the rollup path need their 5m candles
// in the store.
var majorSymbols = []string{"BTC/USDT", "ETH/USDT"}

// collectionUniverse prepends the majors to the altcoin universe.
func collectionUniverse(altcoins []string) []string {
	out := make([]string, 0, len(majorSymbols)+len(altcoins))
	out = append(out, majorSymbols...)
	return append(out, altcoins...)
}

// runCycle collects the majors and every altcoin once, in batches with
// pacing delays so the screener's own exchange traffic is never starved.
func (c *Collector) runCycle(ctx context.Context) {
	altcoins, err := c.client.GetAltcoins(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("universe load failed, skipping cycle")
		return
	}
	symbols := collectionUniverse(altcoins)

	collected, failed := 0, 0
	for start := 0; start < len(symbols); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(symbols) {
			end = len(symbols)
		}

		for _, symbol := range symbols[start:end] {
			if c.stopped(ctx) {
				return
			}

			n, err := c.collectSymbol(ctx, symbol)
			if err != nil {
				failed++
				if binance.IsTransient(err) {
					c.log.Warn().Err(err).Str("symbol", symbol).Msg("transient exchange error, backing off")
					if c.sleep(ctx, 60*time.Second) {
						return
					}
					continue
				}
				c.log.Warn().Err(err).Str("symbol", symbol).Msg("collection failed")
				continue
			}
			collected += n

			if c.sleep(ctx, time.Duration(c.cfg.SymbolDelay)*time.Millisecond) {
				return
			}
		}

		if end < len(symbols) {
			if c.sleep(ctx, time.Duration(c.cfg.BatchDelay)*time.Second) {
				return
			}
		}
	}

	c.log.Info().Int("symbols", len(symbols)).Int("candles", collected).Int("failed", failed).Msg("collection cycle finished")
	c.bus.Publish(events.Event{
		Type: events.EventCollectorStatus,
		Data: map[string]interface{}{
			"symbols": len(symbols),
			"candles": collected,
			"failed":  failed,
		},
	})
}

// collectSymbol fetches 5m candles from just after the newest stored open
// time, or a cold-start backfill window, and upserts them.
func (c *Collector) collectSymbol(ctx context.Context, symbol string) (int, error) {
	var since int64
	latest, ok, err := c.store.LatestCandleTime(ctx, symbol, tsdb.BaseTimeframe)
	if err != nil {
		return 0, err
	}
	if ok {
		since = latest.Add(time.Duration(tsdb.TimeframeMinutes[tsdb.BaseTimeframe]) * time.Minute).UnixMilli()
	} else {
		since = time.Now().Add(-time.Duration(c.cfg.Backfill) * time.Hour).UnixMilli()
	}

	klines, err := c.client.GetKlines(ctx, symbol, tsdb.BaseTimeframe, since, binance.DefaultKlineLimit)
	if err != nil {
		return 0, err
	}
	if len(klines) == 0 {
		return 0, nil
	}

	return c.store.SaveCandles(ctx, marketdata.ToCandles(symbol, tsdb.BaseTimeframe, klines))
}

func (c *Collector) stopped(ctx context.Context) bool {
	select {
	case <-c.stopChan:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// sleep waits for d, returning true when the collector should stop instead.
func (c *Collector) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-c.stopChan:
		return true
	case <-ctx.Done():
		return true
	case <-time.After(d):
		return false
	}
}
