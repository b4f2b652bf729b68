package binance

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache TTLs. The symbol universe changes rarely; tickers back the screener
// prefilter so they stay fresher; the overview backs the beta score and the
// API surface.
const (
	symbolCacheTTL   = 300 * time.Second
	tickerCacheTTL   = 60 * time.Second
	overviewCacheTTL = 30 * time.Second
)

// marketCache holds short-lived copies of exchange responses so a screening
// pass over hundreds of symbols does not repeat identical calls. Entries are
// kept past their TTL so a failed refresh can fall back to the last snapshot.
type marketCache struct {
	mu sync.RWMutex

	symbolList      []string
	symbolFetchedAt time.Time

	tickerMap       map[string]Ticker24hr
	tickerFetchedAt time.Time

	marketOverview    *MarketOverview
	overviewFetchedAt time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

func newMarketCache() *marketCache {
	return &marketCache{}
}

func (mc *marketCache) symbols() ([]string, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if mc.symbolList == nil || time.Since(mc.symbolFetchedAt) > symbolCacheTTL {
		mc.misses.Add(1)
		return nil, false
	}
	mc.hits.Add(1)
	out := make([]string, len(mc.symbolList))
	copy(out, mc.symbolList)
	return out, true
}

// staleSymbols returns the last symbol list regardless of age. Used as a
// fallback when a refresh fails.
func (mc *marketCache) staleSymbols() ([]string, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if mc.symbolList == nil {
		return nil, false
	}
	out := make([]string, len(mc.symbolList))
	copy(out, mc.symbolList)
	return out, true
}

func (mc *marketCache) setSymbols(symbols []string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.symbolList = symbols
	mc.symbolFetchedAt = time.Now()
}

func (mc *marketCache) tickers() (map[string]Ticker24hr, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if mc.tickerMap == nil || time.Since(mc.tickerFetchedAt) > tickerCacheTTL {
		mc.misses.Add(1)
		return nil, false
	}
	mc.hits.Add(1)
	return mc.tickerMap, true
}

// staleTickers returns the last ticker snapshot regardless of age.
func (mc *marketCache) staleTickers() (map[string]Ticker24hr, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if mc.tickerMap == nil {
		return nil, false
	}
	return mc.tickerMap, true
}

func (mc *marketCache) setTickers(tickers map[string]Ticker24hr) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.tickerMap = tickers
	mc.tickerFetchedAt = time.Now()
}

func (mc *marketCache) overview() (*MarketOverview, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if mc.marketOverview == nil || time.Since(mc.overviewFetchedAt) > overviewCacheTTL {
		mc.misses.Add(1)
		return nil, false
	}
	mc.hits.Add(1)
	return mc.marketOverview, true
}

// staleOverview returns the last overview regardless of age.
func (mc *marketCache) staleOverview() (*MarketOverview, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if mc.marketOverview == nil {
		return nil, false
	}
	return mc.marketOverview, true
}

func (mc *marketCache) setOverview(ov *MarketOverview) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.marketOverview = ov
	mc.overviewFetchedAt = time.Now()
}

// CacheStats reports hit/miss counters for diagnostics.
func (c *Client) CacheStats() (hits, misses int64) {
	return c.cache.hits.Load(), c.cache.misses.Load()
}
