package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func failingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// expireTickers backdates the snapshot so the TTL check misses but the
// stale copy survives.
func expireTickers(c *Client) {
	c.cache.mu.Lock()
	c.cache.tickerFetchedAt = time.Now().Add(-2 * tickerCacheTTL)
	c.cache.mu.Unlock()
}

func TestGetTickersServesStaleOnRefreshFailure(t *testing.T) {
	srv := failingServer(t)
	client := NewClient("", "", srv.URL)

	client.cache.setTickers(map[string]Ticker24hr{
		"SOLUSDT": {Symbol: "SOLUSDT", LastPrice: 150},
	})
	expireTickers(client)

	tickers, err := client.GetTickers(context.Background(), []string{"SOL/USDT"})
	if err != nil {
		t.Fatalf("GetTickers() error = %v, want stale fallback", err)
	}
	if tickers["SOL/USDT"].LastPrice != 150 {
		t.Errorf("stale ticker price = %v, want 150", tickers["SOL/USDT"].LastPrice)
	}
}

func TestGetTickersFailsWithoutAnySnapshot(t *testing.T) {
	srv := failingServer(t)
	client := NewClient("", "", srv.URL)

	if _, err := client.GetTickers(context.Background(), nil); err == nil {
		t.Error("first fetch failure with an empty cache should error")
	}
}

func TestGetSpotSymbolsServesStaleOnRefreshFailure(t *testing.T) {
	srv := failingServer(t)
	client := NewClient("", "", srv.URL)

	client.cache.setSymbols([]string{"ADA/USDT", "SOL/USDT"})
	client.cache.mu.Lock()
	client.cache.symbolFetchedAt = time.Now().Add(-2 * symbolCacheTTL)
	client.cache.mu.Unlock()

	symbols, err := client.GetSpotSymbols(context.Background())
	if err != nil {
		t.Fatalf("GetSpotSymbols() error = %v, want stale fallback", err)
	}
	if len(symbols) != 2 || symbols[0] != "ADA/USDT" {
		t.Errorf("stale symbols = %v, want the cached list", symbols)
	}
}

func TestGetMarketOverviewServesStaleOnRefreshFailure(t *testing.T) {
	srv := failingServer(t)
	client := NewClient("", "", srv.URL)

	client.cache.setOverview(&MarketOverview{BTCPrice: 60000, ETHPrice: 3000})
	client.cache.mu.Lock()
	client.cache.overviewFetchedAt = time.Now().Add(-2 * overviewCacheTTL)
	client.cache.mu.Unlock()

	ov, err := client.GetMarketOverview(context.Background())
	if err != nil {
		t.Fatalf("GetMarketOverview() error = %v, want stale fallback", err)
	}
	if ov.BTCPrice != 60000 {
		t.Errorf("stale overview BTC price = %v, want 60000", ov.BTCPrice)
	}
}

func TestParseKlineRow(t *testing.T) {
	row := []interface{}{
		float64(1700000000000), "2.5", "2.6", "2.4", "2.55", "1000",
		float64(1700000299999), "2550", float64(42),
	}

	k, err := parseKlineRow(row)
	if err != nil {
		t.Fatalf("parseKlineRow() error = %v", err)
	}
	if k.OpenTime != 1700000000000 || k.Close != 2.55 || k.NumberOfTrades != 42 {
		t.Errorf("parsed kline = %+v", k)
	}
}

func TestParseKlineRowMalformed(t *testing.T) {
	tests := []struct {
		name string
		row  []interface{}
	}{
		{"short row", []interface{}{float64(1), "2", "3"}},
		{"string open time", []interface{}{"soon", "2.5", "2.6", "2.4", "2.55", "1000", float64(2), "2550", float64(42)}},
		{"nil trade count", []interface{}{float64(1), "2.5", "2.6", "2.4", "2.55", "1000", float64(2), "2550", nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseKlineRow(tt.row); err == nil {
				t.Error("malformed row should not parse")
			}
		})
	}
}
