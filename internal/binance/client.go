// Package binance is the exchange-facing client: symbol universe, k-lines,
// tickers, market overview and the authenticated account channel. Symbols are
// handled in canonical BASE/QUOTE form everywhere above this package.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// minRequestSpacing paces REST calls so a full screening pass stays inside
// the exchange weight budget.
const minRequestSpacing = 100 * time.Millisecond

const (
	DefaultKlineLimit = 500
	MaxKlineLimit     = 1000
)

type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *marketCache
}

func NewClient(apiKey, secretKey, baseURL string) *Client {
	return &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(minRequestSpacing), 1),
		cache:      newMarketCache(),
	}
}

// HasCredentials reports whether the authenticated channel is usable.
func (c *Client) HasCredentials() bool {
	return c.apiKey != "" && c.secretKey != ""
}

// Kline represents a candlestick.
type Kline struct {
	OpenTime         int64   `json:"openTime"`
	Open             float64 `json:"open"`
	High             float64 `json:"high"`
	Low              float64 `json:"low"`
	Close            float64 `json:"close"`
	Volume           float64 `json:"volume"`
	CloseTime        int64   `json:"closeTime"`
	QuoteAssetVolume float64 `json:"quoteAssetVolume"`
	NumberOfTrades   int     `json:"numberOfTrades"`
}

// Ticker24hr represents 24hr ticker price change statistics.
type Ticker24hr struct {
	Symbol             string  `json:"symbol"`
	PriceChangePercent float64 `json:"priceChangePercent,string"`
	LastPrice          float64 `json:"lastPrice,string"`
	OpenPrice          float64 `json:"openPrice,string"`
	HighPrice          float64 `json:"highPrice,string"`
	LowPrice           float64 `json:"lowPrice,string"`
	Volume             float64 `json:"volume,string"`
	QuoteVolume        float64 `json:"quoteVolume,string"`
	CloseTime          int64   `json:"closeTime"`
	Count              int64   `json:"count"`
}

// EffectiveQuoteVolume returns the 24h quote volume, approximating it from
// the typical price and base volume when the exchange reports zero.
func (t Ticker24hr) EffectiveQuoteVolume() float64 {
	if t.QuoteVolume > 0 {
		return t.QuoteVolume
	}
	typical := (t.OpenPrice + t.HighPrice + t.LowPrice + t.LastPrice) / 4
	return typical * t.Volume
}

// MarketOverview summarizes the two majors the beta score keys off.
type MarketOverview struct {
	BTCPrice     float64   `json:"btc_price"`
	BTCChange24h float64   `json:"btc_change_24h"`
	ETHPrice     float64   `json:"eth_price"`
	ETHChange24h float64   `json:"eth_change_24h"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GetKlines fetches candlestick data for a canonical symbol. since is a unix
// millisecond open-time floor; zero means the most recent window.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, since int64, limit int) ([]Kline, error) {
	if limit <= 0 {
		limit = DefaultKlineLimit
	}
	if limit > MaxKlineLimit {
		limit = MaxKlineLimit
	}

	params := url.Values{}
	params.Set("symbol", RestSymbol(symbol))
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	if since > 0 {
		params.Set("startTime", strconv.FormatInt(since, 10))
	}

	body, err := c.get(ctx, "/api/v3/klines", params)
	if err != nil {
		return nil, fmt.Errorf("error fetching klines for %s: %w", symbol, err)
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("error parsing klines: %w", err)
	}

	klines := make([]Kline, len(rawKlines))
	for i, raw := range rawKlines {
		k, err := parseKlineRow(raw)
		if err != nil {
			return nil, fmt.Errorf("error parsing kline row for %s: %w", symbol, err)
		}
		klines[i] = k
	}

	return klines, nil
}

// parseKlineRow decodes one raw exchange kline array. The timestamp and
// trade-count fields must be JSON numbers; a schema shift is an error, not a
// panic.
func parseKlineRow(raw []interface{}) (Kline, error) {
	if len(raw) < 9 {
		return Kline{}, fmt.Errorf("malformed row: %d fields", len(raw))
	}

	openTime, ok := raw[0].(float64)
	if !ok {
		return Kline{}, fmt.Errorf("unexpected open time type %T", raw[0])
	}
	closeTime, ok := raw[6].(float64)
	if !ok {
		return Kline{}, fmt.Errorf("unexpected close time type %T", raw[6])
	}
	trades, ok := raw[8].(float64)
	if !ok {
		return Kline{}, fmt.Errorf("unexpected trade count type %T", raw[8])
	}

	return Kline{
		OpenTime:         int64(openTime),
		Open:             parseFloat(raw[1]),
		High:             parseFloat(raw[2]),
		Low:              parseFloat(raw[3]),
		Close:            parseFloat(raw[4]),
		Volume:           parseFloat(raw[5]),
		CloseTime:        int64(closeTime),
		QuoteAssetVolume: parseFloat(raw[7]),
		NumberOfTrades:   int(trades),
	}, nil
}

// GetTickers fetches 24hr tickers for the requested canonical symbols. The
// full ticker set is fetched in one call and cached; an empty symbol list
// returns every cached ticker. When a refresh fails, the last snapshot is
// served past its TTL; the error surfaces only when nothing was ever cached.
func (c *Client) GetTickers(ctx context.Context, symbols []string) (map[string]Ticker24hr, error) {
	all, ok := c.cache.tickers()
	if !ok {
		fresh, err := c.fetchTickers(ctx)
		if err != nil {
			stale, hasStale := c.cache.staleTickers()
			if !hasStale {
				return nil, err
			}
			all = stale
		} else {
			all = fresh
			c.cache.setTickers(all)
		}
	}

	if len(symbols) == 0 {
		out := make(map[string]Ticker24hr, len(all))
		for k, v := range all {
			out[k] = v
		}
		return out, nil
	}

	out := make(map[string]Ticker24hr, len(symbols))
	for _, s := range symbols {
		if t, found := all[RestSymbol(s)]; found {
			out[s] = t
		}
	}
	return out, nil
}

func (c *Client) fetchTickers(ctx context.Context) (map[string]Ticker24hr, error) {
	body, err := c.get(ctx, "/api/v3/ticker/24hr", nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching tickers: %w", err)
	}

	var tickers []Ticker24hr
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("error parsing tickers: %w", err)
	}

	all := make(map[string]Ticker24hr, len(tickers))
	for _, t := range tickers {
		all[t.Symbol] = t
	}
	return all, nil
}

// GetCurrentPrice fetches the last trade price for a canonical symbol.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", RestSymbol(symbol))

	body, err := c.get(ctx, "/api/v3/ticker/price", params)
	if err != nil {
		return 0, fmt.Errorf("error fetching price for %s: %w", symbol, err)
	}

	var priceResp struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price,string"`
	}
	if err := json.Unmarshal(body, &priceResp); err != nil {
		return 0, fmt.Errorf("error parsing price: %w", err)
	}

	return priceResp.Price, nil
}

// GetMarketOverview returns BTC/ETH price and 24h change, cached briefly so
// the API surface and every screening pass can share one fetch.
func (c *Client) GetMarketOverview(ctx context.Context) (*MarketOverview, error) {
	if ov, ok := c.cache.overview(); ok {
		return ov, nil
	}

	tickers, err := c.GetTickers(ctx, []string{"BTC/USDT", "ETH/USDT"})
	if err != nil {
		if stale, hasStale := c.cache.staleOverview(); hasStale {
			return stale, nil
		}
		return nil, err
	}

	btc, okBTC := tickers["BTC/USDT"]
	eth, okETH := tickers["ETH/USDT"]
	if !okBTC || !okETH {
		if stale, hasStale := c.cache.staleOverview(); hasStale {
			return stale, nil
		}
		return nil, fmt.Errorf("major tickers missing from exchange response")
	}

	ov := &MarketOverview{
		BTCPrice:     btc.LastPrice,
		BTCChange24h: btc.PriceChangePercent,
		ETHPrice:     eth.LastPrice,
		ETHChange24h: eth.PriceChangePercent,
		UpdatedAt:    time.Now().UTC(),
	}
	c.cache.setOverview(ov)
	return ov, nil
}

// get performs a paced public GET and returns the response body.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp, body)
	}

	return body, nil
}

func parseFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}
