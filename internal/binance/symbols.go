package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Stablecoins never screened as altcoins.
var stablecoinSymbols = map[string]bool{
	"USDT/USDT":  true,
	"USDC/USDT":  true,
	"BUSD/USDT":  true,
	"DAI/USDT":   true,
	"TUSD/USDT":  true,
	"USDP/USDT":  true,
	"FDUSD/USDT": true,
}

// Leveraged-token base suffixes excluded from the universe.
var leveragedSuffixes = []string{"UP", "DOWN", "BEAR", "BULL"}

// SymbolInfo represents basic symbol information from exchangeInfo.
type SymbolInfo struct {
	Symbol               string `json:"symbol"`
	Status               string `json:"status"`
	BaseAsset            string `json:"baseAsset"`
	QuoteAsset           string `json:"quoteAsset"`
	IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
}

// ExchangeInfo represents exchange information response.
type ExchangeInfo struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// RestSymbol converts a canonical BASE/QUOTE symbol to the exchange REST form.
func RestSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// CanonicalSymbol builds the BASE/QUOTE form from exchangeInfo assets.
func CanonicalSymbol(base, quote string) string {
	return base + "/" + quote
}

// IsLeveragedToken reports whether a base asset is a leveraged token
// (e.g. BTCUP, ETHDOWN, XRPBULL).
func IsLeveragedToken(baseAsset string) bool {
	for _, suffix := range leveragedSuffixes {
		if strings.HasSuffix(baseAsset, suffix) && len(baseAsset) > len(suffix) {
			return true
		}
	}
	return false
}

// IsStablecoin reports whether a canonical symbol is a stablecoin pair.
func IsStablecoin(symbol string) bool {
	return stablecoinSymbols[symbol]
}

// GetSpotSymbols returns all canonical USDT spot symbols currently trading,
// with leveraged tokens removed. Results are cached for five minutes; when a
// refresh fails the last list is served past its TTL.
func (c *Client) GetSpotSymbols(ctx context.Context) ([]string, error) {
	if symbols, ok := c.cache.symbols(); ok {
		return symbols, nil
	}

	info, err := c.getExchangeInfo(ctx)
	if err != nil {
		if stale, hasStale := c.cache.staleSymbols(); hasStale {
			return stale, nil
		}
		return nil, err
	}

	symbols := FilterSpotSymbols(info.Symbols)
	c.cache.setSymbols(symbols)
	return symbols, nil
}

// FilterSpotSymbols applies the universe rules to raw exchangeInfo entries.
func FilterSpotSymbols(infos []SymbolInfo) []string {
	symbols := make([]string, 0, len(infos))
	for _, s := range infos {
		if s.QuoteAsset != "USDT" {
			continue
		}
		if s.Status != "TRADING" || !s.IsSpotTradingAllowed {
			continue
		}
		if IsLeveragedToken(s.BaseAsset) {
			continue
		}
		symbols = append(symbols, CanonicalSymbol(s.BaseAsset, s.QuoteAsset))
	}
	sort.Strings(symbols)
	return symbols
}

// GetAltcoins returns the screening universe: spot symbols minus the majors
// and stablecoin pairs.
func (c *Client) GetAltcoins(ctx context.Context) ([]string, error) {
	symbols, err := c.GetSpotSymbols(ctx)
	if err != nil {
		return nil, err
	}

	altcoins := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "BTC/USDT" || s == "ETH/USDT" {
			continue
		}
		if IsStablecoin(s) {
			continue
		}
		altcoins = append(altcoins, s)
	}
	return altcoins, nil
}

func (c *Client) getExchangeInfo(ctx context.Context) (*ExchangeInfo, error) {
	body, err := c.get(ctx, "/api/v3/exchangeInfo", nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching exchange info: %w", err)
	}

	var info ExchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("error parsing exchange info: %w", err)
	}

	return &info, nil
}
