package binance

import "testing"

func TestRestSymbol(t *testing.T) {
	if got := RestSymbol("SOL/USDT"); got != "SOLUSDT" {
		t.Errorf("RestSymbol = %q, want SOLUSDT", got)
	}
}

func TestCanonicalSymbol(t *testing.T) {
	if got := CanonicalSymbol("SOL", "USDT"); got != "SOL/USDT" {
		t.Errorf("CanonicalSymbol = %q, want SOL/USDT", got)
	}
}

func TestIsLeveragedToken(t *testing.T) {
	tests := []struct {
		base string
		want bool
	}{
		{"BTCUP", true},
		{"ETHDOWN", true},
		{"XRPBULL", true},
		{"ADABEAR", true},
		{"SOL", false},
		{"UP", false}, // a bare suffix is not a leveraged token
	}
	for _, tt := range tests {
		if got := IsLeveragedToken(tt.base); got != tt.want {
			t.Errorf("IsLeveragedToken(%q) = %v, want %v", tt.base, got, tt.want)
		}
	}
}

func TestIsStablecoin(t *testing.T) {
	if !IsStablecoin("USDC/USDT") {
		t.Error("USDC/USDT should be a stablecoin pair")
	}
	if IsStablecoin("SOL/USDT") {
		t.Error("SOL/USDT is not a stablecoin pair")
	}
}

func TestFilterSpotSymbols(t *testing.T) {
	infos := []SymbolInfo{
		{BaseAsset: "SOL", QuoteAsset: "USDT", Status: "TRADING", IsSpotTradingAllowed: true},
		{BaseAsset: "ADA", QuoteAsset: "USDT", Status: "TRADING", IsSpotTradingAllowed: true},
		{BaseAsset: "SOL", QuoteAsset: "BTC", Status: "TRADING", IsSpotTradingAllowed: true},   // wrong quote
		{BaseAsset: "LUNA", QuoteAsset: "USDT", Status: "BREAK", IsSpotTradingAllowed: true},   // halted
		{BaseAsset: "DOT", QuoteAsset: "USDT", Status: "TRADING", IsSpotTradingAllowed: false}, // margin only
		{BaseAsset: "BTCUP", QuoteAsset: "USDT", Status: "TRADING", IsSpotTradingAllowed: true},
	}

	got := FilterSpotSymbols(infos)
	want := []string{"ADA/USDT", "SOL/USDT"} // sorted
	if len(got) != len(want) {
		t.Fatalf("FilterSpotSymbols = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FilterSpotSymbols[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEffectiveQuoteVolume(t *testing.T) {
	reported := Ticker24hr{QuoteVolume: 5_000_000, Volume: 1000}
	if got := reported.EffectiveQuoteVolume(); got != 5_000_000 {
		t.Errorf("reported quote volume = %v, want 5000000", got)
	}

	// Zero quote volume falls back to typical price times base volume.
	approx := Ticker24hr{
		OpenPrice: 10, HighPrice: 12, LowPrice: 8, LastPrice: 10,
		Volume: 1000,
	}
	if got := approx.EffectiveQuoteVolume(); got != 10_000 {
		t.Errorf("approximated quote volume = %v, want 10000", got)
	}
}
