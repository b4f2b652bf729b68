package screener

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"altcoin-screener/config"
	"altcoin-screener/internal/binance"
)

func TestBetaScoreClamp(t *testing.T) {
	flat := []float64{1, 1}

	// Symbol doubles while the majors stand still: a 100% ratio gain,
	// scaled far past the cap.
	if got := BetaScore([]float64{1, 2}, flat, flat, 1); got != 100 {
		t.Errorf("outperforming beta = %v, want 100", got)
	}

	// Symbol halves: clamped at zero.
	if got := BetaScore([]float64{2, 1}, flat, flat, 1); got != 0 {
		t.Errorf("underperforming beta = %v, want 0", got)
	}

	// Symbol tracks the majors exactly: no relative move.
	if got := BetaScore([]float64{1, 2}, []float64{1, 2}, []float64{1, 2}, 1); got != 0 {
		t.Errorf("tracking beta = %v, want 0", got)
	}
}

func TestBetaScoreModerate(t *testing.T) {
	// +2% vs BTC, +2% vs ETH -> (2+2)/2*10 = 20.
	alt := []float64{100, 102}
	flat := []float64{1, 1}
	got := BetaScore(alt, flat, flat, 1)
	if math.Abs(got-20) > 1e-9 {
		t.Errorf("beta = %v, want 20", got)
	}
}

func TestRatioChangeShrinksLookback(t *testing.T) {
	// Lookback larger than either series falls back to the full span.
	got := ratioChange([]float64{100, 110}, []float64{1, 1}, 500)
	if math.Abs(got-10) > 1e-9 {
		t.Errorf("ratioChange = %v, want 10", got)
	}
}

func TestRatioChangeDegenerate(t *testing.T) {
	if got := ratioChange(nil, []float64{1, 2}, 1); got != 0 {
		t.Errorf("empty closes = %v, want 0", got)
	}
	if got := ratioChange([]float64{1, 2}, []float64{0, 0}, 1); got != 0 {
		t.Errorf("zero major = %v, want 0", got)
	}
}

func TestVolumeScore(t *testing.T) {
	tests := []struct {
		name   string
		volume float64
		surge  bool
		want   float64
	}{
		{"top tier", 12_000_000, false, 100},
		{"top tier surge capped", 12_000_000, true, 100},
		{"5M tier", 6_000_000, false, 80},
		{"5M tier with surge", 6_000_000, true, 100},
		{"2M tier", 3_000_000, false, 60},
		{"1M tier", 1_500_000, false, 40},
		{"1M tier with surge", 1_500_000, true, 60},
		{"below all tiers", 500_000, false, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VolumeScore(tt.volume, tt.surge); got != tt.want {
				t.Errorf("VolumeScore(%v, %v) = %v, want %v", tt.volume, tt.surge, got, tt.want)
			}
		})
	}
}

func TestTotalScore(t *testing.T) {
	got := TotalScore(50, 40, 80)
	want := 0.3*50 + 0.2*40 + 0.5*80
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("TotalScore = %v, want %v", got, want)
	}
}

func TestPrefilter(t *testing.T) {
	cfg := config.ScreenerConfig{
		MinVolumeUSD:      1_000_000,
		MinPriceChange5m:  2.0,
		MinPriceChange15m: 3.0,
	}
	s := New(nil, nil, nil, cfg, zerolog.Nop())

	symbols := []string{"AAA/USDT", "BBB/USDT", "CCC/USDT", "DDD/USDT"}
	tickers := map[string]binance.Ticker24hr{
		"AAA/USDT": {QuoteVolume: 2_000_000, PriceChangePercent: 5},  // passes
		"BBB/USDT": {QuoteVolume: 500_000, PriceChangePercent: 8},    // too thin
		"CCC/USDT": {QuoteVolume: 3_000_000, PriceChangePercent: 1},  // too quiet
		"DDD/USDT": {QuoteVolume: 3_000_000, PriceChangePercent: -4}, // absolute change counts
	}

	got := s.Prefilter(symbols, tickers, "5m")
	want := []string{"AAA/USDT", "DDD/USDT"}
	if len(got) != len(want) {
		t.Fatalf("Prefilter = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Prefilter[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPrefilterTimeframeFloors(t *testing.T) {
	cfg := config.ScreenerConfig{
		MinVolumeUSD:      1_000_000,
		MinPriceChange5m:  2.0,
		MinPriceChange15m: 3.0,
	}
	s := New(nil, nil, nil, cfg, zerolog.Nop())

	symbols := []string{"AAA/USDT"}
	tickers := map[string]binance.Ticker24hr{
		"AAA/USDT": {QuoteVolume: 2_000_000, PriceChangePercent: 2.5},
	}

	if got := s.Prefilter(symbols, tickers, "5m"); len(got) != 1 {
		t.Errorf("2.5%% change should pass the 5m floor, got %v", got)
	}
	if got := s.Prefilter(symbols, tickers, "15m"); len(got) != 0 {
		t.Errorf("2.5%% change should fail the 15m floor, got %v", got)
	}
	// 1h has no change floor.
	if got := s.Prefilter(symbols, tickers, "1h"); len(got) != 1 {
		t.Errorf("1h pass has no change floor, got %v", got)
	}
}

func TestChangeOverCandles(t *testing.T) {
	closes := []float64{100, 105, 110}
	if got := changeOverCandles(closes, 1); math.Abs(got-(110.0/105-1)*100) > 1e-9 {
		t.Errorf("one-candle change = %v", got)
	}
	if got := changeOverCandles(closes, 2); math.Abs(got-10) > 1e-9 {
		t.Errorf("two-candle change = %v, want 10", got)
	}
	if got := changeOverCandles(closes, 5); got != 0 {
		t.Errorf("oversized horizon = %v, want 0", got)
	}
}

func TestBetaLookback(t *testing.T) {
	tests := []struct {
		timeframe string
		want      int
	}{
		{"5m", 288},
		{"15m", 96},
		{"1h", 24},
		{"4h", 6},
		{"1d", 1},
	}
	for _, tt := range tests {
		if got := betaLookback(tt.timeframe); got != tt.want {
			t.Errorf("betaLookback(%q) = %d, want %d", tt.timeframe, got, tt.want)
		}
	}
}
