package indicator

import (
	"math"
	"testing"

	"altcoin-screener/internal/binance"
)

func klinesFromCloses(closes ...float64) []binance.Kline {
	klines := make([]binance.Kline, len(closes))
	for i, c := range closes {
		klines[i] = binance.Kline{
			OpenTime: int64(i) * 300_000,
			Open:     c,
			High:     c,
			Low:      c,
			Close:    c,
			Volume:   1,
		}
	}
	return klines
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		period int
		want   float64
	}{
		{"simple average", []float64{1, 2, 3, 4, 5}, 3, 4},
		{"full window", []float64{2, 4, 6}, 3, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SMA(klinesFromCloses(tt.closes...), tt.period)
			if !almostEqual(got, tt.want) {
				t.Errorf("SMA() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := SMA(klinesFromCloses(1, 2), 3); !math.IsNaN(got) {
		t.Errorf("SMA with insufficient candles = %v, want NaN", got)
	}
}

func TestEMASeries(t *testing.T) {
	// period 3 -> alpha 0.5, seeded with the first value.
	got := EMASeries([]float64{1, 2, 3}, 3)
	want := []float64{1, 1.5, 2.25}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("EMASeries[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEMAInsufficient(t *testing.T) {
	if got := EMA(klinesFromCloses(1, 2), 7); !math.IsNaN(got) {
		t.Errorf("EMA with insufficient candles = %v, want NaN", got)
	}
}

func TestMACDCrossAt(t *testing.T) {
	m := &MACD{
		Line:   []float64{-1, -0.5, 0.5},
		Signal: []float64{0, 0, 0},
	}
	if m.CrossAt(1) {
		t.Error("CrossAt(1) = true, line still below signal")
	}
	if !m.CrossAt(2) {
		t.Error("CrossAt(2) = false, want a bullish cross")
	}
	if m.CrossAt(0) {
		t.Error("CrossAt(0) = true, no previous candle to compare")
	}
}

func TestRecentGoldenCross(t *testing.T) {
	recent := &MACD{
		Line:   []float64{-2, -1, -0.5, 0.5, 0.7},
		Signal: []float64{0, 0, 0, 0, 0},
	}
	if !recent.RecentGoldenCross() {
		t.Error("cross one candle back should count as recent")
	}

	stale := &MACD{
		Line:   []float64{-1, 0.5, 0.6, 0.7, 0.8, 0.9},
		Signal: []float64{0, 0, 0, 0, 0, 0},
	}
	if stale.RecentGoldenCross() {
		t.Error("cross four candles back should not count as recent")
	}
}

func TestComputeMACDFlatSeries(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	m := ComputeMACD(closes)
	last := len(closes) - 1
	if !almostEqual(m.Line[last], 0) || !almostEqual(m.Signal[last], 0) {
		t.Errorf("flat series MACD = (%v, %v), want zeros", m.Line[last], m.Signal[last])
	}
}

func TestRSI(t *testing.T) {
	// Equal gain and loss over the window -> RSI 50.
	if got := RSI(klinesFromCloses(10, 11, 10), 2); !almostEqual(got, 50) {
		t.Errorf("balanced RSI = %v, want 50", got)
	}

	// All gains -> zero average loss maps to 100.
	if got := RSI(klinesFromCloses(1, 2, 3, 4), 3); !almostEqual(got, 100) {
		t.Errorf("all-gains RSI = %v, want 100", got)
	}

	if got := RSI(klinesFromCloses(1, 2), 14); !math.IsNaN(got) {
		t.Errorf("RSI with insufficient candles = %v, want NaN", got)
	}
}

func TestBollingerBands(t *testing.T) {
	// Classic population-std example: mean 5, std 2.
	klines := klinesFromCloses(2, 4, 4, 4, 5, 5, 7, 9)
	upper, middle, lower := BollingerBands(klines, 8, 2)
	if !almostEqual(middle, 5) {
		t.Errorf("middle = %v, want 5", middle)
	}
	if !almostEqual(upper, 9) {
		t.Errorf("upper = %v, want 9", upper)
	}
	if !almostEqual(lower, 1) {
		t.Errorf("lower = %v, want 1", lower)
	}
}

func TestATR(t *testing.T) {
	klines := []binance.Kline{
		{Open: 10, High: 10, Low: 10, Close: 10},
		{Open: 10, High: 12, Low: 8, Close: 11},
	}
	// Single true range of 4 with period 1 (alpha 1).
	if got := ATR(klines, 1); !almostEqual(got, 4) {
		t.Errorf("ATR = %v, want 4", got)
	}

	if got := ATR(klines, 14); !math.IsNaN(got) {
		t.Errorf("ATR with insufficient candles = %v, want NaN", got)
	}
}

func TestIsVolumeSurge(t *testing.T) {
	klines := klinesFromCloses(make([]float64, 20)...)
	for i := range klines {
		klines[i].Volume = 1
	}
	if IsVolumeSurge(klines) {
		t.Error("flat volume flagged as a surge")
	}

	klines[len(klines)-1].Volume = 2
	// SMA including the current bar is 1.05; 2 > 1.575.
	if !IsVolumeSurge(klines) {
		t.Error("doubled volume not flagged as a surge")
	}
}

func TestIsPriceAnomaly(t *testing.T) {
	tests := []struct {
		name      string
		closes    []float64
		threshold float64
		want      bool
	}{
		{"big move up", []float64{100, 111}, 0.1, true},
		{"big move down", []float64{100, 89}, 0.1, true},
		{"normal move", []float64{100, 105}, 0.1, false},
		{"single candle", []float64{100}, 0.1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPriceAnomaly(klinesFromCloses(tt.closes...), tt.threshold); got != tt.want {
				t.Errorf("IsPriceAnomaly() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnalyzeInsufficientData(t *testing.T) {
	_, err := Analyze(klinesFromCloses(1, 2, 3), 0.1)
	if err != ErrInsufficientData {
		t.Errorf("Analyze() error = %v, want ErrInsufficientData", err)
	}
}

func TestScoreSignals(t *testing.T) {
	tests := []struct {
		name string
		a    Analysis
		want float64
	}{
		{"none", Analysis{}, 0},
		{"two signals", Analysis{AboveSMA20: true, RSIHealthy: true}, 40},
		{"all five", Analysis{
			AboveSMA20: true, AboveAllEMA: true, MACDGoldenCross: true,
			RSIHealthy: true, VolumeSurge: true,
		}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreSignals(&tt.a); got != tt.want {
				t.Errorf("scoreSignals() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSignalsNames(t *testing.T) {
	a := Analysis{AboveSMA20: true, MACDGoldenCross: true, VolumeSurge: true}
	got := a.Signals()
	want := []string{"above_sma20", "macd_golden_cross", "volume_surge"}
	if len(got) != len(want) {
		t.Fatalf("Signals() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Signals()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSanitizedZeroesNonFinite(t *testing.T) {
	a := Analysis{
		Close:  1.5,
		SMA200: math.NaN(),
		RSI14:  math.Inf(1),
		MACD:   -0.02,
	}

	clean := a.Sanitized()
	if clean.SMA200 != 0 || clean.RSI14 != 0 {
		t.Errorf("Sanitized() kept non-finite values: %+v", clean)
	}
	if clean.Close != 1.5 || clean.MACD != -0.02 {
		t.Errorf("Sanitized() altered finite values: %+v", clean)
	}
	if math.IsNaN(a.SMA200) == false {
		t.Error("Sanitized() should not mutate the receiver")
	}
}
