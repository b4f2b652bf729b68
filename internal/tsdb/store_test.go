package tsdb

import (
	"testing"
	"time"
)

func TestValidTimeframe(t *testing.T) {
	for _, tf := range []string{"5m", "15m", "1h", "4h", "1d"} {
		if !ValidTimeframe(tf) {
			t.Errorf("ValidTimeframe(%q) = false, want true", tf)
		}
	}
	for _, tf := range []string{"1m", "30m", "1w", ""} {
		if ValidTimeframe(tf) {
			t.Errorf("ValidTimeframe(%q) = true, want false", tf)
		}
	}
}

func TestTimeframeMinutes(t *testing.T) {
	tests := []struct {
		tf   string
		want int
	}{
		{"5m", 5},
		{"15m", 15},
		{"1h", 60},
		{"4h", 240},
		{"1d", 1440},
	}
	for _, tt := range tests {
		if got := TimeframeMinutes[tt.tf]; got != tt.want {
			t.Errorf("TimeframeMinutes[%q] = %d, want %d", tt.tf, got, tt.want)
		}
	}
}

func TestReverseCandles(t *testing.T) {
	base := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	candles := []Candle{
		{Time: base.Add(10 * time.Minute)},
		{Time: base.Add(5 * time.Minute)},
		{Time: base},
	}

	reverseCandles(candles)
	for i := 1; i < len(candles); i++ {
		if candles[i].Time.Before(candles[i-1].Time) {
			t.Fatalf("candles not ascending after reverse: %v", candles)
		}
	}
}
