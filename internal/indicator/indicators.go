// Package indicator computes technical indicators over k-line slices. All
// functions are pure; values that cannot be computed from the available
// candles come back as NaN so that boolean signal checks fail closed.
package indicator

import (
	"math"

	"altcoin-screener/internal/binance"
)

// Standard periods.
const (
	MACDFastPeriod   = 12
	MACDSlowPeriod   = 26
	MACDSignalPeriod = 9
	RSIPeriod        = 14
	BollingerPeriod  = 20
	BollingerMult    = 2.0
	ATRPeriod        = 14
	VolumePeriod     = 20

	// GoldenCrossLookback is how many trailing candles count as "recent"
	// for a MACD cross.
	GoldenCrossLookback = 3
)

// EMAPeriods are the spans checked by the above-all-EMAs signal.
var EMAPeriods = []int{7, 14, 30, 52}

// Closes extracts the close series.
func Closes(klines []binance.Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Close
	}
	return out
}

// SMA returns the simple moving average of the last period closes, or NaN
// when there are not enough candles.
func SMA(klines []binance.Kline, period int) float64 {
	if period <= 0 || len(klines) < period {
		return math.NaN()
	}
	sum := 0.0
	for _, k := range klines[len(klines)-period:] {
		sum += k.Close
	}
	return sum / float64(period)
}

// EMASeries computes an exponential moving average over values with
// alpha = 2/(period+1), seeded with the first value.
func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// EMA returns the latest exponential moving average of closes, or NaN when
// there are fewer candles than the period.
func EMA(klines []binance.Kline, period int) float64 {
	if period <= 0 || len(klines) < period {
		return math.NaN()
	}
	series := EMASeries(Closes(klines), period)
	return series[len(series)-1]
}

// MACD holds the full MACD line, signal line and histogram series.
type MACD struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// ComputeMACD computes MACD(12,26,9): fast EMA minus slow EMA, with the
// signal line as an EMA of the MACD line itself.
func ComputeMACD(closes []float64) *MACD {
	if len(closes) == 0 {
		return &MACD{}
	}
	fast := EMASeries(closes, MACDFastPeriod)
	slow := EMASeries(closes, MACDSlowPeriod)

	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fast[i] - slow[i]
	}

	signal := EMASeries(line, MACDSignalPeriod)
	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - signal[i]
	}

	return &MACD{Line: line, Signal: signal, Histogram: hist}
}

// CrossAt reports a bullish cross at index i: the MACD line is above the
// signal line at i after being at or below it at i-1.
func (m *MACD) CrossAt(i int) bool {
	if i < 1 || i >= len(m.Line) {
		return false
	}
	return m.Line[i] > m.Signal[i] && m.Line[i-1] <= m.Signal[i-1]
}

// RecentGoldenCross reports a bullish cross anywhere in the trailing
// lookback window.
func (m *MACD) RecentGoldenCross() bool {
	n := len(m.Line)
	for i := n - GoldenCrossLookback; i < n; i++ {
		if m.CrossAt(i) {
			return true
		}
	}
	return false
}

// RSI returns the relative strength index over the trailing period using
// rolling-mean gains and losses. Zero average loss maps to 100. NaN when
// there are fewer than period+1 candles.
func RSI(klines []binance.Kline, period int) float64 {
	if period <= 0 || len(klines) < period+1 {
		return math.NaN()
	}

	gains, losses := 0.0, 0.0
	start := len(klines) - period
	for i := start; i < len(klines); i++ {
		change := klines[i].Close - klines[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// BollingerBands returns the upper, middle and lower bands over the trailing
// period using the population standard deviation. NaN bands when there are
// not enough candles.
func BollingerBands(klines []binance.Kline, period int, mult float64) (upper, middle, lower float64) {
	if period <= 0 || len(klines) < period {
		nan := math.NaN()
		return nan, nan, nan
	}

	window := klines[len(klines)-period:]
	sum := 0.0
	for _, k := range window {
		sum += k.Close
	}
	middle = sum / float64(period)

	variance := 0.0
	for _, k := range window {
		d := k.Close - middle
		variance += d * d
	}
	std := math.Sqrt(variance / float64(period))

	return middle + mult*std, middle, middle - mult*std
}

// ATR returns the average true range as an EMA (alpha = 2/(period+1)) of the
// true range series. NaN when there are fewer than period+1 candles.
func ATR(klines []binance.Kline, period int) float64 {
	if period <= 0 || len(klines) < period+1 {
		return math.NaN()
	}

	tr := make([]float64, 0, len(klines)-1)
	for i := 1; i < len(klines); i++ {
		high, low := klines[i].High, klines[i].Low
		prevClose := klines[i-1].Close
		r := high - low
		if d := math.Abs(high - prevClose); d > r {
			r = d
		}
		if d := math.Abs(low - prevClose); d > r {
			r = d
		}
		tr = append(tr, r)
	}

	series := EMASeries(tr, period)
	return series[len(series)-1]
}

// VolumeSMA returns the simple moving average of volume over the trailing
// period, including the current candle. NaN when there are not enough
// candles.
func VolumeSMA(klines []binance.Kline, period int) float64 {
	if period <= 0 || len(klines) < period {
		return math.NaN()
	}
	sum := 0.0
	for _, k := range klines[len(klines)-period:] {
		sum += k.Volume
	}
	return sum / float64(period)
}

// IsVolumeSurge reports whether the latest volume exceeds 1.5x its 20-candle
// average.
func IsVolumeSurge(klines []binance.Kline) bool {
	if len(klines) == 0 {
		return false
	}
	sma := VolumeSMA(klines, VolumePeriod)
	return klines[len(klines)-1].Volume > 1.5*sma
}

// IsPriceAnomaly reports whether the latest candle moved at least threshold
// (as a ratio) against the previous close.
func IsPriceAnomaly(klines []binance.Kline, threshold float64) bool {
	n := len(klines)
	if n < 2 || threshold <= 0 {
		return false
	}
	prev := klines[n-2].Close
	if prev == 0 {
		return false
	}
	return math.Abs(klines[n-1].Close/prev-1) >= threshold
}
