package indicator

import (
	"errors"
	"math"

	"altcoin-screener/internal/binance"
)

// MinCandles is the history needed for the full indicator set; SMA200 is the
// longest window.
const MinCandles = 200

// ErrInsufficientData is returned when a symbol has too little history for a
// complete analysis.
var ErrInsufficientData = errors.New("insufficient candles for analysis")

// Analysis is the full indicator snapshot for one symbol at one timeframe.
type Analysis struct {
	Close float64 `json:"close"`

	SMA20  float64 `json:"sma_20"`
	SMA50  float64 `json:"sma_50"`
	SMA200 float64 `json:"sma_200"`

	EMA7  float64 `json:"ema_7"`
	EMA14 float64 `json:"ema_14"`
	EMA30 float64 `json:"ema_30"`
	EMA52 float64 `json:"ema_52"`

	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`

	RSI14 float64 `json:"rsi_14"`

	BBUpper  float64 `json:"bb_upper"`
	BBMiddle float64 `json:"bb_middle"`
	BBLower  float64 `json:"bb_lower"`

	ATR14       float64 `json:"atr_14"`
	VolumeSMA20 float64 `json:"volume_sma_20"`

	AboveSMA20      bool `json:"above_sma_20"`
	AboveAllEMA     bool `json:"above_all_ema"`
	MACDGoldenCross bool `json:"macd_golden_cross"`
	RSIHealthy      bool `json:"rsi_healthy"`
	VolumeSurge     bool `json:"volume_surge"`
	PriceAnomaly    bool `json:"price_anomaly"`

	TechnicalScore float64 `json:"technical_score"`
}

// Analyze computes the indicator snapshot. It needs MinCandles candles of
// history; anomalyThreshold is the single-candle move ratio flagged as an
// anomaly.
func Analyze(klines []binance.Kline, anomalyThreshold float64) (*Analysis, error) {
	if len(klines) < MinCandles {
		return nil, ErrInsufficientData
	}

	closes := Closes(klines)
	last := closes[len(closes)-1]
	macd := ComputeMACD(closes)
	n := len(closes)

	a := &Analysis{
		Close:  last,
		SMA20:  SMA(klines, 20),
		SMA50:  SMA(klines, 50),
		SMA200: SMA(klines, 200),

		EMA7:  EMA(klines, 7),
		EMA14: EMA(klines, 14),
		EMA30: EMA(klines, 30),
		EMA52: EMA(klines, 52),

		MACD:          macd.Line[n-1],
		MACDSignal:    macd.Signal[n-1],
		MACDHistogram: macd.Histogram[n-1],

		RSI14: RSI(klines, RSIPeriod),

		ATR14:       ATR(klines, ATRPeriod),
		VolumeSMA20: VolumeSMA(klines, VolumePeriod),
	}
	a.BBUpper, a.BBMiddle, a.BBLower = BollingerBands(klines, BollingerPeriod, BollingerMult)

	a.AboveSMA20 = last > a.SMA20
	a.AboveAllEMA = last > a.EMA7 && last > a.EMA14 && last > a.EMA30 && last > a.EMA52
	a.MACDGoldenCross = macd.RecentGoldenCross()
	a.RSIHealthy = a.RSI14 > 40 && a.RSI14 < 70
	a.VolumeSurge = IsVolumeSurge(klines)
	a.PriceAnomaly = IsPriceAnomaly(klines, anomalyThreshold)

	a.TechnicalScore = scoreSignals(a)
	return a, nil
}

// scoreSignals maps the five bullish signals onto a 0-100 scale, 20 points
// each.
func scoreSignals(a *Analysis) float64 {
	score := 0.0
	for _, signal := range []bool{
		a.AboveSMA20,
		a.AboveAllEMA,
		a.MACDGoldenCross,
		a.RSIHealthy,
		a.VolumeSurge,
	} {
		if signal {
			score += 20
		}
	}
	return score
}

// Sanitized returns a copy with NaN and Inf sentinels zeroed. Indicators with
// short warmup windows produce them; JSON cannot carry them.
func (a *Analysis) Sanitized() Analysis {
	clean := *a
	for _, f := range []*float64{
		&clean.SMA20, &clean.SMA50, &clean.SMA200,
		&clean.EMA7, &clean.EMA14, &clean.EMA30, &clean.EMA52,
		&clean.MACD, &clean.MACDSignal, &clean.MACDHistogram,
		&clean.RSI14, &clean.BBUpper, &clean.BBMiddle, &clean.BBLower,
		&clean.ATR14, &clean.VolumeSMA20,
	} {
		if math.IsNaN(*f) || math.IsInf(*f, 0) {
			*f = 0
		}
	}
	return clean
}

// Signals lists the bullish signal names currently active, for snapshot
// persistence and notifications.
func (a *Analysis) Signals() []string {
	var signals []string
	if a.AboveSMA20 {
		signals = append(signals, "above_sma20")
	}
	if a.AboveAllEMA {
		signals = append(signals, "above_all_ema")
	}
	if a.MACDGoldenCross {
		signals = append(signals, "macd_golden_cross")
	}
	if a.RSIHealthy {
		signals = append(signals, "rsi_healthy")
	}
	if a.VolumeSurge {
		signals = append(signals, "volume_surge")
	}
	return signals
}
