package screener

// Score weights: total = 0.3*beta + 0.2*volume + 0.5*technical.
const (
	WeightBeta      = 0.3
	WeightVolume    = 0.2
	WeightTechnical = 0.5
)

// MinTotalScore is the early-reject floor on the composed total; the beta
// floor is configurable (ScreenerConfig.BetaThreshold).
const MinTotalScore = 40.0

// Volume tier cutoffs in 24h quote volume (USD).
const (
	volumeTier100 = 10_000_000
	volumeTier80  = 5_000_000
	volumeTier60  = 2_000_000
	volumeTier40  = 1_000_000
)

// surgeBonus is added to the volume score when the latest bar shows a
// volume surge.
const surgeBonus = 20.0

// BetaScore measures outperformance against the majors: the percentage
// change of the symbol's price ratio to BTC and to ETH over the lookback,
// averaged, scaled by 10 and clamped to [0,100]. This is relative-strength
// "beta", not the statistical coefficient.
func BetaScore(closes, btcCloses, ethCloses []float64, lookback int) float64 {
	deltaBTC := ratioChange(closes, btcCloses, lookback)
	deltaETH := ratioChange(closes, ethCloses, lookback)
	return clamp((deltaBTC+deltaETH)/2*10, 0, 100)
}

// ratioChange is the percent change of closes[i]/major[i] between now and
// lookback candles ago. Series are tail-aligned; the lookback shrinks to fit
// the shorter series. Degenerate inputs come back as zero.
func ratioChange(closes, major []float64, lookback int) float64 {
	n, m := len(closes), len(major)
	if n < 2 || m < 2 {
		return 0
	}
	if max := n - 1; lookback > max {
		lookback = max
	}
	if max := m - 1; lookback > max {
		lookback = max
	}
	if lookback < 1 {
		return 0
	}

	majNow := major[m-1]
	majThen := major[m-1-lookback]
	altThen := closes[n-1-lookback]
	if majNow == 0 || majThen == 0 || altThen == 0 {
		return 0
	}

	ratioNow := closes[n-1] / majNow
	ratioThen := altThen / majThen
	if ratioThen == 0 {
		return 0
	}
	return (ratioNow/ratioThen - 1) * 100
}

// VolumeScore maps 24h quote volume onto the liquidity tiers, with a surge
// bonus capped at 100.
func VolumeScore(quoteVolume float64, surge bool) float64 {
	var score float64
	switch {
	case quoteVolume >= volumeTier100:
		score = 100
	case quoteVolume >= volumeTier80:
		score = 80
	case quoteVolume >= volumeTier60:
		score = 60
	case quoteVolume >= volumeTier40:
		score = 40
	default:
		score = 20
	}
	if surge {
		score += surgeBonus
	}
	return clamp(score, 0, 100)
}

// TotalScore composes the weighted total.
func TotalScore(beta, volume, technical float64) float64 {
	return WeightBeta*beta + WeightVolume*volume + WeightTechnical*technical
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
