package prediction

import (
	"fmt"
	"math"

	"ai-trading-assistant-go/internal/indicators"
	"ai-trading-assistant-go/internal/models"
)

// FeatureNames is the column order of every feature row.
var FeatureNames = []string{
	"return_1h",
	"return_3h",
	"return_6h",
	"return_12h",
	"return_24h",
	"volatility_24h",
	"rsi",
	"macd",
	"ma_ratio",
	"volume_change",
	"price_position",
}

// featureWarmup is the index of the first candle with every feature defined (MA50).
const featureWarmup = 49

// FeatureMatrix builds one feature row per candle from featureWarmup on.
// Row k describes candle featureWarmup+k.
func FeatureMatrix(candles []models.PriceHistory) ([][]float64, error) {
	if len(candles) <= featureWarmup {
		return nil, fmt.Errorf("%w: need %d candles, got %d", indicators.ErrNotEnoughData, featureWarmup+1, len(candles))
	}
	s := newSeries(candles)

	ema12, err := indicators.EMASeries(s.closes, 12)
	if err != nil {
		return nil, err
	}
	ema26, err := indicators.EMASeries(s.closes, 26)
	if err != nil {
		return nil, err
	}
	ma20, err := indicators.SMASeries(s.closes, 20)
	if err != nil {
		return nil, err
	}
	ma50, err := indicators.SMASeries(s.closes, 50)
	if err != nil {
		return nil, err
	}

	returns := make([]float64, len(s.closes))
	for i := 1; i < len(s.closes); i++ {
		returns[i] = pctChange(s.closes[i-1], s.closes[i])
	}

	rows := make([][]float64, 0, len(candles)-featureWarmup)
	for i := featureWarmup; i < len(candles); i++ {
		rsi, err := indicators.RSI(s.closes[:i+1], 14)
		if err != nil {
			return nil, err
		}
		volatility, err := indicators.StdDev(returns[i-23:i+1], 24)
		if err != nil {
			return nil, err
		}

		high, low := s.highs[i], s.lows[i]
		for j := i - 23; j <= i; j++ {
			high = math.Max(high, s.highs[j])
			low = math.Min(low, s.lows[j])
		}
		position := 0.5
		if high > low {
			position = (s.closes[i] - low) / (high - low)
		}

		maRatio := 1.0
		if ma50[i] != 0 {
			maRatio = ma20[i] / ma50[i]
		}

		rows = append(rows, []float64{
			pctChange(s.closes[i-1], s.closes[i]),
			pctChange(s.closes[i-3], s.closes[i]),
			pctChange(s.closes[i-6], s.closes[i]),
			pctChange(s.closes[i-12], s.closes[i]),
			pctChange(s.closes[i-24], s.closes[i]),
			volatility,
			rsi,
			ema12[i] - ema26[i],
			maRatio,
			pctChange(s.volumes[i-1], s.volumes[i]),
			position,
		})
	}
	return rows, nil
}

// Targets labels row k with 1 when the next close is above the current close.
// The last candle has no label, so the result is one shorter than the feature rows.
func Targets(candles []models.PriceHistory) []float64 {
	if len(candles) <= featureWarmup+1 {
		return nil
	}
	out := make([]float64, 0, len(candles)-featureWarmup-1)
	for i := featureWarmup; i < len(candles)-1; i++ {
		if candles[i+1].Close > candles[i].Close {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	}
	return out
}

func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return to/from - 1
}
