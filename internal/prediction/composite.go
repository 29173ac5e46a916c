package prediction

import (
	"fmt"
	"math"
	"strings"
	"time"

	"ai-trading-assistant-go/internal/indicators"
	"ai-trading-assistant-go/internal/models"
)

// CompositeIndicators is the EMA-based indicator set behind a CompositeSignal.
type CompositeIndicators struct {
	RSI          float64 `json:"rsi"`
	MACD         float64 `json:"macd"`
	MACDSignal   float64 `json:"macd_signal"`
	EMA9         float64 `json:"ema9"`
	EMA20        float64 `json:"ema20"`
	EMA50        float64 `json:"ema50"`
	EMA200       float64 `json:"ema200"`
	BBUpper      float64 `json:"bb_upper"`
	BBMiddle     float64 `json:"bb_middle"`
	BBLower      float64 `json:"bb_lower"`
	VolumeDelta  float64 `json:"volume_delta"`
	CurrentPrice float64 `json:"current_price"`
}

// CompositeBreakdown lists the per-category scores of a CompositeSignal.
type CompositeBreakdown struct {
	Momentum int `json:"momentum"`
	Trend    int `json:"trend"`
	Volume   int `json:"volume"`
}

// Chart is the recent close series plus the projected target one day after the last candle.
type Chart struct {
	Timestamps []time.Time `json:"timestamps"`
	Prices     []float64   `json:"prices"`
	EMA9       []float64   `json:"ema9"`
	EMA20      []float64   `json:"ema20"`
	EMA50      []float64   `json:"ema50"`
	TargetTime time.Time   `json:"target_time"`
	Target     float64     `json:"target"`
}

// CompositeSignal is the EMA-driven signal with a price target and horizon.
type CompositeSignal struct {
	Mode              string              `json:"mode"`
	Signal            string              `json:"signal"`
	CurrentPrice      float64             `json:"current_price"`
	TargetPrice       float64             `json:"target_price"`
	ExpectedChangePct float64             `json:"expected_change_pct"`
	Confidence        float64             `json:"confidence"`
	Horizon           string              `json:"horizon"`
	TotalScore        int                 `json:"total_score"`
	ScoreBreakdown    CompositeBreakdown  `json:"score_breakdown"`
	SignalReasons     map[string]string   `json:"signal_reasons"`
	Summary           string              `json:"summary"`
	Indicators        CompositeIndicators `json:"indicators"`
	Chart             Chart               `json:"chart"`
}

const chartPoints = 50

// Composite computes the EMA composite score of a candle history.
func Composite(candles []models.PriceHistory) (*CompositeSignal, error) {
	if len(candles) < MinAnalysisCandles {
		return nil, fmt.Errorf("%w: need %d candles, got %d", indicators.ErrNotEnoughData, MinAnalysisCandles, len(candles))
	}
	s := newSeries(candles)

	ind, err := compositeIndicators(s)
	if err != nil {
		return nil, err
	}

	reasons := make(map[string]string, 4)
	momentum := 0
	switch {
	case ind.RSI > 70:
		momentum--
		reasons["rsi"] = "Overbought (RSI > 70)"
	case ind.RSI < 30:
		momentum++
		reasons["rsi"] = "Oversold (RSI < 30)"
	default:
		reasons["rsi"] = fmt.Sprintf("Neutral (RSI = %.1f)", ind.RSI)
	}
	if ind.MACD > ind.MACDSignal {
		momentum++
		reasons["macd"] = "Bullish (MACD > Signal)"
	} else {
		momentum--
		reasons["macd"] = "Bearish (MACD < Signal)"
	}

	trend := 0
	switch {
	case ind.EMA9 > ind.EMA20 && ind.EMA20 > ind.EMA50:
		trend += 2
		reasons["trend"] = "Strong Uptrend (EMA 9>20>50)"
	case ind.EMA9 > ind.EMA20:
		trend++
		reasons["trend"] = "Bullish (EMA 9>20)"
	case ind.EMA9 < ind.EMA20 && ind.EMA20 < ind.EMA50:
		trend -= 2
		reasons["trend"] = "Strong Downtrend (EMA 9<20<50)"
	case ind.EMA9 < ind.EMA20:
		trend--
		reasons["trend"] = "Bearish (EMA 9<20)"
	default:
		reasons["trend"] = "Sideways (EMAs mixed)"
	}
	if ind.EMA50 > ind.EMA200 {
		trend++
		reasons["long_term"] = "Bull Market (EMA50>200)"
	} else {
		trend--
		reasons["long_term"] = "Bear Market (EMA50<200)"
	}

	volume := -1
	reasons["volume"] = "Decreasing volume"
	if ind.VolumeDelta > 0 {
		volume = 1
		reasons["volume"] = "Increasing volume"
	}

	total := momentum + trend + volume
	signal := SignalHold
	switch {
	case total >= 3:
		signal = SignalBuy
	case total <= -3:
		signal = SignalSell
	}

	targetPct := 0.0
	switch signal {
	case SignalBuy:
		targetPct = math.Min(3+float64(abs(total)), 7)
	case SignalSell:
		targetPct = math.Max(-(3 + float64(abs(total))), -7)
	}
	price := ind.CurrentPrice
	target := price * (1 + targetPct/100)
	confidence := math.Min(float64(abs(total))/3*100, 99)

	horizon := "next 1-2 days"
	switch {
	case abs(total) >= 3:
		horizon = "next 4-12 hours"
	case abs(total) >= 2:
		horizon = "next 12-24 hours"
	}

	out := &CompositeSignal{
		Mode:              "indicator",
		Signal:            signal,
		CurrentPrice:      price,
		TargetPrice:       round(target, 2),
		ExpectedChangePct: round(targetPct, 2),
		Confidence:        round(confidence, 1),
		Horizon:           horizon,
		TotalScore:        total,
		ScoreBreakdown:    CompositeBreakdown{Momentum: momentum, Trend: trend, Volume: volume},
		SignalReasons:     reasons,
		Indicators:        ind,
	}
	out.Summary = compositeSummary(out)
	out.Chart, err = buildChart(s, out.TargetPrice)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func compositeIndicators(s series) (CompositeIndicators, error) {
	rsi, err := indicators.RSI(s.closes, 14)
	if err != nil {
		return CompositeIndicators{}, err
	}
	macd, err := indicators.MACD(s.closes, 12, 26, 9)
	if err != nil {
		return CompositeIndicators{}, err
	}
	emas := make(map[int]float64, 4)
	for _, span := range []int{9, 20, 50, 200} {
		v, err := indicators.EMA(s.closes, span)
		if err != nil {
			return CompositeIndicators{}, err
		}
		emas[span] = v
	}
	if len(s.closes) < 200 {
		emas[200] = emas[50]
	}
	bb, err := indicators.BollingerEMA(s.closes, 20, 2)
	if err != nil {
		return CompositeIndicators{}, err
	}
	return CompositeIndicators{
		RSI:          rsi,
		MACD:         macd.MACD,
		MACDSignal:   macd.Signal,
		EMA9:         emas[9],
		EMA20:        emas[20],
		EMA50:        emas[50],
		EMA200:       emas[200],
		BBUpper:      bb.Upper,
		BBMiddle:     bb.Middle,
		BBLower:      bb.Lower,
		VolumeDelta:  indicators.VolumeDelta(s.volumes),
		CurrentPrice: s.last(),
	}, nil
}

func compositeSummary(c *CompositeSignal) string {
	var parts []string
	rsi := c.Indicators.RSI
	switch {
	case rsi > 70:
		parts = append(parts, fmt.Sprintf("Market is overbought (RSI %.1f > 70)", rsi))
	case rsi < 30:
		parts = append(parts, fmt.Sprintf("Market is oversold (RSI %.1f < 30)", rsi))
	default:
		parts = append(parts, fmt.Sprintf("Market momentum is neutral (RSI %.1f)", rsi))
	}
	parts = append(parts, fmt.Sprintf("Composite score = %+d", c.TotalScore))

	switch c.Signal {
	case SignalBuy:
		parts = append(parts, fmt.Sprintf("Suggestion: BUY in %s towards $%.2f (+%.1f%%)", c.Horizon, c.TargetPrice, c.ExpectedChangePct))
	case SignalSell:
		parts = append(parts, fmt.Sprintf("Suggestion: SELL in %s towards $%.2f (%.1f%%)", c.Horizon, c.TargetPrice, c.ExpectedChangePct))
	default:
		parts = append(parts, "Suggestion: HOLD - wait for clearer signals")
	}
	parts = append(parts, fmt.Sprintf("Confidence ~%.0f%%", c.Confidence))
	return strings.Join(parts, ". ") + "."
}

func buildChart(s series, target float64) (Chart, error) {
	start := len(s.closes) - chartPoints
	if start < 0 {
		start = 0
	}
	closes := s.closes[start:]

	chart := Chart{
		Timestamps: s.times[start:],
		Prices:     closes,
		TargetTime: s.times[len(s.times)-1].Add(24 * time.Hour),
		Target:     target,
	}
	var err error
	if chart.EMA9, err = indicators.EMASeries(closes, 9); err != nil {
		return Chart{}, err
	}
	if chart.EMA20, err = indicators.EMASeries(closes, 20); err != nil {
		return Chart{}, err
	}
	if chart.EMA50, err = indicators.EMASeries(closes, 50); err != nil {
		return Chart{}, err
	}
	return chart, nil
}
