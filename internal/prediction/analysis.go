package prediction

import (
	"fmt"
	"math"
	"strings"
	"time"

	"ai-trading-assistant-go/internal/indicators"
	"ai-trading-assistant-go/internal/models"
)

// MinAnalysisCandles is the shortest history Analyze accepts.
const MinAnalysisCandles = 50

// MovingAverages holds the simple averages used for trend scoring.
// MA200 is nil when fewer than 200 candles are available.
type MovingAverages struct {
	MA20  float64  `json:"ma20"`
	MA50  float64  `json:"ma50"`
	MA200 *float64 `json:"ma200"`
}

// Snapshot is the raw indicator state behind an Analysis.
type Snapshot struct {
	RSI          float64                  `json:"rsi"`
	MACD         indicators.MACDResult    `json:"macd"`
	BB           indicators.Bands         `json:"bb"`
	MA           MovingAverages           `json:"ma"`
	Volume       indicators.VolumeProfile `json:"volume"`
	ATR          float64                  `json:"atr"`
	CurrentPrice float64                  `json:"current_price"`
}

// ScoreBreakdown lists the per-category scores of an Analysis.
type ScoreBreakdown struct {
	Momentum   int `json:"momentum"`
	Trend      int `json:"trend"`
	Volatility int `json:"volatility"`
	Volume     int `json:"volume"`
	Total      int `json:"total"`
}

// Analysis is the indicator-based trading signal for one symbol.
type Analysis struct {
	Mode           string            `json:"mode"`
	Signal         string            `json:"signal"`
	Direction      string            `json:"direction"`
	Confidence     float64           `json:"confidence"`
	CurrentPrice   float64           `json:"current_price"`
	TargetPrice    float64           `json:"target_price"`
	PctChange      float64           `json:"pct_change"`
	Summary        string            `json:"summary"`
	Reasons        map[string]string `json:"reasons"`
	ScoreBreakdown ScoreBreakdown    `json:"score_breakdown"`
	Indicators     Snapshot          `json:"indicators"`
	Timestamp      time.Time         `json:"timestamp"`
}

// maxAnalysisScore is the largest absolute total the four categories can reach.
const maxAnalysisScore = 8

// Analyze scores momentum, trend, volatility and volume and maps the total to a signal.
func Analyze(candles []models.PriceHistory) (*Analysis, error) {
	if len(candles) < MinAnalysisCandles {
		return nil, fmt.Errorf("%w: need %d candles, got %d", indicators.ErrNotEnoughData, MinAnalysisCandles, len(candles))
	}
	s := newSeries(candles)

	snap, err := snapshot(s)
	if err != nil {
		return nil, err
	}

	momentum, momentumReasons := scoreMomentum(snap)
	trend, trendReasons := scoreTrend(snap)
	volatility := scoreVolatility(snap)
	volume := scoreVolume(snap)
	total := momentum + trend + volatility + volume

	a := &Analysis{
		Mode:         "indicator",
		Signal:       SignalHold,
		Direction:    "sideways",
		CurrentPrice: round(snap.CurrentPrice, 2),
		TargetPrice:  round(snap.CurrentPrice, 2),
		ScoreBreakdown: ScoreBreakdown{
			Momentum:   momentum,
			Trend:      trend,
			Volatility: volatility,
			Volume:     volume,
			Total:      total,
		},
		Indicators: snap,
		Timestamp:  time.Now().UTC(),
	}
	switch {
	case total >= 3:
		a.Signal, a.Direction = SignalBuy, "up"
	case total <= -3:
		a.Signal, a.Direction = SignalSell, "down"
	}

	confidence := math.Min(float64(abs(total))/maxAnalysisScore*100, 95)
	target := snap.CurrentPrice
	switch a.Signal {
	case SignalBuy:
		target = snap.CurrentPrice + 1.5*snap.ATR
	case SignalSell:
		target = snap.CurrentPrice - 1.5*snap.ATR
	}
	pct := 0.0
	if snap.CurrentPrice > 0 {
		pct = (target - snap.CurrentPrice) / snap.CurrentPrice * 100
	}

	a.Confidence = round(confidence, 1)
	a.TargetPrice = round(target, 2)
	a.PctChange = round(pct, 2)
	a.Summary = analysisSummary(a.Signal, confidence, snap, target, pct, trendReasons)
	a.Reasons = map[string]string{
		"momentum": strings.Join(momentumReasons, "; "),
		"trend":    strings.Join(trendReasons, "; "),
	}
	return a, nil
}

func snapshot(s series) (Snapshot, error) {
	rsi, err := indicators.RSI(s.closes, 14)
	if err != nil {
		return Snapshot{}, err
	}
	macd, err := indicators.MACD(s.closes, 12, 26, 9)
	if err != nil {
		return Snapshot{}, err
	}
	bb, err := indicators.Bollinger(s.closes, 20, 2)
	if err != nil {
		return Snapshot{}, err
	}
	ma20, err := indicators.SMA(s.closes, 20)
	if err != nil {
		return Snapshot{}, err
	}
	ma50, err := indicators.SMA(s.closes, 50)
	if err != nil {
		return Snapshot{}, err
	}
	ma := MovingAverages{MA20: ma20, MA50: ma50}
	if ma200, err := indicators.SMA(s.closes, 200); err == nil {
		ma.MA200 = &ma200
	}
	atr, err := indicators.ATR(s.highs, s.lows, s.closes, 14)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		RSI:          rsi,
		MACD:         macd,
		BB:           bb,
		MA:           ma,
		Volume:       indicators.Volume(s.volumes, 20),
		ATR:          atr,
		CurrentPrice: s.last(),
	}, nil
}

func scoreMomentum(snap Snapshot) (int, []string) {
	score := 0
	var reasons []string
	switch rsi := snap.RSI; {
	case rsi > 70:
		score -= 2
		reasons = append(reasons, fmt.Sprintf("RSI overbought (%.1f > 70)", rsi))
	case rsi > 60:
		score--
		reasons = append(reasons, fmt.Sprintf("RSI elevated (%.1f)", rsi))
	case rsi < 30:
		score += 2
		reasons = append(reasons, fmt.Sprintf("RSI oversold (%.1f < 30)", rsi))
	case rsi < 40:
		score++
		reasons = append(reasons, fmt.Sprintf("RSI low (%.1f)", rsi))
	default:
		reasons = append(reasons, fmt.Sprintf("RSI neutral (%.1f)", rsi))
	}

	if snap.MACD.MACD > snap.MACD.Signal {
		score++
		reasons = append(reasons, fmt.Sprintf("MACD bullish (%.2f > %.2f)", snap.MACD.MACD, snap.MACD.Signal))
	} else {
		score--
		reasons = append(reasons, fmt.Sprintf("MACD bearish (%.2f < %.2f)", snap.MACD.MACD, snap.MACD.Signal))
	}
	return score, reasons
}

func scoreTrend(snap Snapshot) (int, []string) {
	score := 0
	var reasons []string
	if snap.CurrentPrice > snap.MA.MA50 {
		score++
		reasons = append(reasons, "Price above MA50 (uptrend)")
	} else {
		score--
		reasons = append(reasons, "Price below MA50 (downtrend)")
	}
	if snap.MA.MA200 != nil {
		if snap.MA.MA50 > *snap.MA.MA200 {
			score++
			reasons = append(reasons, "MA50 > MA200 (golden cross)")
		} else {
			score--
			reasons = append(reasons, "MA50 < MA200 (death cross)")
		}
	}
	return score, reasons
}

func scoreVolatility(snap Snapshot) int {
	switch {
	case snap.BB.Position > 0.9:
		return -1
	case snap.BB.Position < 0.1:
		return 1
	}
	return 0
}

func scoreVolume(snap Snapshot) int {
	switch snap.Volume.Trend {
	case indicators.VolumeIncreasing:
		return 1
	case indicators.VolumeDecreasing:
		return -1
	}
	return 0
}

func analysisSummary(signal string, confidence float64, snap Snapshot, target, pct float64, trend []string) string {
	var condition string
	switch rsi := snap.RSI; {
	case rsi > 70:
		condition = fmt.Sprintf("Market is overbought (RSI %.1f > 70)", rsi)
	case rsi < 30:
		condition = fmt.Sprintf("Market is oversold (RSI %.1f < 30)", rsi)
	default:
		condition = fmt.Sprintf("Market momentum is neutral (RSI %.1f)", rsi)
	}

	price := snap.CurrentPrice
	var action, advice string
	switch signal {
	case SignalBuy:
		action = "BUY signal detected"
		advice = fmt.Sprintf("Consider entering long position near $%.2f", price)
		if pct > 0 {
			advice += fmt.Sprintf(" with target $%.2f (+%.1f%%)", target, pct)
		}
	case SignalSell:
		action = "SELL signal detected"
		advice = fmt.Sprintf("Consider exiting longs or entering short near $%.2f", price)
		if pct < 0 {
			advice += fmt.Sprintf(" with target $%.2f (%.1f%%)", target, pct)
		}
	default:
		action = "HOLD/WAIT - No clear signal"
		advice = fmt.Sprintf("Current price $%.2f. Wait for clearer setup", price)
	}

	parts := []string{condition, trend[0], action, advice, fmt.Sprintf("Confidence: %.0f%%", confidence)}
	return strings.Join(parts, ". ") + "."
}
