package prediction

import (
	"fmt"
	"strings"

	"ai-trading-assistant-go/internal/indicators"
	"ai-trading-assistant-go/internal/models"
)

// Trend labels reported by an EMAContext.
const (
	TrendUp      = "long_term_uptrend"
	TrendDown    = "long_term_downtrend"
	TrendUnknown = "unknown"
)

// MinContextCandles is the history needed for the 200-period EMA.
const MinContextCandles = 200

// EMAContext describes the current EMA trend of a symbol. Bots consult it before trading.
type EMAContext struct {
	Success       bool    `json:"success"`
	Error         string  `json:"error,omitempty"`
	TrendLabel    string  `json:"trend_label"`
	OverallSignal string  `json:"overall_signal"`
	Confidence    int     `json:"confidence"`
	GoldenCross   bool    `json:"golden_cross"`
	DeathCross    bool    `json:"death_cross"`
	ShortTerm     string  `json:"short_term,omitempty"`
	Explanation   string  `json:"explanation,omitempty"`
	EMA9          float64 `json:"ema9,omitempty"`
	EMA20         float64 `json:"ema20,omitempty"`
	EMA50         float64 `json:"ema50,omitempty"`
	EMA200        float64 `json:"ema200,omitempty"`
}

// Unavailable returns the context used when no trend can be computed.
func Unavailable(reason string) EMAContext {
	return EMAContext{
		Error:         reason,
		TrendLabel:    TrendUnknown,
		OverallSignal: SignalHold,
	}
}

// ComputeEMAContext derives the trend context from at least 200 candles.
//
// Four votes decide the overall signal: price vs EMA9, EMA9 vs EMA20,
// EMA20 vs EMA50 and EMA50 vs EMA200. The majority side wins and the
// confidence is 25 points per vote of margin. A tie is HOLD.
func ComputeEMAContext(candles []models.PriceHistory) EMAContext {
	if len(candles) < MinContextCandles {
		return Unavailable("Insufficient price history")
	}
	s := newSeries(candles)

	spans := []int{9, 20, 50, 200}
	ema := make(map[int][]float64, len(spans))
	for _, span := range spans {
		series, err := indicators.EMASeries(s.closes, span)
		if err != nil {
			return Unavailable(err.Error())
		}
		ema[span] = series
	}
	last := len(s.closes) - 1
	price := s.closes[last]
	e9, e20, e50, e200 := ema[9][last], ema[20][last], ema[50][last], ema[200][last]

	ctx := EMAContext{
		Success:     true,
		TrendLabel:  TrendDown,
		ShortTerm:   "bearish",
		GoldenCross: indicators.Crossed(ema[50], ema[200]),
		DeathCross:  indicators.Crossed(ema[200], ema[50]),
		EMA9:        e9,
		EMA20:       e20,
		EMA50:       e50,
		EMA200:      e200,
	}
	if e50 >= e200 {
		ctx.TrendLabel = TrendUp
	}
	if e9 >= e20 {
		ctx.ShortTerm = "bullish"
	}

	bull, bear := 0, 0
	for _, pair := range [][2]float64{{price, e9}, {e9, e20}, {e20, e50}, {e50, e200}} {
		switch {
		case pair[0] > pair[1]:
			bull++
		case pair[0] < pair[1]:
			bear++
		}
	}
	switch {
	case bull > bear:
		ctx.OverallSignal = SignalBuy
	case bear > bull:
		ctx.OverallSignal = SignalSell
	default:
		ctx.OverallSignal = SignalHold
	}
	ctx.Confidence = 25 * abs(bull-bear)

	var notes []string
	if ctx.TrendLabel == TrendUp {
		notes = append(notes, "EMA50 above EMA200")
	} else {
		notes = append(notes, "EMA50 below EMA200")
	}
	notes = append(notes, fmt.Sprintf("short-term %s (EMA9 vs EMA20)", ctx.ShortTerm))
	if ctx.GoldenCross {
		notes = append(notes, "EMA50 just crossed above EMA200")
	}
	if ctx.DeathCross {
		notes = append(notes, "EMA50 just crossed below EMA200")
	}
	ctx.Explanation = strings.Join(notes, "; ")
	return ctx
}

// Decision is the outcome of a trend gate.
type Decision struct {
	Execute bool   `json:"execute"`
	Reason  string `json:"reason"`
}

// ShouldGridExecute reports whether a grid bot should trade. Grids prefer sideways markets.
func ShouldGridExecute(c EMAContext) Decision {
	if !c.Success {
		return Decision{true, "EMA data unavailable, executing normally"}
	}
	signal := c.OverallSignal
	switch {
	case signal == SignalHold:
		return Decision{true, "Market sideways - ideal for grid trading"}
	case c.Confidence < 60:
		return Decision{true, fmt.Sprintf("Weak %s signal (%d%%), grid can execute", signal, c.Confidence)}
	case c.GoldenCross:
		return Decision{false, "Golden Cross - strong uptrend expected, grid bot paused"}
	case c.DeathCross:
		return Decision{false, "Death Cross - strong downtrend expected, grid bot paused"}
	case signal == SignalBuy:
		return Decision{false, fmt.Sprintf("Strong uptrend (%d%% confidence) - better for DCA BUY, grid bot paused", c.Confidence)}
	case signal == SignalSell:
		return Decision{false, fmt.Sprintf("Strong downtrend (%d%% confidence) - better for DCA SELL, grid bot paused", c.Confidence)}
	}
	return Decision{true, "Market conditions acceptable for grid trading"}
}

// ShouldDCAExecute reports whether a DCA bot on the given side should trade.
// DCA bots prefer a long-term trend in their own direction.
func ShouldDCAExecute(c EMAContext, side string) Decision {
	if !c.Success {
		return Decision{true, "EMA data unavailable, executing normally"}
	}
	switch side {
	case SignalBuy:
		switch {
		case c.GoldenCross:
			return Decision{true, "Golden Cross - excellent timing for DCA BUY"}
		case c.TrendLabel == TrendUp:
			return Decision{true, fmt.Sprintf("Long-term uptrend - ideal for DCA BUY (%d%% confidence)", c.Confidence)}
		case c.DeathCross:
			return Decision{false, "Death Cross - bad timing for DCA BUY, cycle skipped"}
		case c.TrendLabel == TrendDown:
			return Decision{false, "Long-term downtrend - not ideal for DCA BUY, cycle skipped"}
		}
		return Decision{true, "Neutral trend - DCA BUY can proceed with caution"}
	case SignalSell:
		switch {
		case c.DeathCross:
			return Decision{true, "Death Cross - excellent timing for DCA SELL"}
		case c.TrendLabel == TrendDown:
			return Decision{true, fmt.Sprintf("Long-term downtrend - ideal for DCA SELL (%d%% confidence)", c.Confidence)}
		case c.GoldenCross:
			return Decision{false, "Golden Cross - bad timing for DCA SELL, cycle skipped"}
		case c.TrendLabel == TrendUp:
			return Decision{false, "Long-term uptrend - not ideal for DCA SELL, cycle skipped"}
		}
		return Decision{true, "Neutral trend - DCA SELL can proceed with caution"}
	}
	return Decision{true, fmt.Sprintf("Unknown bot side '%s', executing normally", side)}
}

// Summary renders the context on one line.
func (c EMAContext) Summary() string {
	if !c.Success {
		return "EMA data unavailable"
	}
	parts := []string{fmt.Sprintf("%s signal (%d%% confidence)", c.OverallSignal, c.Confidence)}
	switch c.TrendLabel {
	case TrendUp:
		parts = append(parts, "Long-term uptrend")
	case TrendDown:
		parts = append(parts, "Long-term downtrend")
	default:
		parts = append(parts, "Neutral trend")
	}
	switch c.ShortTerm {
	case "bullish":
		parts = append(parts, "Short-term bullish")
	case "bearish":
		parts = append(parts, "Short-term bearish")
	}
	if c.GoldenCross {
		parts = append(parts, "Golden Cross")
	} else if c.DeathCross {
		parts = append(parts, "Death Cross")
	}
	return strings.Join(parts, " | ")
}
