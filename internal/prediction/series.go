package prediction

import (
	"math"
	"time"

	"ai-trading-assistant-go/internal/models"
)

// Signals produced by the indicator predictors.
const (
	SignalBuy  = "BUY"
	SignalSell = "SELL"
	SignalHold = "HOLD"
)

type series struct {
	times   []time.Time
	opens   []float64
	highs   []float64
	lows    []float64
	closes  []float64
	volumes []float64
}

func newSeries(candles []models.PriceHistory) series {
	s := series{
		times:   make([]time.Time, len(candles)),
		opens:   make([]float64, len(candles)),
		highs:   make([]float64, len(candles)),
		lows:    make([]float64, len(candles)),
		closes:  make([]float64, len(candles)),
		volumes: make([]float64, len(candles)),
	}
	for i, c := range candles {
		s.times[i] = c.Timestamp
		s.opens[i] = c.Open
		s.highs[i] = c.High
		s.lows[i] = c.Low
		s.closes[i] = c.Close
		s.volumes[i] = c.Volume
	}
	return s
}

func (s series) last() float64 {
	return s.closes[len(s.closes)-1]
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
