// Package indicators implements the technical indicators used by the
// prediction service and the bot gating logic. Every function works on plain
// float64 series ordered oldest first.
package indicators

import (
	"errors"
	"fmt"
	"math"
)

// ErrNotEnoughData is returned when a series is shorter than an indicator needs.
var ErrNotEnoughData = errors.New("not enough data")

func checkPeriod(period, n int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	if n < period {
		return fmt.Errorf("%w: need %d, got %d", ErrNotEnoughData, period, n)
	}
	return nil
}

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if err := checkPeriod(period, len(values)); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// SMASeries returns the rolling mean. The first period-1 entries are NaN.
func SMASeries(values []float64, period int) ([]float64, error) {
	if err := checkPeriod(period, len(values)); err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out, nil
}

// EMASeries returns the exponential moving average with alpha = 2/(span+1),
// seeded with the first value. Every entry is defined.
func EMASeries(values []float64, span int) ([]float64, error) {
	if span <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", span)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: need 1, got 0", ErrNotEnoughData)
	}
	alpha := 2.0 / float64(span+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = out[i-1] + alpha*(values[i]-out[i-1])
	}
	return out, nil
}

// EMA returns the last value of EMASeries.
func EMA(values []float64, span int) (float64, error) {
	series, err := EMASeries(values, span)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// StdDev returns the sample standard deviation of the last period values.
func StdDev(values []float64, period int) (float64, error) {
	if err := checkPeriod(period, len(values)); err != nil {
		return 0, err
	}
	if period < 2 {
		return 0, nil
	}
	window := values[len(values)-period:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(period)
	sq := 0.0
	for _, v := range window {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(period-1)), nil
}

// RSI computes the relative strength index from rolling means of gains and
// losses. Series too short for the window report the neutral value 50.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(closes) < period+1 {
		return 50, nil
	}
	window := closes[len(closes)-period-1:]
	var gain, loss float64
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil
		}
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// MACDResult holds the MACD line, its signal line and their difference.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD computes the moving average convergence divergence with the usual
// fast/slow/signal spans (12/26/9).
func MACD(closes []float64, fast, slow, signal int) (MACDResult, error) {
	fastSeries, err := EMASeries(closes, fast)
	if err != nil {
		return MACDResult{}, err
	}
	slowSeries, err := EMASeries(closes, slow)
	if err != nil {
		return MACDResult{}, err
	}
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fastSeries[i] - slowSeries[i]
	}
	signalSeries, err := EMASeries(line, signal)
	if err != nil {
		return MACDResult{}, err
	}
	last := len(line) - 1
	return MACDResult{
		MACD:      line[last],
		Signal:    signalSeries[last],
		Histogram: line[last] - signalSeries[last],
	}, nil
}

// Bands holds Bollinger band levels.
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
	// Position is where the last close sits between the bands, 0 at the lower and 1 at the upper.
	Position float64 `json:"position"`
	Width    float64 `json:"width"`
}

// Bollinger computes bands around the simple moving average.
func Bollinger(closes []float64, period int, k float64) (Bands, error) {
	middle, err := SMA(closes, period)
	if err != nil {
		return Bands{}, err
	}
	return bands(closes, middle, period, k)
}

// BollingerEMA computes bands around the exponential moving average.
func BollingerEMA(closes []float64, period int, k float64) (Bands, error) {
	if err := checkPeriod(period, len(closes)); err != nil {
		return Bands{}, err
	}
	middle, err := EMA(closes, period)
	if err != nil {
		return Bands{}, err
	}
	return bands(closes, middle, period, k)
}

func bands(closes []float64, middle float64, period int, k float64) (Bands, error) {
	sd, err := StdDev(closes, period)
	if err != nil {
		return Bands{}, err
	}
	b := Bands{
		Upper:    middle + k*sd,
		Middle:   middle,
		Lower:    middle - k*sd,
		Position: 0.5,
	}
	b.Width = b.Upper - b.Lower
	if b.Width > 0 {
		b.Position = (closes[len(closes)-1] - b.Lower) / b.Width
	}
	return b, nil
}

// ATR is the rolling mean of the true range over period candles.
func ATR(highs, lows, closes []float64, period int) (float64, error) {
	if len(highs) != len(closes) || len(lows) != len(closes) {
		return 0, fmt.Errorf("series length mismatch: high %d, low %d, close %d", len(highs), len(lows), len(closes))
	}
	if err := checkPeriod(period, len(closes)-1); err != nil {
		return 0, err
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		sum += math.Max(hl, math.Max(hc, lc))
	}
	return sum / float64(period), nil
}

// Volume trend labels.
const (
	VolumeIncreasing = "increasing"
	VolumeDecreasing = "decreasing"
	VolumeStable     = "stable"
	VolumeUnknown    = "unknown"
)

// VolumeProfile compares the last volume to its rolling average.
type VolumeProfile struct {
	Current  float64 `json:"current"`
	Average  float64 `json:"average"`
	DeltaPct float64 `json:"delta_pct"`
	Trend    string  `json:"trend"`
}

// Volume builds a VolumeProfile. A move beyond 20% of the average counts as a trend.
func Volume(volumes []float64, period int) VolumeProfile {
	avg, err := SMA(volumes, period)
	if err != nil {
		return VolumeProfile{Trend: VolumeUnknown}
	}
	current := volumes[len(volumes)-1]
	change := 0.0
	if avg > 0 {
		change = (current - avg) / avg
	}
	trend := VolumeStable
	switch {
	case change > 0.2:
		trend = VolumeIncreasing
	case change < -0.2:
		trend = VolumeDecreasing
	}
	return VolumeProfile{Current: current, Average: avg, DeltaPct: change * 100, Trend: trend}
}

// VolumeDelta is the change between the last two volumes.
func VolumeDelta(volumes []float64) float64 {
	if len(volumes) < 2 {
		return 0
	}
	return volumes[len(volumes)-1] - volumes[len(volumes)-2]
}

// Crossed reports whether a moved from at-or-below b to above b on the last point.
func Crossed(a, b []float64) bool {
	n := len(a)
	if n < 2 || len(b) != n {
		return false
	}
	return a[n-2] <= b[n-2] && a[n-1] > b[n-1]
}
