package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	v, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, v, 1e-9)

	_, err = SMA([]float64{1, 2}, 3)
	assert.ErrorIs(t, err, ErrNotEnoughData)

	_, err = SMA([]float64{1, 2}, 0)
	assert.EqualError(t, err, "period must be positive, got 0")
}

func TestSMASeries(t *testing.T) {
	series, err := SMASeries([]float64{1, 2, 3, 4}, 2)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(series[0]))
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, series[1:])
}

func TestEMASeries(t *testing.T) {
	series, err := EMASeries([]float64{1, 2, 3}, 3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1.5, 2.25}, series, 1e-9)

	_, err = EMASeries(nil, 3)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestRSI(t *testing.T) {
	t.Run("Short series is neutral", func(t *testing.T) {
		v, err := RSI([]float64{1, 2}, 14)
		require.NoError(t, err)
		assert.Equal(t, 50.0, v)
	})

	t.Run("Only gains", func(t *testing.T) {
		closes := make([]float64, 20)
		for i := range closes {
			closes[i] = float64(100 + i)
		}
		v, err := RSI(closes, 14)
		require.NoError(t, err)
		assert.Equal(t, 100.0, v)
	})

	t.Run("Mixed", func(t *testing.T) {
		v, err := RSI([]float64{10, 12, 11}, 2)
		require.NoError(t, err)
		assert.InDelta(t, 66.6667, v, 1e-3)
	})

	t.Run("Flat", func(t *testing.T) {
		v, err := RSI([]float64{5, 5, 5, 5}, 3)
		require.NoError(t, err)
		assert.Equal(t, 50.0, v)
	})
}

func TestMACD_FlatSeries(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 42
	}
	m, err := MACD(closes, 12, 26, 9)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, m.MACD, 1e-9)
	assert.InDelta(t, 0.0, m.Signal, 1e-9)
	assert.InDelta(t, 0.0, m.Histogram, 1e-9)
}

func TestMACD_Uptrend(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	m, err := MACD(closes, 12, 26, 9)
	require.NoError(t, err)
	assert.Greater(t, m.MACD, 0.0)
	assert.Greater(t, m.MACD, m.Signal)
}

func TestStdDev(t *testing.T) {
	v, err := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	require.NoError(t, err)
	assert.InDelta(t, 2.138, v, 1e-3)
}

func TestBollinger(t *testing.T) {
	t.Run("Flat series has zero width", func(t *testing.T) {
		b, err := Bollinger([]float64{3, 3, 3, 3}, 4, 2)
		require.NoError(t, err)
		assert.Equal(t, 3.0, b.Middle)
		assert.Equal(t, 0.0, b.Width)
		assert.Equal(t, 0.5, b.Position)
	})

	t.Run("Close above middle", func(t *testing.T) {
		b, err := BollingerEMA([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 5, 2)
		require.NoError(t, err)
		assert.Greater(t, b.Upper, b.Middle)
		assert.Less(t, b.Lower, b.Middle)
		assert.Greater(t, b.Position, 0.5)
	})
}

func TestATR(t *testing.T) {
	v, err := ATR([]float64{10, 12}, []float64{8, 9}, []float64{9, 11}, 1)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	_, err = ATR([]float64{1}, []float64{1, 2}, []float64{1, 2}, 1)
	assert.Error(t, err)
}

func TestVolume(t *testing.T) {
	p := Volume([]float64{10, 10, 10, 20}, 4)
	assert.Equal(t, VolumeIncreasing, p.Trend)
	assert.InDelta(t, 12.5, p.Average, 1e-9)
	assert.InDelta(t, 60.0, p.DeltaPct, 1e-9)

	assert.Equal(t, VolumeUnknown, Volume([]float64{1}, 20).Trend)
	assert.Equal(t, 5.0, VolumeDelta([]float64{1, 10, 15}))
	assert.Equal(t, 0.0, VolumeDelta([]float64{1}))
}

func TestCrossed(t *testing.T) {
	assert.True(t, Crossed([]float64{1, 3}, []float64{2, 2}))
	assert.False(t, Crossed([]float64{3, 3}, []float64{2, 2}))
	assert.False(t, Crossed([]float64{1}, []float64{2}))
}
