package prices

import (
	"math"
	"math/rand"
	"time"

	"ai-trading-assistant-go/internal/models"
)

// SampleCandles generates a deterministic hourly random walk for demos and training.
// Each close drifts around +0.1% with 1% noise; volume grows with the size of the move.
func SampleCandles(symbol string, startPrice float64, n int, start time.Time, seed int64) []models.PriceHistory {
	rng := rand.New(rand.NewSource(seed))
	out := make([]models.PriceHistory, 0, n)
	price := startPrice
	symbol = Normalize(symbol)

	for i := 0; i < n; i++ {
		open := price * (1 + rng.NormFloat64()*0.002)
		change := 0.001 + rng.NormFloat64()*0.01
		closePrice := open * (1 + change)
		high := math.Max(open, closePrice) * (1 + math.Abs(rng.NormFloat64()*0.005))
		low := math.Min(open, closePrice) * (1 - math.Abs(rng.NormFloat64()*0.005))
		volume := math.Max(100, 1000*(1+math.Abs(change)*10+rng.NormFloat64()*0.5))

		out = append(out, models.PriceHistory{
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * time.Hour).UTC(),
			Open:      round2(open),
			High:      round2(high),
			Low:       round2(low),
			Close:     round2(closePrice),
			Volume:    round2(volume),
		})
		price = closePrice
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
