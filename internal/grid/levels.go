package grid

import (
	"math"

	"ai-trading-assistant-go/internal/models"
	"github.com/shopspring/decimal"
)

const pricePlaces = 8

// CalculateLevels spaces count prices from lower to upper. Arithmetic grids use a
// fixed step, geometric grids a fixed ratio. The lower half are BUY levels.
func CalculateLevels(lower, upper float64, count int, gridType string) []models.GridLevel {
	if count < 2 {
		return nil
	}
	levels := make([]models.GridLevel, count)
	lo := decimal.NewFromFloat(lower)
	hi := decimal.NewFromFloat(upper)
	steps := decimal.NewFromInt(int64(count - 1))
	step := hi.Sub(lo).Div(steps)
	ratio := math.Pow(upper/lower, 1/float64(count-1))

	for i := 0; i < count; i++ {
		var price decimal.Decimal
		switch {
		case i == count-1:
			price = hi
		case gridType == models.GridTypeGeometric:
			price = lo.Mul(decimal.NewFromFloat(math.Pow(ratio, float64(i))))
		default:
			price = lo.Add(step.Mul(decimal.NewFromInt(int64(i))))
		}
		side := models.SideSell
		if i < count/2 {
			side = models.SideBuy
		}
		levels[i] = models.GridLevel{
			LevelIndex: i,
			Price:      price.Round(pricePlaces).InexactFloat64(),
			Side:       side,
		}
	}
	return levels
}

// Stats summarises the fill state of a grid.
type Stats struct {
	TotalLevels   int     `json:"total_levels"`
	BuyLevels     int     `json:"buy_levels"`
	SellLevels    int     `json:"sell_levels"`
	FilledCount   int     `json:"filled_count"`
	PendingCount  int     `json:"pending_count"`
	BuyFilled     int     `json:"buy_filled"`
	SellFilled    int     `json:"sell_filled"`
	CompletionPct float64 `json:"completion_pct"`
}

// Summarize counts filled and pending levels.
func Summarize(levels []models.GridLevel) Stats {
	s := Stats{TotalLevels: len(levels)}
	for _, l := range levels {
		if l.Side == models.SideBuy {
			s.BuyLevels++
		} else {
			s.SellLevels++
		}
		if !l.IsFilled {
			continue
		}
		s.FilledCount++
		if l.Side == models.SideBuy {
			s.BuyFilled++
		} else {
			s.SellFilled++
		}
	}
	s.PendingCount = s.TotalLevels - s.FilledCount
	if s.TotalLevels > 0 {
		s.CompletionPct = float64(s.FilledCount) / float64(s.TotalLevels) * 100
	}
	return s
}

// unrealisedPct is the gain of the filled BUY levels at price, in percent of their cost.
// Every level trades the same amount, so the amount cancels out.
func unrealisedPct(levels []models.GridLevel, price float64) (float64, bool) {
	var cost, value float64
	for _, l := range levels {
		if !l.IsFilled || l.Side != models.SideBuy {
			continue
		}
		cost += l.Price
		value += price
	}
	if cost <= 0 {
		return 0, false
	}
	return (value - cost) / cost * 100, true
}

// shouldFill reports whether price is close enough to a level to execute it.
// BUY levels fill at or below 1% above the level, SELL levels at or above 1% below it.
func shouldFill(l models.GridLevel, price float64) bool {
	if l.IsFilled {
		return false
	}
	if l.Side == models.SideBuy {
		return price <= l.Price*1.01
	}
	return price >= l.Price*0.99
}
