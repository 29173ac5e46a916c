package dca

import (
	"math"
	"time"

	"ai-trading-assistant-go/internal/models"
	"github.com/shopspring/decimal"
)

const (
	IntervalHourly  = "Hourly"
	IntervalDaily   = "Daily"
	IntervalWeekly  = "Weekly"
	IntervalMonthly = "Monthly"
)

var intervals = map[string]time.Duration{
	IntervalHourly:  time.Hour,
	IntervalDaily:   24 * time.Hour,
	IntervalWeekly:  7 * 24 * time.Hour,
	IntervalMonthly: 30 * 24 * time.Hour,
}

// IntervalDuration returns the schedule period of a named interval.
func IntervalDuration(name string) (time.Duration, bool) {
	d, ok := intervals[name]
	return d, ok
}

// PlannedOrder is one order of a DCA plan. Size is in quote currency, Amount in the base asset.
type PlannedOrder struct {
	Sequence  int     `json:"sequence"`
	OrderType string  `json:"order_type"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Amount    float64 `json:"amount"`
}

// Plan is the ladder of base and safety orders a DCA bot works through.
type Plan struct {
	ReferencePrice  float64        `json:"reference_price"`
	BaseAmount      float64        `json:"base_amount"`
	Orders          []PlannedOrder `json:"orders"`
	TotalInvestment float64        `json:"total_investment"`
	AveragePrice    float64        `json:"average_price"`
	TakeProfitPrice *float64       `json:"take_profit_price,omitempty"`
	StopLossPrice   *float64       `json:"stop_loss_price,omitempty"`
}

// BuildPlan lays out the bot's orders from price.
//
// Safety order i sits at price*(1 -/+ dev*i*step^(i-1)) and is sized
// dca*vol^(i-1). BUY bots ladder down, SELL bots ladder up. The take profit
// and stop loss are measured from the average fill of the whole ladder.
func BuildPlan(bot *models.DCABot, price float64) *Plan {
	px := decimal.NewFromFloat(price)
	base := decimal.NewFromFloat(bot.BaseOrderSize)
	dev := decimal.NewFromFloat(bot.PriceDeviationPct).Div(decimal.NewFromInt(100))
	direction := decimal.NewFromInt(-1)
	if bot.Side == models.SideSell {
		direction = decimal.NewFromInt(1)
	}
	step := multiplier(bot.StepMultiplier)
	vol := multiplier(bot.VolumeMultiplier)

	baseAmount := base.Div(px)
	plan := &Plan{
		ReferencePrice: price,
		BaseAmount:     baseAmount.Round(8).InexactFloat64(),
	}
	plan.Orders = append(plan.Orders, PlannedOrder{
		Sequence:  0,
		OrderType: models.OrderTypeBase,
		Side:      bot.Side,
		Price:     price,
		Size:      bot.BaseOrderSize,
		Amount:    plan.BaseAmount,
	})

	totalQuote := base
	totalBase := baseAmount
	for i := 1; i <= bot.MaxDCAOrders; i++ {
		offset := dev.Mul(decimal.NewFromInt(int64(i))).Mul(decimal.NewFromFloat(math.Pow(step, float64(i-1))))
		orderPrice := px.Mul(decimal.NewFromInt(1).Add(direction.Mul(offset)))
		if !orderPrice.IsPositive() {
			break
		}
		size := decimal.NewFromFloat(bot.DCAOrderSize).Mul(decimal.NewFromFloat(math.Pow(vol, float64(i-1))))
		amount := size.Div(orderPrice)
		totalQuote = totalQuote.Add(size)
		totalBase = totalBase.Add(amount)
		plan.Orders = append(plan.Orders, PlannedOrder{
			Sequence:  i,
			OrderType: models.OrderTypeSafety,
			Side:      bot.Side,
			Price:     orderPrice.Round(8).InexactFloat64(),
			Size:      size.Round(8).InexactFloat64(),
			Amount:    amount.Round(8).InexactFloat64(),
		})
	}

	avg := totalQuote.Div(totalBase)
	plan.TotalInvestment = totalQuote.Round(8).InexactFloat64()
	plan.AveragePrice = avg.Round(8).InexactFloat64()
	if bot.TakeProfitPct != nil {
		tp := exitPrice(avg, *bot.TakeProfitPct, direction.Neg())
		plan.TakeProfitPrice = &tp
	}
	if bot.StopLossPct != nil {
		sl := exitPrice(avg, *bot.StopLossPct, direction)
		plan.StopLossPrice = &sl
	}
	return plan
}

// exitPrice moves avg by pct percent in direction.
func exitPrice(avg decimal.Decimal, pct float64, direction decimal.Decimal) float64 {
	move := decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100)).Mul(direction)
	return avg.Mul(decimal.NewFromInt(1).Add(move)).Round(8).InexactFloat64()
}

func multiplier(m float64) float64 {
	if m <= 0 {
		return 1
	}
	return m
}

// BotOrders converts the plan into pending bot orders.
func (p *Plan) BotOrders(botID uint) []models.BotOrder {
	orders := make([]models.BotOrder, 0, len(p.Orders)+2)
	for _, o := range p.Orders {
		orders = append(orders, models.BotOrder{
			BotType:   models.BotTypeDCA,
			BotID:     botID,
			Sequence:  o.Sequence,
			OrderType: o.OrderType,
			Side:      o.Side,
			Price:     o.Price,
			Amount:    o.Amount,
			Status:    models.OrderStatusPending,
		})
	}
	if len(p.Orders) == 0 {
		return orders
	}
	exitSide := models.SideSell
	if p.Orders[0].Side == models.SideSell {
		exitSide = models.SideBuy
	}
	next := len(p.Orders)
	if p.TakeProfitPrice != nil {
		orders = append(orders, models.BotOrder{
			BotType: models.BotTypeDCA, BotID: botID, Sequence: next,
			OrderType: models.OrderTypeTakeProfit, Side: exitSide,
			Price: *p.TakeProfitPrice, Status: models.OrderStatusPending,
		})
		next++
	}
	if p.StopLossPrice != nil {
		orders = append(orders, models.BotOrder{
			BotType: models.BotTypeDCA, BotID: botID, Sequence: next,
			OrderType: models.OrderTypeStopLoss, Side: exitSide,
			Price: *p.StopLossPrice, Status: models.OrderStatusPending,
		})
	}
	return orders
}

// Due reports whether a scheduled run may start at now: the interval has
// elapsed since the last run and so has the cooldown.
func Due(bot *models.DCABot, now time.Time) bool {
	if bot.LastRunAt == nil {
		return true
	}
	elapsed := now.Sub(*bot.LastRunAt)
	if d, ok := IntervalDuration(bot.Interval); ok && elapsed < d {
		return false
	}
	return elapsed >= time.Duration(bot.CooldownSeconds)*time.Second
}

// InRange reports whether price is inside the bot's optional range bounds.
func InRange(bot *models.DCABot, price float64) bool {
	if bot.RangeLower != nil && price < *bot.RangeLower {
		return false
	}
	if bot.RangeUpper != nil && price > *bot.RangeUpper {
		return false
	}
	return true
}

// Triggered reports whether price has reached the bot's trigger. BUY bots wait
// for the price to fall to it, SELL bots for it to rise to it.
func Triggered(bot *models.DCABot, price float64) bool {
	if bot.TriggerPrice == nil {
		return true
	}
	if bot.Side == models.SideSell {
		return price >= *bot.TriggerPrice
	}
	return price <= *bot.TriggerPrice
}
