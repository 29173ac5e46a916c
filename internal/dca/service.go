// Package dca runs dollar-cost averaging bots.
package dca

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-trading-assistant-go/internal/execution"
	"ai-trading-assistant-go/internal/models"
	"ai-trading-assistant-go/internal/prediction"
	"ai-trading-assistant-go/internal/prices"
	"ai-trading-assistant-go/internal/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultDeviationPct = 1.0
	defaultMaxOrders    = 5
	MaxDCAOrders        = 100
)

var (
	ErrNotFound = errors.New("DCA bot not found or access denied")
	ErrInactive = errors.New("DCA bot is not active")
)

// OrderRouter executes bot orders and reports what a bot has traded.
type OrderRouter interface {
	ExecuteMarketOrder(ctx context.Context, req execution.OrderRequest) (*execution.Result, error)
	SourceStats(ctx context.Context, userID uint, source string) (*execution.SourceStats, error)
	Mode() string
}

// PriceSource provides the newest stored close of a symbol.
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// TrendSource provides the EMA trend context of a symbol.
type TrendSource interface {
	EMAContext(ctx context.Context, symbol string) prediction.EMAContext
}

var (
	_ OrderRouter = (*execution.Router)(nil)
	_ PriceSource = (*prices.Store)(nil)
	_ TrendSource = (*prediction.Service)(nil)
)

// CreateRequest describes a new DCA bot. Nil optional fields take their defaults.
type CreateRequest struct {
	Symbol            string   `json:"symbol"`
	Side              string   `json:"side"`
	BuyAmount         float64  `json:"buy_amount"`
	Interval          string   `json:"interval"`
	BaseOrderSize     *float64 `json:"base_order_size"`
	DCAOrderSize      *float64 `json:"dca_order_size"`
	PriceDeviationPct *float64 `json:"price_deviation_pct"`
	TakeProfitPct     *float64 `json:"take_profit_pct"`
	TakeProfitType    string   `json:"take_profit_type"`
	MaxDCAOrders      *int     `json:"max_dca_orders"`
	StopLossPct       *float64 `json:"stop_loss_pct"`
	StepMultiplier    *float64 `json:"price_deviation_multiplier"`
	VolumeMultiplier  *float64 `json:"dca_order_size_multiplier"`
	TriggerPrice      *float64 `json:"trigger_price"`
	CooldownSeconds   int      `json:"cooldown_seconds"`
	RangeLower        *float64 `json:"range_lower"`
	RangeUpper        *float64 `json:"range_upper"`
	EndOnStop         bool     `json:"end_on_stop"`
	ExchangeAccountID *uint    `json:"exchange_account_id"`
}

// CreateResult is the created bot and its order plan. Plan is nil when no price is stored yet.
type CreateResult struct {
	Message string         `json:"message"`
	Bot     *models.DCABot `json:"bot"`
	Plan    *Plan          `json:"plan,omitempty"`
}

// RunResult is the outcome of one DCA cycle.
type RunResult struct {
	*execution.Result
	BotID          uint    `json:"bot_id"`
	BuyAmount      float64 `json:"buy_amount"`
	Interval       string  `json:"interval"`
	ExecutionCount int     `json:"execution_count"`
}

// ScheduledResult is the outcome of an engine-driven cycle. Run is nil when the cycle was skipped.
type ScheduledResult struct {
	BotID   uint        `json:"bot_id"`
	Skipped bool        `json:"skipped"`
	Stopped bool        `json:"stopped,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Run     *RunResult  `json:"run,omitempty"`
	Stop    *StopResult `json:"stop,omitempty"`
}

// StopResult reports what stopping a bot did.
type StopResult struct {
	Message         string            `json:"message"`
	CancelledOrders int64             `json:"cancelled_orders"`
	Liquidation     *execution.Result `json:"liquidation,omitempty"`
}

// Service manages DCA bots.
type Service struct {
	db     *gorm.DB
	router OrderRouter
	prices PriceSource
	trend  TrendSource
	logger *zap.Logger
}

// NewService creates a DCA bot Service.
func NewService(db *gorm.DB, router OrderRouter, priceSource PriceSource, trend TrendSource, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		router: router,
		prices: priceSource,
		trend:  trend,
		logger: logger.Named("dca"),
	}
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func validate(req *CreateRequest) error {
	if req.BuyAmount <= 0 {
		return validation.Errorf("Buy amount must be positive")
	}
	if strings.TrimSpace(req.Symbol) == "" {
		return validation.Errorf("Symbol is required")
	}
	symbol, err := validation.Symbol(prices.Normalize(req.Symbol))
	if err != nil {
		return err
	}
	req.Symbol = symbol

	if req.Interval == "" {
		req.Interval = IntervalWeekly
	}
	if _, ok := IntervalDuration(req.Interval); !ok {
		return validation.Errorf("Interval must be Hourly, Daily, Weekly or Monthly")
	}
	if req.Side == "" {
		req.Side = models.SideBuy
	}
	req.Side = strings.ToUpper(req.Side)
	if req.Side != models.SideBuy && req.Side != models.SideSell {
		return validation.Errorf("Side must be BUY or SELL")
	}
	if req.TakeProfitType == "" {
		req.TakeProfitType = models.TakeProfitFix
	}
	req.TakeProfitType = strings.ToUpper(req.TakeProfitType)
	if req.TakeProfitType != models.TakeProfitFix && req.TakeProfitType != models.TakeProfitTrail {
		return validation.Errorf("Take profit type must be FIX or TRAIL")
	}

	if dev := orDefault(req.PriceDeviationPct, defaultDeviationPct); dev <= 0 || dev > 100 {
		return validation.Errorf("Price deviation must be between 0 and 100%%")
	}
	if tp := req.TakeProfitPct; tp != nil && (*tp <= 0 || *tp > 1000) {
		return validation.Errorf("Take profit %% must be between 0 and 1000")
	}
	if n := req.MaxDCAOrders; n != nil && (*n < 1 || *n > MaxDCAOrders) {
		return validation.Errorf("Max DCA orders must be between 1 and 100")
	}
	if sl := req.StopLossPct; sl != nil && (*sl <= 0 || *sl > 100) {
		return validation.Errorf("Stop loss %% must be between 0 and 100")
	}
	if m := req.StepMultiplier; m != nil && (*m < 0.1 || *m > 10) {
		return validation.Errorf("Price deviation multiplier must be between 0.1 and 10")
	}
	if m := req.VolumeMultiplier; m != nil && (*m < 0.1 || *m > 10) {
		return validation.Errorf("DCA order size multiplier must be between 0.1 and 10")
	}
	if req.TriggerPrice != nil && *req.TriggerPrice <= 0 {
		return validation.Errorf("Trigger price must be positive")
	}
	if req.CooldownSeconds < 0 {
		return validation.Errorf("Cooldown must not be negative")
	}
	if req.RangeLower != nil && req.RangeUpper != nil && *req.RangeLower >= *req.RangeUpper {
		return validation.Errorf("Range upper must be greater than range lower")
	}
	return nil
}

// Create validates the request, stores the bot and its order plan.
func (s *Service) Create(ctx context.Context, userID uint, req CreateRequest) (*CreateResult, error) {
	if err := validate(&req); err != nil {
		return nil, err
	}

	maxOrders := defaultMaxOrders
	if req.MaxDCAOrders != nil {
		maxOrders = *req.MaxDCAOrders
	}
	bot := &models.DCABot{
		UserID:            userID,
		Symbol:            req.Symbol,
		Side:              req.Side,
		BuyAmount:         req.BuyAmount,
		Interval:          req.Interval,
		BaseOrderSize:     orDefault(req.BaseOrderSize, req.BuyAmount),
		DCAOrderSize:      orDefault(req.DCAOrderSize, req.BuyAmount),
		PriceDeviationPct: orDefault(req.PriceDeviationPct, defaultDeviationPct),
		TakeProfitPct:     req.TakeProfitPct,
		TakeProfitType:    req.TakeProfitType,
		MaxDCAOrders:      maxOrders,
		StopLossPct:       req.StopLossPct,
		VolumeMultiplier:  orDefault(req.VolumeMultiplier, 1),
		StepMultiplier:    orDefault(req.StepMultiplier, 1),
		TriggerPrice:      req.TriggerPrice,
		CooldownSeconds:   req.CooldownSeconds,
		RangeLower:        req.RangeLower,
		RangeUpper:        req.RangeUpper,
		EndOnStop:         req.EndOnStop,
		ExchangeAccountID: req.ExchangeAccountID,
		IsActive:          true,
	}

	var plan *Plan
	reference, err := s.referencePrice(ctx, bot)
	if err != nil {
		return nil, err
	}
	if reference > 0 {
		plan = BuildPlan(bot, reference)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(bot).Error; err != nil {
			return fmt.Errorf("failed to create DCA bot: %w", err)
		}
		if plan == nil {
			return nil
		}
		if err := tx.Create(plan.BotOrders(bot.ID)).Error; err != nil {
			return fmt.Errorf("failed to store DCA plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("DCA bot created",
		zap.Uint("bot_id", bot.ID),
		zap.Uint("user_id", userID),
		zap.String("symbol", bot.Symbol),
		zap.String("side", bot.Side),
		zap.String("interval", bot.Interval),
		zap.Bool("planned", plan != nil),
	)
	return &CreateResult{
		Message: fmt.Sprintf("DCA bot created: %s %s %s", bot.Side, bot.Symbol, bot.Interval),
		Bot:     bot,
		Plan:    plan,
	}, nil
}

// referencePrice is the trigger price when set, otherwise the latest close. Zero means unknown.
func (s *Service) referencePrice(ctx context.Context, bot *models.DCABot) (float64, error) {
	if bot.TriggerPrice != nil {
		return *bot.TriggerPrice, nil
	}
	price, err := s.prices.LatestPrice(ctx, bot.Symbol)
	if errors.Is(err, prices.ErrNoPriceData) {
		s.logger.Debug("No price for DCA plan", zap.String("symbol", bot.Symbol))
		return 0, nil
	}
	return price, err
}

// List returns the user's DCA bots, newest first.
func (s *Service) List(ctx context.Context, userID uint) ([]models.DCABot, error) {
	var bots []models.DCABot
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&bots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list DCA bots: %w", err)
	}
	return bots, nil
}

// Active returns every running DCA bot linked to an exchange account.
func (s *Service) Active(ctx context.Context) ([]models.DCABot, error) {
	var bots []models.DCABot
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND exchange_account_id IS NOT NULL", true).
		Order("id").
		Find(&bots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active DCA bots: %w", err)
	}
	return bots, nil
}

// Get returns a bot owned by the user.
func (s *Service) Get(ctx context.Context, id, userID uint) (*models.DCABot, error) {
	var bot models.DCABot
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&bot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load DCA bot: %w", err)
	}
	return &bot, nil
}

// Orders returns the bot's planned orders in sequence.
func (s *Service) Orders(ctx context.Context, id, userID uint) ([]models.BotOrder, error) {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return nil, err
	}
	var orders []models.BotOrder
	err := s.db.WithContext(ctx).
		Where("bot_type = ? AND bot_id = ?", models.BotTypeDCA, id).
		Order("sequence").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load DCA orders: %w", err)
	}
	return orders, nil
}

// Stats aggregates the bot's logged executions.
func (s *Service) Stats(ctx context.Context, id, userID uint) (*execution.SourceStats, error) {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.router.SourceStats(ctx, userID, execution.DCASource(id))
}

// RunOnce places one market order of buy_amount on the bot's side.
func (s *Service) RunOnce(ctx context.Context, id, userID uint) (*RunResult, error) {
	bot, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !bot.IsActive {
		return nil, ErrInactive
	}
	return s.execute(ctx, bot)
}

func (s *Service) execute(ctx context.Context, bot *models.DCABot) (*RunResult, error) {
	if bot.ExchangeAccountID == nil {
		return nil, validation.Errorf("DCA bot has no exchange account linked")
	}
	order, err := s.router.ExecuteMarketOrder(ctx, execution.OrderRequest{
		UserID:    bot.UserID,
		AccountID: *bot.ExchangeAccountID,
		Symbol:    bot.Symbol,
		Side:      bot.Side,
		Amount:    bot.BuyAmount,
		Source:    execution.DCASource(bot.ID),
	})
	result := &RunResult{
		Result:         order,
		BotID:          bot.ID,
		BuyAmount:      bot.BuyAmount,
		Interval:       bot.Interval,
		ExecutionCount: bot.ExecutionCount,
	}
	if err != nil {
		return result, err
	}

	count := bot.ExecutionCount + 1
	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(bot).Updates(map[string]interface{}{
			"last_run_at":     now,
			"execution_count": gorm.Expr("execution_count + 1"),
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update DCA bot: %w", err)
		}
		return fillNext(tx, bot.ID, order.Price)
	})
	if err != nil {
		return nil, err
	}
	result.ExecutionCount = count

	s.logger.Info("DCA cycle executed",
		zap.Uint("bot_id", bot.ID),
		zap.String("symbol", bot.Symbol),
		zap.String("side", bot.Side),
		zap.Float64("amount", bot.BuyAmount),
		zap.Float64("price", order.Price),
		zap.Int("execution_count", result.ExecutionCount),
	)
	return result, nil
}

// fillNext marks the next pending base or safety order filled at price.
func fillNext(tx *gorm.DB, botID uint, price float64) error {
	var next models.BotOrder
	err := tx.Where("bot_type = ? AND bot_id = ? AND status = ? AND order_type IN ?",
		models.BotTypeDCA, botID, models.OrderStatusPending,
		[]string{models.OrderTypeBase, models.OrderTypeSafety}).
		Order("sequence").
		First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load next DCA order: %w", err)
	}
	err = tx.Model(&next).Updates(map[string]interface{}{
		"status": models.OrderStatusFilled,
		"price":  price,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to fill DCA order: %w", err)
	}
	return nil
}

// RunScheduled runs the bot if the engine's gates allow it: the schedule,
// the trigger price, the range and the EMA trend. A take profit or stop loss
// measured from the bot's average fill stops the bot instead.
func (s *Service) RunScheduled(ctx context.Context, bot *models.DCABot, now time.Time) (*ScheduledResult, error) {
	res := &ScheduledResult{BotID: bot.ID}
	skip := func(reason string) (*ScheduledResult, error) {
		res.Skipped = true
		res.Reason = reason
		return res, nil
	}
	if !Due(bot, now) {
		return skip("Not due yet")
	}

	price, err := s.prices.LatestPrice(ctx, bot.Symbol)
	if errors.Is(err, prices.ErrNoPriceData) {
		return skip(fmt.Sprintf("No price available for %s", bot.Symbol))
	}
	if err != nil {
		return nil, err
	}

	if reason, hit, err := s.exitReached(ctx, bot, price); err != nil {
		return nil, err
	} else if hit {
		stop, err := s.Stop(ctx, bot.ID, bot.UserID)
		if err != nil {
			return nil, err
		}
		res.Stopped = true
		res.Reason = reason
		res.Stop = stop
		return res, nil
	}

	if !Triggered(bot, price) {
		return skip(fmt.Sprintf("Waiting for trigger price $%.2f", *bot.TriggerPrice))
	}
	if !InRange(bot, price) {
		return skip(fmt.Sprintf("Price $%.2f outside configured range", price))
	}
	decision := prediction.ShouldDCAExecute(s.trend.EMAContext(ctx, bot.Symbol), bot.Side)
	if !decision.Execute {
		return skip(decision.Reason)
	}

	run, err := s.execute(ctx, bot)
	res.Run = run
	res.Reason = decision.Reason
	return res, err
}

// exitReached checks the take profit and stop loss against the average fill.
func (s *Service) exitReached(ctx context.Context, bot *models.DCABot, price float64) (string, bool, error) {
	if bot.TakeProfitPct == nil && bot.StopLossPct == nil {
		return "", false, nil
	}
	stats, err := s.router.SourceStats(ctx, bot.UserID, execution.DCASource(bot.ID))
	if err != nil {
		return "", false, err
	}
	if stats.TotalExecutions == 0 || stats.AveragePrice <= 0 {
		return "", false, nil
	}
	change := (price - stats.AveragePrice) / stats.AveragePrice * 100
	if bot.Side == models.SideSell {
		change = -change
	}
	if bot.TakeProfitPct != nil && change >= *bot.TakeProfitPct {
		return fmt.Sprintf("Take profit reached (%.2f%%)", change), true, nil
	}
	if bot.StopLossPct != nil && -change >= *bot.StopLossPct {
		return fmt.Sprintf("Stop loss triggered (%.2f%%)", change), true, nil
	}
	return "", false, nil
}

// Stop deactivates the bot and cancels its pending orders. With end_on_stop the
// accumulated position is closed with a market order.
func (s *Service) Stop(ctx context.Context, id, userID uint) (*StopResult, error) {
	bot, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !bot.IsActive {
		return nil, ErrInactive
	}

	res := &StopResult{Message: "DCA bot stopped"}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(bot).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to stop DCA bot: %w", err)
		}
		cancelled := tx.Model(&models.BotOrder{}).
			Where("bot_type = ? AND bot_id = ? AND status = ?", models.BotTypeDCA, id, models.OrderStatusPending).
			Update("status", models.OrderStatusCancelled)
		if cancelled.Error != nil {
			return fmt.Errorf("failed to cancel DCA orders: %w", cancelled.Error)
		}
		res.CancelledOrders = cancelled.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}

	if bot.EndOnStop && bot.ExchangeAccountID != nil {
		liquidation, err := s.closePosition(ctx, bot)
		if err != nil {
			s.logger.Warn("Failed to close DCA position", zap.Uint("bot_id", id), zap.Error(err))
		}
		res.Liquidation = liquidation
	}

	s.logger.Info("DCA bot stopped",
		zap.Uint("bot_id", id),
		zap.Int64("cancelled_orders", res.CancelledOrders),
		zap.Bool("liquidated", res.Liquidation != nil && res.Liquidation.Success),
	)
	return res, nil
}

func (s *Service) closePosition(ctx context.Context, bot *models.DCABot) (*execution.Result, error) {
	stats, err := s.router.SourceStats(ctx, bot.UserID, execution.DCASource(bot.ID))
	if err != nil {
		return nil, err
	}
	if stats.TotalAmount <= 0 {
		return nil, nil
	}
	side := models.SideSell
	if bot.Side == models.SideSell {
		side = models.SideBuy
	}
	return s.router.ExecuteMarketOrder(ctx, execution.OrderRequest{
		UserID:    bot.UserID,
		AccountID: *bot.ExchangeAccountID,
		Symbol:    bot.Symbol,
		Side:      side,
		Amount:    stats.TotalAmount,
		Source:    execution.DCASource(bot.ID),
	})
}

// Delete removes the bot and its planned orders.
func (s *Service) Delete(ctx context.Context, id, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.DCABot{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete DCA bot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		err := tx.Where("bot_type = ? AND bot_id = ?", models.BotTypeDCA, id).Delete(&models.BotOrder{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete DCA orders: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("DCA bot deleted", zap.Uint("bot_id", id), zap.Uint("user_id", userID))
	return nil
}
