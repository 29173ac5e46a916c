// Package grid runs grid bots: a ladder of BUY levels under the market and SELL levels above it.
package grid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-trading-assistant-go/internal/accounts"
	"ai-trading-assistant-go/internal/execution"
	"ai-trading-assistant-go/internal/models"
	"ai-trading-assistant-go/internal/prediction"
	"ai-trading-assistant-go/internal/prices"
	"ai-trading-assistant-go/internal/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MinGridCount = 2
	MaxGridCount = 100
)

var (
	ErrNotFound = errors.New("Bot not found or access denied")
	ErrInactive = errors.New("Grid bot is not active")
)

// OrderRouter executes bot orders.
type OrderRouter interface {
	ExecuteMarketOrder(ctx context.Context, req execution.OrderRequest) (*execution.Result, error)
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

// CreateRequest describes a new grid bot.
type CreateRequest struct {
	Symbol            string   `json:"symbol"`
	QuoteCurrency     string   `json:"quote_currency"`
	LowerPrice        float64  `json:"lower_price"`
	UpperPrice        float64  `json:"upper_price"`
	GridCount         int      `json:"grid_count"`
	GridType          string   `json:"grid_type"`
	Investment        float64  `json:"investment"`
	TrailingUp        bool     `json:"trailing_up"`
	GridTriggerPrice  *float64 `json:"grid_trigger_price"`
	TakeProfitPct     *float64 `json:"take_profit_pct"`
	StopLossPrice     *float64 `json:"stop_loss_price"`
	SellAllOnStop     bool     `json:"sell_all_on_stop"`
	ExchangeAccountID *uint    `json:"exchange_account_id"`
}

// CreateResult is the created bot and the balance left after the investment.
type CreateResult struct {
	Bot        *models.GridBot `json:"bot"`
	NewBalance float64         `json:"new_balance"`
}

// ExecutedLevel is a level filled during a run.
type ExecutedLevel struct {
	LevelID uint              `json:"level_id"`
	Price   float64           `json:"level_price"`
	Side    string            `json:"type"`
	Order   *execution.Result `json:"order"`
}

// RunResult is the outcome of one grid cycle.
type RunResult struct {
	Success        bool            `json:"success"`
	BotID          uint            `json:"bot_id"`
	CurrentPrice   float64         `json:"current_price"`
	ExecutedCount  int             `json:"executed_count"`
	ExecutedLevels []ExecutedLevel `json:"executed_levels"`
	Mode           string          `json:"mode"`
	Paused         bool            `json:"paused,omitempty"`
	Stopped        bool            `json:"stopped,omitempty"`
	Reason         string          `json:"reason,omitempty"`
}

// Service manages grid bots.
type Service struct {
	db     *gorm.DB
	router OrderRouter
	prices PriceSource
	trend  TrendSource
	logger *zap.Logger
}

// NewService creates a grid bot Service.
func NewService(db *gorm.DB, router OrderRouter, priceSource PriceSource, trend TrendSource, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		router: router,
		prices: priceSource,
		trend:  trend,
		logger: logger.Named("grid"),
	}
}

func validate(req *CreateRequest) error {
	symbol, err := validation.Symbol(prices.Normalize(req.Symbol))
	if err != nil {
		return err
	}
	req.Symbol = symbol
	if req.QuoteCurrency == "" {
		req.QuoteCurrency = "USDT"
	}
	if req.GridType == "" {
		req.GridType = models.GridTypeArithmetic
	}

	switch {
	case req.GridCount < MinGridCount:
		return validation.Errorf("Grid count must be at least 2")
	case req.GridCount > MaxGridCount:
		return validation.Errorf("Grid count too large (max 100)")
	case req.LowerPrice <= 0 || req.UpperPrice <= 0:
		return validation.Errorf("Prices must be positive")
	case req.UpperPrice <= req.LowerPrice:
		return validation.Errorf("Upper price must be greater than lower price")
	case req.Investment <= 0:
		return validation.Errorf("Investment amount must be positive")
	case req.GridType != models.GridTypeArithmetic && req.GridType != models.GridTypeGeometric:
		return validation.Errorf("Grid type must be ARITHMETIC or GEOMETRIC")
	case req.GridTriggerPrice != nil && *req.GridTriggerPrice <= 0:
		return validation.Errorf("Trigger price must be positive")
	case req.TakeProfitPct != nil && (*req.TakeProfitPct <= 0 || *req.TakeProfitPct > 1000):
		return validation.Errorf("Take profit %% must be between 0 and 1000")
	case req.StopLossPrice != nil && *req.StopLossPrice <= 0:
		return validation.Errorf("Stop loss price must be positive")
	}
	return nil
}

// Create validates the request, deducts the investment and stores the bot with its levels.
func (s *Service) Create(ctx context.Context, userID uint, req CreateRequest) (*CreateResult, error) {
	if err := validate(&req); err != nil {
		return nil, err
	}

	bot := &models.GridBot{
		UserID:            userID,
		Symbol:            req.Symbol,
		QuoteCurrency:     req.QuoteCurrency,
		LowerPrice:        req.LowerPrice,
		UpperPrice:        req.UpperPrice,
		GridCount:         req.GridCount,
		GridType:          req.GridType,
		Investment:        req.Investment,
		TrailingUp:        req.TrailingUp,
		GridTriggerPrice:  req.GridTriggerPrice,
		TakeProfitPct:     req.TakeProfitPct,
		StopLossPrice:     req.StopLossPrice,
		SellAllOnStop:     req.SellAllOnStop,
		ExchangeAccountID: req.ExchangeAccountID,
		IsActive:          true,
		Levels:            CalculateLevels(req.LowerPrice, req.UpperPrice, req.GridCount, req.GridType),
	}

	var newBalance decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return validation.Errorf("User not found")
			}
			return fmt.Errorf("failed to load user: %w", err)
		}
		balance := decimal.NewFromFloat(user.Balance)
		investment := decimal.NewFromFloat(req.Investment)
		if balance.LessThan(investment) {
			return validation.Errorf("Insufficient balance. Required: $%s, Available: $%s",
				investment.StringFixed(2), balance.StringFixed(2))
		}
		newBalance = balance.Sub(investment)
		if err := tx.Model(&user).Update("balance", newBalance.InexactFloat64()).Error; err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}
		if err := tx.Create(bot).Error; err != nil {
			return fmt.Errorf("failed to create grid bot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Grid bot created",
		zap.Uint("bot_id", bot.ID),
		zap.Uint("user_id", userID),
		zap.String("symbol", bot.Symbol),
		zap.String("grid_type", bot.GridType),
		zap.Int("grid_count", bot.GridCount),
		zap.Float64("investment", bot.Investment),
	)
	return &CreateResult{Bot: bot, NewBalance: newBalance.InexactFloat64()}, nil
}

// List returns the user's grid bots, newest first.
func (s *Service) List(ctx context.Context, userID uint) ([]models.GridBot, error) {
	var bots []models.GridBot
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&bots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list grid bots: %w", err)
	}
	return bots, nil
}

// Active returns every running grid bot that is linked to an exchange account.
func (s *Service) Active(ctx context.Context) ([]models.GridBot, error) {
	var bots []models.GridBot
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND exchange_account_id IS NOT NULL", true).
		Order("id").
		Find(&bots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active grid bots: %w", err)
	}
	return bots, nil
}

// Get returns a bot owned by the user.
func (s *Service) Get(ctx context.Context, id, userID uint) (*models.GridBot, error) {
	return s.get(s.db.WithContext(ctx), id, userID)
}

func (s *Service) get(db *gorm.DB, id, userID uint) (*models.GridBot, error) {
	var bot models.GridBot
	err := db.Where("id = ? AND user_id = ?", id, userID).First(&bot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load grid bot: %w", err)
	}
	return &bot, nil
}

// LinkAccount attaches an active exchange account of the user to a bot that has
// none, which also makes the bot eligible for scheduled runs. A bot that is
// already linked keeps its account.
func (s *Service) LinkAccount(ctx context.Context, id, userID, accountID uint) (*models.GridBot, error) {
	db := s.db.WithContext(ctx)
	bot, err := s.get(db, id, userID)
	if err != nil {
		return nil, err
	}

	var n int64
	err = db.Model(&models.ExchangeAccount{}).
		Where("id = ? AND user_id = ? AND is_active = ?", accountID, userID, true).
		Count(&n).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check exchange account: %w", err)
	}
	if n == 0 {
		return nil, accounts.ErrNotFound
	}
	if bot.ExchangeAccountID != nil {
		return bot, nil
	}

	if err := db.Model(bot).Update("exchange_account_id", accountID).Error; err != nil {
		return nil, fmt.Errorf("failed to link exchange account: %w", err)
	}
	bot.ExchangeAccountID = &accountID
	s.logger.Info("Exchange account linked to grid bot", zap.Uint("bot_id", bot.ID), zap.Uint("account_id", accountID))
	return bot, nil
}

// Levels returns the bot's levels ordered from the lowest price.
func (s *Service) Levels(ctx context.Context, id, userID uint) ([]models.GridLevel, error) {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.levels(s.db.WithContext(ctx), id)
}

func (s *Service) levels(db *gorm.DB, id uint) ([]models.GridLevel, error) {
	var levels []models.GridLevel
	if err := db.Where("grid_bot_id = ?", id).Order("level_index").Find(&levels).Error; err != nil {
		return nil, fmt.Errorf("failed to load grid levels: %w", err)
	}
	return levels, nil
}

// Stats summarises the bot's level fills.
func (s *Service) Stats(ctx context.Context, id, userID uint) (*Stats, error) {
	levels, err := s.Levels(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	stats := Summarize(levels)
	return &stats, nil
}

// Stop deactivates the bot and returns its investment to the user's balance.
func (s *Service) Stop(ctx context.Context, id, userID uint) (float64, error) {
	var refund float64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bot, err := s.get(tx, id, userID)
		if err != nil {
			return err
		}
		if !bot.IsActive {
			return ErrInactive
		}
		refund = bot.Investment
		return deactivate(tx, bot)
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("Grid bot stopped", zap.Uint("bot_id", id), zap.Float64("returned_investment", refund))
	return refund, nil
}

// Delete removes the bot and its levels. A running bot is refunded first.
func (s *Service) Delete(ctx context.Context, id, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bot, err := s.get(tx, id, userID)
		if err != nil {
			return err
		}
		if bot.IsActive {
			if err := deactivate(tx, bot); err != nil {
				return err
			}
		}
		if err := tx.Where("grid_bot_id = ?", id).Delete(&models.GridLevel{}).Error; err != nil {
			return fmt.Errorf("failed to delete grid levels: %w", err)
		}
		if err := tx.Delete(bot).Error; err != nil {
			return fmt.Errorf("failed to delete grid bot: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("Grid bot deleted", zap.Uint("bot_id", id), zap.Uint("user_id", userID))
	return nil
}

// deactivate marks the bot stopped and credits the investment back.
func deactivate(tx *gorm.DB, bot *models.GridBot) error {
	if err := tx.Model(bot).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("failed to stop grid bot: %w", err)
	}
	err := tx.Model(&models.User{}).
		Where("id = ?", bot.UserID).
		Update("balance", gorm.Expr("balance + ?", bot.Investment)).Error
	if err != nil {
		return fmt.Errorf("failed to refund investment: %w", err)
	}
	return nil
}

// RunOnce executes every level the current price has reached.
// A zero amountPerOrder trades investment/grid_count per level.
func (s *Service) RunOnce(ctx context.Context, id, userID uint, amountPerOrder float64) (*RunResult, error) {
	bot, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !bot.IsActive {
		return nil, ErrInactive
	}
	if bot.ExchangeAccountID == nil {
		return nil, validation.Errorf("Grid bot has no exchange account linked")
	}
	if amountPerOrder <= 0 {
		amountPerOrder = bot.Investment / float64(bot.GridCount)
	}

	price, err := s.prices.LatestPrice(ctx, bot.Symbol)
	if errors.Is(err, prices.ErrNoPriceData) {
		return nil, validation.Errorf("No price available for %s", bot.Symbol)
	}
	if err != nil {
		return nil, err
	}

	l := s.logger.With(zap.Uint("bot_id", bot.ID), zap.String("symbol", bot.Symbol), zap.Float64("price", price))
	result := &RunResult{
		Success:        true,
		BotID:          bot.ID,
		CurrentPrice:   price,
		ExecutedLevels: []ExecutedLevel{},
		Mode:           s.router.Mode(),
	}

	if bot.StopLossPrice != nil && price <= *bot.StopLossPrice {
		return s.halt(ctx, bot, result, fmt.Sprintf("Stop loss triggered at $%.2f", price), l)
	}

	levels, err := s.levels(s.db.WithContext(ctx), bot.ID)
	if err != nil {
		return nil, err
	}
	if bot.TakeProfitPct != nil {
		if gain, ok := unrealisedPct(levels, price); ok && gain >= *bot.TakeProfitPct {
			return s.halt(ctx, bot, result, fmt.Sprintf("Take profit reached (%.2f%%)", gain), l)
		}
	}

	decision := prediction.ShouldGridExecute(s.trend.EMAContext(ctx, bot.Symbol))
	if !decision.Execute {
		l.Info("Grid cycle paused", zap.String("reason", decision.Reason))
		result.Paused = true
		result.Reason = decision.Reason
		return result, nil
	}

	for _, level := range levels {
		if !shouldFill(level, price) {
			continue
		}
		order, err := s.router.ExecuteMarketOrder(ctx, execution.OrderRequest{
			UserID:    bot.UserID,
			AccountID: *bot.ExchangeAccountID,
			Symbol:    bot.Symbol,
			Side:      level.Side,
			Amount:    amountPerOrder,
			Source:    execution.GridSource(bot.ID),
		})
		if err != nil {
			l.Warn("Grid level order failed", zap.Int("level", level.LevelIndex), zap.Error(err))
			continue
		}

		now := time.Now()
		err = s.db.WithContext(ctx).Model(&models.GridLevel{}).
			Where("id = ?", level.ID).
			Updates(map[string]interface{}{"is_filled": true, "filled_at": now}).Error
		if err != nil {
			return nil, fmt.Errorf("failed to mark grid level filled: %w", err)
		}
		result.ExecutedLevels = append(result.ExecutedLevels, ExecutedLevel{
			LevelID: level.ID,
			Price:   level.Price,
			Side:    level.Side,
			Order:   order,
		})
	}
	result.ExecutedCount = len(result.ExecutedLevels)

	if result.ExecutedCount > 0 {
		l.Info("Grid cycle executed", zap.Int("executed", result.ExecutedCount), zap.String("mode", result.Mode))
	}
	return result, nil
}

func (s *Service) halt(ctx context.Context, bot *models.GridBot, result *RunResult, reason string, l *zap.Logger) (*RunResult, error) {
	if _, err := s.Stop(ctx, bot.ID, bot.UserID); err != nil {
		return nil, err
	}
	l.Warn("Grid bot halted", zap.String("reason", reason))
	result.Stopped = true
	result.Reason = reason
	return result, nil
}
