// Package paper is the simulated trading ledger: a cash balance, positions and trade history per user.
package paper

import (
	"context"
	"errors"
	"fmt"

	"ai-trading-assistant-go/internal/models"
	"ai-trading-assistant-go/internal/prices"
	"ai-trading-assistant-go/internal/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrUserNotFound is returned when the trading user does not exist.
var ErrUserNotFound = errors.New("User not found")

const defaultTradesLimit = 20

// PriceSource provides the newest stored close of symbols.
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
	LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

var _ PriceSource = (*prices.Store)(nil)

// TradeResult is the outcome of a paper trade.
type TradeResult struct {
	Message     string  `json:"message"`
	TradeID     uint    `json:"trade_id"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
	TotalAmount float64 `json:"total_amount"`
	NewBalance  float64 `json:"new_balance"`
}

// PositionValue is a position marked to the latest price.
type PositionValue struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	CurrentPrice  float64 `json:"current_price"`
	TotalValue    float64 `json:"total_value"`
	Cost          float64 `json:"cost"`
	ProfitLoss    float64 `json:"profit_loss"`
	ProfitLossPct float64 `json:"profit_loss_pct"`
}

// Portfolio summarises the user's paper holdings.
type Portfolio struct {
	Positions          []PositionValue `json:"positions"`
	TotalValue         float64         `json:"total_value"`
	TotalCost          float64         `json:"total_cost"`
	TotalProfitLoss    float64         `json:"total_profit_loss"`
	TotalProfitLossPct float64         `json:"total_profit_loss_pct"`
	Cash               float64         `json:"cash"`
	Equity             float64         `json:"equity"`
}

// Service executes paper trades.
type Service struct {
	db     *gorm.DB
	prices PriceSource
	logger *zap.Logger
}

// NewService creates a paper trading Service.
func NewService(db *gorm.DB, priceSource PriceSource, logger *zap.Logger) *Service {
	return &Service{db: db, prices: priceSource, logger: logger.Named("paper")}
}

// ExecuteTrade validates and books a trade. A zero price means the latest stored close.
// The balance, the trade row and the position change commit together.
func (s *Service) ExecuteTrade(ctx context.Context, userID uint, symbol, side string, quantity, price float64) (*TradeResult, error) {
	symbol, err := validation.Symbol(prices.Normalize(symbol))
	if err != nil {
		return nil, err
	}
	if price == 0 {
		price, err = s.prices.LatestPrice(ctx, symbol)
		if errors.Is(err, prices.ErrNoPriceData) {
			return nil, validation.Errorf("No price available for %s", symbol)
		}
		if err != nil {
			return nil, err
		}
	}
	symbol, side, err = validation.Trade(symbol, side, quantity, price)
	if err != nil {
		return nil, err
	}

	qty := decimal.NewFromFloat(quantity)
	px := decimal.NewFromFloat(price)
	cost := qty.Mul(px)

	result := &TradeResult{
		Message:     fmt.Sprintf("%s order executed successfully", side),
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		Price:       price,
		TotalAmount: cost.InexactFloat64(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to load user: %w", err)
		}
		balance := decimal.NewFromFloat(user.Balance)

		var pos models.Position
		err := tx.Where("user_id = ? AND symbol = ?", userID, symbol).First(&pos).Error
		hasPosition := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load position: %w", err)
		}

		var newBalance decimal.Decimal
		switch side {
		case models.SideBuy:
			if balance.LessThan(cost) {
				return validation.Errorf("Insufficient balance. Required: $%s, Available: $%s",
					cost.StringFixed(2), balance.StringFixed(2))
			}
			newBalance = balance.Sub(cost)
			if err := applyBuy(tx, &pos, hasPosition, userID, symbol, qty, px); err != nil {
				return err
			}
		case models.SideSell:
			held := decimal.Zero
			if hasPosition {
				held = decimal.NewFromFloat(pos.Quantity)
			}
			if held.LessThan(qty) {
				return validation.Errorf("Insufficient %s. Required: %s, Available: %s",
					symbol, qty.String(), held.String())
			}
			newBalance = balance.Add(cost)
			if err := applySell(tx, &pos, held.Sub(qty)); err != nil {
				return err
			}
		}

		if err := tx.Model(&user).Update("balance", newBalance.InexactFloat64()).Error; err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		trade := models.Trade{
			UserID:      userID,
			Symbol:      symbol,
			Side:        side,
			Quantity:    quantity,
			Price:       price,
			TotalAmount: result.TotalAmount,
		}
		if err := tx.Create(&trade).Error; err != nil {
			return fmt.Errorf("failed to record trade: %w", err)
		}

		result.TradeID = trade.ID
		result.NewBalance = newBalance.InexactFloat64()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Paper trade executed",
		zap.Uint("user_id", userID),
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.Float64("quantity", quantity),
		zap.Float64("price", price),
		zap.Float64("new_balance", result.NewBalance),
	)
	return result, nil
}

// applyBuy adds to the position and moves its average price to the weighted mean.
func applyBuy(tx *gorm.DB, pos *models.Position, exists bool, userID uint, symbol string, qty, px decimal.Decimal) error {
	if !exists {
		*pos = models.Position{UserID: userID, Symbol: symbol, Quantity: qty.InexactFloat64(), AvgPrice: px.InexactFloat64()}
		if err := tx.Create(pos).Error; err != nil {
			return fmt.Errorf("failed to open position: %w", err)
		}
		return nil
	}

	oldQty := decimal.NewFromFloat(pos.Quantity)
	oldAvg := decimal.NewFromFloat(pos.AvgPrice)
	newQty := oldQty.Add(qty)
	newAvg := oldQty.Mul(oldAvg).Add(qty.Mul(px)).Div(newQty)

	err := tx.Model(pos).Updates(map[string]interface{}{
		"quantity":  newQty.InexactFloat64(),
		"avg_price": newAvg.InexactFloat64(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	return nil
}

// applySell shrinks the position and removes it once nothing is left.
func applySell(tx *gorm.DB, pos *models.Position, remaining decimal.Decimal) error {
	if remaining.LessThanOrEqual(decimal.Zero) {
		if err := tx.Delete(pos).Error; err != nil {
			return fmt.Errorf("failed to close position: %w", err)
		}
		return nil
	}
	if err := tx.Model(pos).Update("quantity", remaining.InexactFloat64()).Error; err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	return nil
}

// Positions returns the user's open positions ordered by symbol.
func (s *Service) Positions(ctx context.Context, userID uint) ([]models.Position, error) {
	var positions []models.Position
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("symbol").Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	return positions, nil
}

// Portfolio marks every position to the latest stored close, falling back to its average price.
func (s *Service) Portfolio(ctx context.Context, userID uint) (*Portfolio, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	positions, err := s.Positions(ctx, userID)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		symbols = append(symbols, p.Symbol)
	}
	latest, err := s.prices.LatestPrices(ctx, symbols)
	if err != nil {
		return nil, err
	}
	return Value(positions, latest, user.Balance), nil
}

// Value marks positions to current prices. Symbols missing from current use their average price.
func Value(positions []models.Position, current map[string]float64, cash float64) *Portfolio {
	p := &Portfolio{Positions: make([]PositionValue, 0, len(positions)), Cash: cash}
	for _, pos := range positions {
		price, ok := current[pos.Symbol]
		if !ok {
			price = pos.AvgPrice
		}
		v := PositionValue{
			Symbol:       pos.Symbol,
			Quantity:     pos.Quantity,
			AveragePrice: pos.AvgPrice,
			CurrentPrice: price,
			TotalValue:   pos.Quantity * price,
			Cost:         pos.Quantity * pos.AvgPrice,
		}
		v.ProfitLoss = v.TotalValue - v.Cost
		if v.Cost > 0 {
			v.ProfitLossPct = v.ProfitLoss / v.Cost * 100
		}
		p.Positions = append(p.Positions, v)
		p.TotalValue += v.TotalValue
		p.TotalCost += v.Cost
	}
	p.TotalProfitLoss = p.TotalValue - p.TotalCost
	if p.TotalCost > 0 {
		p.TotalProfitLossPct = p.TotalProfitLoss / p.TotalCost * 100
	}
	p.Equity = p.Cash + p.TotalValue
	return p
}

// Trades returns the user's newest trades. limit defaults to 20.
func (s *Service) Trades(ctx context.Context, userID uint, limit int) ([]models.Trade, error) {
	if limit <= 0 {
		limit = defaultTradesLimit
	}
	var trades []models.Trade
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").Order("id desc").
		Limit(limit).
		Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}
	return trades, nil
}

// AllTrades returns every trade of the user, oldest first.
func (s *Service) AllTrades(ctx context.Context, userID uint) ([]models.Trade, error) {
	var trades []models.Trade
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}
	return trades, nil
}
