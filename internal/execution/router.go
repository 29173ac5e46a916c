// Package execution routes bot, AI and manual orders to an exchange account,
// either simulated or live, and keeps the audit trail of every attempt.
package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ai-trading-assistant-go/internal/accounts"
	"ai-trading-assistant-go/internal/config"
	"ai-trading-assistant-go/internal/exchange"
	"ai-trading-assistant-go/internal/models"
	"ai-trading-assistant-go/internal/prediction"
	"ai-trading-assistant-go/internal/prices"
	"ai-trading-assistant-go/internal/validation"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Execution modes.
const (
	ModeSimulated = "SIMULATED"
	ModeLive      = "LIVE"
)

// Trade sources recorded on every log.
const (
	SourceManual       = "manual"
	SourceAIPrediction = "ai_prediction"
	SourcePortfolioAI  = "portfolio_ai_rebalancing"
)

// ErrOrderRejected is returned when a live order fails at the exchange.
var ErrOrderRejected = errors.New("Order execution failed")

// GridSource is the trade source of a grid bot.
func GridSource(botID uint) string { return fmt.Sprintf("grid_bot_%d", botID) }

// DCASource is the trade source of a DCA bot.
func DCASource(botID uint) string { return fmt.Sprintf("dca_bot_%d", botID) }

// AccountResolver loads exchange accounts and their clients.
type AccountResolver interface {
	Get(ctx context.Context, id, userID uint) (*accounts.Account, error)
	Client(ctx context.Context, id, userID uint) (exchange.Client, *accounts.Account, error)
}

// PriceSource provides the last stored close of a symbol.
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// Predictor forecasts the next move of a symbol.
type Predictor interface {
	Predict(ctx context.Context, symbol string) (*prediction.Result, error)
}

var (
	_ AccountResolver = (*accounts.Service)(nil)
	_ PriceSource     = (*prices.Store)(nil)
	_ Predictor       = (*prediction.Service)(nil)
)

// OrderRequest is a market order for an exchange account.
type OrderRequest struct {
	UserID    uint
	AccountID uint
	Symbol    string
	Side      string
	Amount    float64
	Source    string
}

// Result is the outcome of a routed order.
type Result struct {
	Success  bool    `json:"success"`
	Mode     string  `json:"mode"`
	Message  string  `json:"message,omitempty"`
	Error    string  `json:"error,omitempty"`
	LogID    uint    `json:"log_id,omitempty"`
	OrderID  string  `json:"order_id,omitempty"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Amount   float64 `json:"amount"`
	Price    float64 `json:"price"`
	Total    float64 `json:"total"`
	Filled   float64 `json:"filled,omitempty"`
	Status   string  `json:"status"`
	Exchange string  `json:"exchange,omitempty"`
}

// Router sends orders to exchange accounts and logs them.
type Router struct {
	db            *gorm.DB
	accounts      AccountResolver
	prices        PriceSource
	predictor     Predictor
	live          bool
	fallbackPrice float64
	ids           *orderIDs
	logger        *zap.Logger
}

// NewRouter creates a Router. Orders are simulated unless live trading is enabled in cfg.
func NewRouter(db *gorm.DB, accts AccountResolver, priceSource PriceSource, predictor Predictor, cfg config.Trading, logger *zap.Logger) *Router {
	fallback := cfg.FallbackPrice
	if fallback <= 0 {
		fallback = 45000
	}
	return &Router{
		db:            db,
		accounts:      accts,
		prices:        priceSource,
		predictor:     predictor,
		live:          cfg.LiveTradingEnabled,
		fallbackPrice: fallback,
		ids:           newOrderIDs(),
		logger:        logger.Named("execution"),
	}
}

// Mode reports the mode new orders are executed in.
func (r *Router) Mode() string {
	if r.live {
		return ModeLive
	}
	return ModeSimulated
}

// ExecuteMarketOrder routes one market order. A failed live order is logged
// with status ERROR and returned together with ErrOrderRejected.
func (r *Router) ExecuteMarketOrder(ctx context.Context, req OrderRequest) (*Result, error) {
	symbol, err := validation.Symbol(prices.Normalize(req.Symbol))
	if err != nil {
		return nil, err
	}
	side, err := validation.Side(req.Side)
	if err != nil {
		return nil, err
	}
	if err := validation.Quantity(req.Amount); err != nil {
		return nil, err
	}
	if req.Source == "" {
		req.Source = SourceManual
	}
	req.Symbol, req.Side = symbol, side

	l := r.logger.With(
		zap.Uint("user_id", req.UserID),
		zap.Uint("account_id", req.AccountID),
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.Float64("amount", req.Amount),
		zap.String("source", req.Source),
		zap.String("mode", r.Mode()),
	)

	if !r.live {
		account, err := r.accounts.Get(ctx, req.AccountID, req.UserID)
		if err != nil {
			return nil, err
		}
		return r.simulate(ctx, req, account, l)
	}

	client, account, err := r.accounts.Client(ctx, req.AccountID, req.UserID)
	if err != nil {
		if account == nil {
			return nil, err
		}
		return r.reject(ctx, req, account, err, l)
	}

	order, err := client.PlaceMarketOrder(ctx, prices.Pair(symbol), side, req.Amount)
	if err != nil {
		return r.reject(ctx, req, account, err, l)
	}

	filled := order.Filled
	if filled <= 0 {
		filled = req.Amount
	}
	status := strings.ToUpper(order.Status)
	if status == "" {
		status = models.TradeStatusFilled
	}
	raw := r.rawJSON(order)
	entry := &models.ExchangeTradeLog{
		UserID:            req.UserID,
		ExchangeAccountID: req.AccountID,
		Symbol:            symbol,
		Side:              side,
		Amount:            filled,
		Price:             order.AvgPrice,
		Status:            status,
		ExchangeOrderID:   order.ID,
		RawResponse:       raw,
		TradeSource:       req.Source,
		Fee:               order.Fee,
		FeeCurrency:       order.FeeCurrency,
	}
	if err := r.log(ctx, entry); err != nil {
		return nil, err
	}

	l.Info("Live order executed", zap.String("order_id", order.ID), zap.Float64("price", order.AvgPrice))
	return &Result{
		Success:  true,
		Mode:     ModeLive,
		Message:  fmt.Sprintf("Order executed: %s %g %s", side, req.Amount, prices.Pair(symbol)),
		LogID:    entry.ID,
		OrderID:  order.ID,
		Symbol:   symbol,
		Side:     side,
		Amount:   req.Amount,
		Price:    order.AvgPrice,
		Total:    entry.TotalValue,
		Filled:   filled,
		Status:   status,
		Exchange: account.ExchangeName,
	}, nil
}

func (r *Router) simulate(ctx context.Context, req OrderRequest, account *accounts.Account, l *zap.Logger) (*Result, error) {
	price, err := r.prices.LatestPrice(ctx, req.Symbol)
	if err != nil {
		if !errors.Is(err, prices.ErrNoPriceData) {
			return nil, err
		}
		l.Warn("No stored price, simulating at fallback price", zap.Float64("price", r.fallbackPrice))
		price = r.fallbackPrice
	}

	orderID, err := r.ids.Simulated()
	if err != nil {
		return nil, fmt.Errorf("failed to generate order id: %w", err)
	}
	raw := r.rawJSON(map[string]string{
		"mode":          "simulation",
		"message":       "Order simulated for demonstration",
		"would_execute": fmt.Sprintf("%s %g %s @ $%.2f", req.Side, req.Amount, prices.Pair(req.Symbol), price),
	})

	entry := &models.ExchangeTradeLog{
		UserID:            req.UserID,
		ExchangeAccountID: req.AccountID,
		Symbol:            req.Symbol,
		Side:              req.Side,
		Amount:            req.Amount,
		Price:             price,
		Status:            models.TradeStatusSimulated,
		ExchangeOrderID:   orderID,
		RawResponse:       raw,
		TradeSource:       req.Source,
	}
	if err := r.log(ctx, entry); err != nil {
		return nil, err
	}

	l.Info("Order simulated", zap.String("order_id", orderID), zap.Float64("price", price))
	return &Result{
		Success:  true,
		Mode:     ModeSimulated,
		Message:  fmt.Sprintf("Order simulated: %s %g %s @ $%.2f", req.Side, req.Amount, prices.Pair(req.Symbol), price),
		LogID:    entry.ID,
		OrderID:  orderID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Amount:   req.Amount,
		Price:    price,
		Total:    entry.TotalValue,
		Status:   models.TradeStatusSimulated,
		Exchange: account.ExchangeName,
	}, nil
}

func (r *Router) reject(ctx context.Context, req OrderRequest, account *accounts.Account, cause error, l *zap.Logger) (*Result, error) {
	l.Error("Live order failed", zap.Error(cause))
	entry := &models.ExchangeTradeLog{
		UserID:            req.UserID,
		ExchangeAccountID: req.AccountID,
		Symbol:            req.Symbol,
		Side:              req.Side,
		Amount:            req.Amount,
		Status:            models.TradeStatusError,
		TradeSource:       req.Source,
		ErrorMessage:      "Exchange rejected the order",
	}
	if err := r.log(ctx, entry); err != nil {
		return nil, err
	}
	return &Result{
		Success:  false,
		Mode:     ModeLive,
		Error:    ErrOrderRejected.Error(),
		LogID:    entry.ID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Amount:   req.Amount,
		Status:   models.TradeStatusError,
		Exchange: account.ExchangeName,
	}, fmt.Errorf("%w: %v", ErrOrderRejected, cause)
}

// log stores a trade log. total_value is amount*price when the price is known.
func (r *Router) log(ctx context.Context, entry *models.ExchangeTradeLog) error {
	if entry.Price > 0 {
		entry.TotalValue = entry.Amount * entry.Price
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to log trade: %w", err)
	}
	return nil
}

// AIPrediction is the part of a prediction attached to an AI trade.
type AIPrediction struct {
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
}

// AITradeResult is an order placed on the model's advice.
type AITradeResult struct {
	*Result
	Prediction AIPrediction `json:"prediction"`
}

// ExecuteAITrade buys when the model predicts UP and sells otherwise.
func (r *Router) ExecuteAITrade(ctx context.Context, userID, accountID uint, symbol string, amount float64) (*AITradeResult, error) {
	pred, err := r.predictor.Predict(ctx, prices.Normalize(symbol))
	if err != nil {
		return nil, fmt.Errorf("Failed to get AI prediction: %w", err)
	}

	side := models.SideSell
	if pred.Direction == prediction.DirectionUp {
		side = models.SideBuy
	}

	res, err := r.ExecuteMarketOrder(ctx, OrderRequest{
		UserID:    userID,
		AccountID: accountID,
		Symbol:    symbol,
		Side:      side,
		Amount:    amount,
		Source:    SourceAIPrediction,
	})
	if res == nil {
		return nil, err
	}
	return &AITradeResult{
		Result:     res,
		Prediction: AIPrediction{Direction: pred.Direction, Confidence: pred.ConfidencePct},
	}, err
}

// rawJSON encodes v for the audit log. An unencodable payload is replaced by
// its encoding error so the order itself is still recorded.
func (r *Router) rawJSON(v interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		r.logger.Warn("Failed to encode raw order response", zap.Error(err))
		raw, _ = json.Marshal(map[string]string{"encode_error": err.Error()})
	}
	return raw
}
