package portfolioai

import (
	"context"

	"ai-trading-assistant-go/internal/accounts"
	"ai-trading-assistant-go/internal/execution"
	"ai-trading-assistant-go/internal/paper"
	"ai-trading-assistant-go/internal/prices"
	"ai-trading-assistant-go/internal/validation"
	"go.uber.org/zap"
)

const (
	SourcePaper    = "paper"
	SourceExchange = "exchange"
)

// PaperBook provides the user's paper holdings.
type PaperBook interface {
	Portfolio(ctx context.Context, userID uint) (*paper.Portfolio, error)
}

// ExchangeBook provides the live holdings of an exchange account.
type ExchangeBook interface {
	Portfolio(ctx context.Context, id, userID uint) (*accounts.Portfolio, error)
}

// PriceSource provides the newest stored closes.
type PriceSource interface {
	LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// OrderRouter executes rebalancing orders.
type OrderRouter interface {
	ExecuteMarketOrder(ctx context.Context, req execution.OrderRequest) (*execution.Result, error)
}

var (
	_ PaperBook    = (*paper.Service)(nil)
	_ ExchangeBook = (*accounts.Service)(nil)
	_ PriceSource  = (*prices.Store)(nil)
	_ OrderRouter  = (*execution.Router)(nil)
)

// ExecutedSuggestion pairs a suggestion with its order outcome.
type ExecutedSuggestion struct {
	Trade   Suggestion        `json:"trade"`
	Result  *execution.Result `json:"result"`
	Success bool              `json:"success"`
}

// Report summarises an executed rebalance.
type Report struct {
	TotalTrades int                  `json:"total_trades"`
	Successful  int                  `json:"successful"`
	Failed      int                  `json:"failed"`
	Results     []ExecutedSuggestion `json:"results"`
}

// Service analyses portfolios and executes rebalancing trades.
type Service struct {
	paper    PaperBook
	exchange ExchangeBook
	prices   PriceSource
	router   OrderRouter
	targets  []Target
	logger   *zap.Logger
}

// NewService creates a rebalancing Service using DefaultTargets.
func NewService(paperBook PaperBook, exchangeBook ExchangeBook, priceSource PriceSource, router OrderRouter, logger *zap.Logger) *Service {
	return &Service{
		paper:    paperBook,
		exchange: exchangeBook,
		prices:   priceSource,
		router:   router,
		targets:  DefaultTargets,
		logger:   logger.Named("portfolioai"),
	}
}

// Analyze inspects the paper portfolio, or the exchange account when accountID is set.
func (s *Service) Analyze(ctx context.Context, userID uint, accountID *uint) (*Analysis, error) {
	var (
		balances = map[string]float64{}
		quotes   = map[string]float64{}
		source   = SourcePaper
	)

	if accountID != nil {
		source = SourceExchange
		p, err := s.exchange.Portfolio(ctx, *accountID, userID)
		if err != nil {
			return nil, err
		}
		for _, b := range p.Balances {
			balances[b.Asset] += b.Total
			if b.PriceUSD > 0 {
				quotes[b.Asset] = b.PriceUSD
			}
		}
	} else {
		p, err := s.paper.Portfolio(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, pos := range p.Positions {
			asset := prices.BaseAsset(pos.Symbol)
			balances[asset] += pos.Quantity
			if pos.CurrentPrice > 0 {
				quotes[asset] = pos.CurrentPrice
			}
		}
		balances[CashAsset] += p.Cash
	}

	if err := s.fillTargetPrices(ctx, quotes); err != nil {
		return nil, err
	}

	a, err := Analyze(balances, quotes, s.targets)
	if err != nil {
		return nil, err
	}
	a.Source = source

	s.logger.Debug("Portfolio analysed",
		zap.Uint("user_id", userID),
		zap.String("source", source),
		zap.Float64("total_value", a.TotalValue),
		zap.Int("suggestions", len(a.Suggestions)),
	)
	return a, nil
}

// fillTargetPrices looks up stored prices for target assets the holdings did not price.
func (s *Service) fillTargetPrices(ctx context.Context, quotes map[string]float64) error {
	var missing []string
	for _, t := range s.targets {
		if _, ok := quotes[t.Asset]; !ok {
			missing = append(missing, t.Asset+CashAsset)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	latest, err := s.prices.LatestPrices(ctx, missing)
	if err != nil {
		return err
	}
	for symbol, price := range latest {
		quotes[prices.BaseAsset(symbol)] = price
	}
	return nil
}

// Execute routes each suggestion through the exchange account. A failed order
// is counted and the remaining suggestions still run.
func (s *Service) Execute(ctx context.Context, userID, accountID uint, trades []Suggestion) (*Report, error) {
	if len(trades) == 0 {
		return nil, validation.Errorf("No trades to execute")
	}

	report := &Report{TotalTrades: len(trades)}
	for _, t := range trades {
		res, err := s.router.ExecuteMarketOrder(ctx, execution.OrderRequest{
			UserID:    userID,
			AccountID: accountID,
			Symbol:    t.Symbol,
			Side:      t.Action,
			Amount:    t.Amount,
			Source:    execution.SourcePortfolioAI,
		})
		ok := err == nil && res != nil && res.Success
		if ok {
			report.Successful++
		} else {
			report.Failed++
			if res == nil && err != nil {
				res = &execution.Result{Success: false, Error: err.Error(), Symbol: t.Symbol, Side: t.Action, Amount: t.Amount}
			}
			s.logger.Warn("Rebalancing trade failed",
				zap.String("symbol", t.Symbol),
				zap.String("action", t.Action),
				zap.Error(err),
			)
		}
		report.Results = append(report.Results, ExecutedSuggestion{Trade: t, Result: res, Success: ok})
	}

	s.logger.Info("Portfolio rebalanced",
		zap.Uint("user_id", userID),
		zap.Uint("account_id", accountID),
		zap.Int("successful", report.Successful),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
