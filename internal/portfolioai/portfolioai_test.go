package portfolioai

import (
	"context"
	"errors"
	"testing"

	"ai-trading-assistant-go/internal/accounts"
	"ai-trading-assistant-go/internal/execution"
	"ai-trading-assistant-go/internal/models"
	"ai-trading-assistant-go/internal/paper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPaper struct {
	portfolio *paper.Portfolio
}

func (s stubPaper) Portfolio(context.Context, uint) (*paper.Portfolio, error) {
	return s.portfolio, nil
}

type stubExchange struct {
	portfolio *accounts.Portfolio
	err       error
}

func (s stubExchange) Portfolio(context.Context, uint, uint) (*accounts.Portfolio, error) {
	return s.portfolio, s.err
}

type stubPrices map[string]float64

func (s stubPrices) LatestPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, sym := range symbols {
		if p, ok := s[sym]; ok {
			out[sym] = p
		}
	}
	return out, nil
}

type MockRouter struct {
	mock.Mock
}

func (m *MockRouter) ExecuteMarketOrder(ctx context.Context, req execution.OrderRequest) (*execution.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*execution.Result)
	return res, args.Error(1)
}

func TestAnalyze(t *testing.T) {
	// Arrange
	balances := map[string]float64{"BTC": 1, "ETH": 2, "USDT": 8000, "DOGE": 0}
	quotes := map[string]float64{"BTC": 30000, "ETH": 1000, "BNB": 500}

	// Act
	a, err := Analyze(balances, quotes, DefaultTargets)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 40000.0, a.TotalValue)
	assert.Equal(t, 75.0, a.CurrentAllocation["BTC"])
	assert.Equal(t, 5.0, a.CurrentAllocation["ETH"])
	assert.NotContains(t, a.CurrentAllocation, "USDT")
	assert.Equal(t, 50.0, a.TargetAllocation["BTC"])
	assert.True(t, a.NeedsRebalancing)

	require.Len(t, a.Suggestions, 3)
	sell := a.Suggestions[0]
	assert.Equal(t, models.SideSell, sell.Action)
	assert.Equal(t, "BTC/USDT", sell.Symbol)
	assert.Equal(t, 0.333333, sell.Amount)
	assert.Equal(t, "Reduce BTC from 75.0% to 50.0%", sell.Reason)

	assert.Equal(t, models.SideBuy, a.Suggestions[1].Action)
	assert.Equal(t, "ETH", a.Suggestions[1].Asset)
	assert.Equal(t, 10.0, a.Suggestions[1].Amount)
	assert.Equal(t, "Increase ETH from 5.0% to 30.0%", a.Suggestions[1].Reason)
	assert.Equal(t, "BNB", a.Suggestions[2].Asset)
	assert.Equal(t, 8.0, a.Suggestions[2].Amount)
}

func TestAnalyze_Balanced(t *testing.T) {
	balances := map[string]float64{"BTC": 0.5, "ETH": 3, "BNB": 2, "SOL": 10}
	quotes := map[string]float64{"BTC": 100, "ETH": 10, "BNB": 5, "SOL": 1}

	a, err := Analyze(balances, quotes, DefaultTargets)

	require.NoError(t, err)
	assert.False(t, a.NeedsRebalancing)
	assert.Empty(t, a.Suggestions)
}

func TestAnalyze_Errors(t *testing.T) {
	_, err := Analyze(nil, nil, DefaultTargets)
	assert.EqualError(t, err, "Balances and prices required")

	_, err = Analyze(map[string]float64{"BTC": 0}, map[string]float64{"BTC": 1}, DefaultTargets)
	assert.EqualError(t, err, "Portfolio has no value")
}

func TestService_AnalyzePaper(t *testing.T) {
	book := stubPaper{&paper.Portfolio{
		Positions: []paper.PositionValue{
			{Symbol: "BTCUSDT", Quantity: 1, CurrentPrice: 30000},
			{Symbol: "ETHUSDT", Quantity: 2, CurrentPrice: 1000},
		},
		Cash: 8000,
	}}
	svc := NewService(book, stubExchange{}, stubPrices{"BNBUSDT": 500}, &MockRouter{}, zap.NewNop())

	a, err := svc.Analyze(context.Background(), 1, nil)

	require.NoError(t, err)
	assert.Equal(t, SourcePaper, a.Source)
	assert.Equal(t, 40000.0, a.TotalValue)
	assert.Len(t, a.Suggestions, 3)
}

func TestService_AnalyzeExchange(t *testing.T) {
	accountID := uint(4)
	book := stubExchange{portfolio: &accounts.Portfolio{Balances: []accounts.AssetBalance{
		{Asset: "BTC", Total: 3, PriceUSD: 100},
		{Asset: "USDT", Total: 100, PriceUSD: 1},
	}}}
	svc := NewService(stubPaper{}, book, stubPrices{}, &MockRouter{}, zap.NewNop())

	a, err := svc.Analyze(context.Background(), 1, &accountID)

	require.NoError(t, err)
	assert.Equal(t, SourceExchange, a.Source)
	assert.Equal(t, 400.0, a.TotalValue)
	require.Len(t, a.Suggestions, 1)
	assert.Equal(t, models.SideSell, a.Suggestions[0].Action)
	assert.Equal(t, 1.0, a.Suggestions[0].Amount)

	failing := NewService(stubPaper{}, stubExchange{err: accounts.ErrNotFound}, stubPrices{}, &MockRouter{}, zap.NewNop())
	_, err = failing.Analyze(context.Background(), 1, &accountID)
	assert.ErrorIs(t, err, accounts.ErrNotFound)
}

func TestService_Execute(t *testing.T) {
	// Arrange
	router := &MockRouter{}
	svc := NewService(stubPaper{}, stubExchange{}, stubPrices{}, router, zap.NewNop())
	trades := []Suggestion{
		{Action: models.SideSell, Symbol: "BTC/USDT", Amount: 0.1},
		{Action: models.SideBuy, Symbol: "ETH/USDT", Amount: 2},
	}
	router.On("ExecuteMarketOrder", mock.Anything, mock.MatchedBy(func(r execution.OrderRequest) bool {
		return r.Symbol == "BTC/USDT" && r.Source == execution.SourcePortfolioAI && r.AccountID == 9
	})).Return(&execution.Result{Success: true}, nil)
	router.On("ExecuteMarketOrder", mock.Anything, mock.MatchedBy(func(r execution.OrderRequest) bool {
		return r.Symbol == "ETH/USDT"
	})).Return(nil, errors.New("boom"))

	// Act
	report, err := svc.Execute(context.Background(), 1, 9, trades)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalTrades)
	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, 1, report.Failed)
	assert.True(t, report.Results[0].Success)
	assert.Equal(t, "boom", report.Results[1].Result.Error)

	_, err = svc.Execute(context.Background(), 1, 9, nil)
	assert.EqualError(t, err, "No trades to execute")
}
