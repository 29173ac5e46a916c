package testutil

import (
	"context"

	"ai-trading-assistant-go/internal/exchange"
	"github.com/stretchr/testify/mock"
)

// MockExchange is a mock implementation of exchange.Client.
type MockExchange struct {
	mock.Mock
}

var _ exchange.Client = (*MockExchange)(nil)

func (m *MockExchange) TestConnection(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockExchange) Balances(ctx context.Context) (map[string]exchange.Balance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]exchange.Balance), args.Error(1)
}

func (m *MockExchange) PlaceMarketOrder(ctx context.Context, symbol, side string, amount float64) (*exchange.Order, error) {
	args := m.Called(ctx, symbol, side, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exchange.Order), args.Error(1)
}

func (m *MockExchange) TickerPrices(ctx context.Context) (map[string]float64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

// StaticFactory hands out the same client for any credentials and records the last request.
type StaticFactory struct {
	Client exchange.Client
	Err    error
	Last   exchange.Credentials
}

func (f *StaticFactory) New(creds exchange.Credentials) (exchange.Client, error) {
	f.Last = creds
	return f.Client, f.Err
}
