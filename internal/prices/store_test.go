package prices_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-trading-assistant-go/internal/binance"
	"ai-trading-assistant-go/internal/models"
	"ai-trading-assistant-go/internal/prices"
	"ai-trading-assistant-go/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockMarketData is a mock implementation of binance.MarketDataClient.
type MockMarketData struct {
	mock.Mock
}

func (m *MockMarketData) GetServerTime(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMarketData) GetAllTickerPrices(ctx context.Context) (map[string]float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]float64), args.Error(1)
}

func (m *MockMarketData) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockMarketData) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]binance.Kline, error) {
	args := m.Called(ctx, symbol, interval, limit)
	if k := args.Get(0); k != nil {
		return k.([]binance.Kline), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestSymbolHelpers(t *testing.T) {
	assert.Equal(t, "BTCUSDT", prices.Normalize(" btc/usdt "))
	assert.Equal(t, "BTC/USDT", prices.Pair("BTCUSDT"))
	assert.Equal(t, "ETH/USDT", prices.Pair("eth/usdt"))
	assert.Equal(t, "SOL/USDT", prices.Pair("SOL"))
	assert.Equal(t, "BTC", prices.BaseAsset("BTCUSDT"))
}

func TestStore_InsertAndQuery(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	store := prices.NewStore(db, nil, zap.NewNop())
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Arrange
	candles := prices.SampleCandles("BTCUSDT", 45000, 10, start, 42)

	// Act
	inserted, err := store.Insert(ctx, candles)
	require.NoError(t, err)
	again, err := store.Insert(ctx, prices.SampleCandles("BTCUSDT", 45000, 10, start, 42))
	require.NoError(t, err)

	// Assert
	assert.Equal(t, int64(10), inserted)
	assert.Equal(t, int64(0), again)

	latest, err := store.Latest(ctx, "btc/usdt")
	require.NoError(t, err)
	assert.Equal(t, candles[9].Close, latest.Close)

	rows, err := store.Candles(ctx, "BTCUSDT", 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].Timestamp.Before(rows[2].Timestamp))
	assert.Equal(t, candles[9].Close, rows[2].Close)

	symbols, err := store.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT"}, symbols)

	_, err = store.LatestPrice(ctx, "ETHUSDT")
	assert.ErrorIs(t, err, prices.ErrNoPriceData)

	latestPrices, err := store.LatestPrices(ctx, []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)
	assert.Len(t, latestPrices, 1)
}

func TestStore_Sync(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	market := new(MockMarketData)
	store := prices.NewStore(db, market, zap.NewNop())
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	klines := []binance.Kline{
		{OpenTime: t0, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{OpenTime: t0.Add(time.Hour), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 12},
	}
	market.On("GetKlines", mock.Anything, "ETHUSDT", "1h", 2).Return(klines, nil).Twice()

	// Act
	first, err := store.Sync(ctx, "eth/usdt", "1h", 2)
	require.NoError(t, err)
	second, err := store.Sync(ctx, "ETHUSDT", "1h", 2)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, int64(2), first.Inserted)
	assert.Equal(t, 2.0, first.LatestPrice)
	assert.Equal(t, int64(0), second.Inserted)
	assert.Equal(t, int64(2), second.Duplicates)
	market.AssertExpectations(t)
}

func TestStore_SyncAllCollectsErrors(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	market := new(MockMarketData)
	store := prices.NewStore(db, market, zap.NewNop())

	market.On("GetKlines", mock.Anything, "BTCUSDT", "1h", 5).
		Return([]binance.Kline{{OpenTime: time.Now().UTC(), Close: 100}}, nil)
	market.On("GetKlines", mock.Anything, "XRPUSDT", "1h", 5).
		Return(nil, errors.New("boom"))

	results, err := store.SyncAll(ctx, []string{"BTCUSDT", "XRPUSDT"}, "1h", 5)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "XRPUSDT")
	require.Len(t, results, 1)
	assert.Equal(t, "BTCUSDT", results[0].Symbol)
}

func TestStore_Prune(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	store := prices.NewStore(db, nil, zap.NewNop())
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.Insert(ctx, prices.SampleCandles("BTCUSDT", 100, 5, start, 1))
	require.NoError(t, err)

	removed, err := store.Prune(ctx, start.Add(2*time.Hour))

	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	var left int64
	db.Model(&models.PriceHistory{}).Count(&left)
	assert.Equal(t, int64(3), left)
}

func TestStore_SyncRefreshesOpenCandle(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	market := new(MockMarketData)
	store := prices.NewStore(db, market, zap.NewNop())
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	// Arrange
	market.On("GetKlines", mock.Anything, "BTCUSDT", "1h", 1).
		Return([]binance.Kline{{OpenTime: t0, Open: 100, High: 101, Low: 99, Close: 100, Volume: 5}}, nil).Once()
	market.On("GetKlines", mock.Anything, "BTCUSDT", "1h", 1).
		Return([]binance.Kline{{OpenTime: t0, Open: 100, High: 112, Low: 99, Close: 110, Volume: 9}}, nil).Once()

	// Act
	first, err := store.Sync(ctx, "BTCUSDT", "1h", 1)
	require.NoError(t, err)
	second, err := store.Sync(ctx, "BTCUSDT", "1h", 1)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, int64(1), first.Inserted)
	assert.Equal(t, int64(0), second.Inserted)
	assert.Equal(t, int64(1), second.Duplicates)

	price, err := store.LatestPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 110.0, price)

	latest, err := store.Latest(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 112.0, latest.High)
	assert.Equal(t, 9.0, latest.Volume)

	var rows int64
	db.Model(&models.PriceHistory{}).Count(&rows)
	assert.Equal(t, int64(1), rows)
	market.AssertExpectations(t)
}
