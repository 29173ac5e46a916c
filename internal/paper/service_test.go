package paper

import (
	"context"
	"testing"
	"time"

	"ai-trading-assistant-go/internal/models"
	"ai-trading-assistant-go/internal/prices"
	"ai-trading-assistant-go/internal/testutil"
	"ai-trading-assistant-go/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T, balance float64) (*Service, *gorm.DB, *models.User) {
	t.Helper()
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "alice", balance)
	return NewService(db, prices.NewStore(db, nil, zap.NewNop()), zap.NewNop()), db, user
}

func balanceOf(t *testing.T, db *gorm.DB, id uint) float64 {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, id).Error)
	return u.Balance
}

func TestExecuteTrade_BuyThenSell(t *testing.T) {
	// Arrange
	svc, db, user := setup(t, 10000)
	ctx := context.Background()

	// Act
	first, err := svc.ExecuteTrade(ctx, user.ID, "btcusdt", "buy", 0.1, 40000)
	require.NoError(t, err)
	_, err = svc.ExecuteTrade(ctx, user.ID, "BTCUSDT", "BUY", 0.1, 50000)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, "BUY order executed successfully", first.Message)
	assert.Equal(t, 4000.0, first.TotalAmount)
	assert.Equal(t, 6000.0, first.NewBalance)
	assert.InDelta(t, 1000, balanceOf(t, db, user.ID), 1e-9)

	var pos models.Position
	require.NoError(t, db.Where("user_id = ? AND symbol = ?", user.ID, "BTCUSDT").First(&pos).Error)
	assert.InDelta(t, 0.2, pos.Quantity, 1e-12)
	assert.InDelta(t, 45000, pos.AvgPrice, 1e-9)

	sell, err := svc.ExecuteTrade(ctx, user.ID, "BTCUSDT", "SELL", 0.05, 60000)
	require.NoError(t, err)
	assert.InDelta(t, 4000, sell.NewBalance, 1e-9)
	require.NoError(t, db.First(&pos, pos.ID).Error)
	assert.InDelta(t, 0.15, pos.Quantity, 1e-12)
	assert.InDelta(t, 45000, pos.AvgPrice, 1e-9)

	_, err = svc.ExecuteTrade(ctx, user.ID, "BTCUSDT", "SELL", 0.15, 60000)
	require.NoError(t, err)
	var n int64
	require.NoError(t, db.Model(&models.Position{}).Where("user_id = ?", user.ID).Count(&n).Error)
	assert.Zero(t, n)

	trades, err := svc.Trades(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, trades, 4)
	assert.Equal(t, "SELL", trades[0].Side)
}

func TestExecuteTrade_Rejections(t *testing.T) {
	svc, db, user := setup(t, 100)
	ctx := context.Background()

	tests := []struct {
		name    string
		symbol  string
		side    string
		qty     float64
		price   float64
		wantErr string
	}{
		{"InsufficientBalance", "BTCUSDT", "BUY", 1, 500, "Insufficient balance. Required: $500.00, Available: $100.00"},
		{"InsufficientHolding", "ETHUSDT", "SELL", 0.5, 3000, "Insufficient ETHUSDT. Required: 0.5, Available: 0"},
		{"BadSide", "BTCUSDT", "HOLD", 1, 10, "Trade side must be BUY or SELL"},
		{"BadQuantity", "BTCUSDT", "BUY", -1, 10, "Quantity must be greater than 0"},
		{"PriceTooHigh", "BTCUSDT", "BUY", 1, 20_000_000, "Price is too high"},
		{"NoPriceData", "SOLUSDT", "BUY", 1, 0, "No price available for SOLUSDT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ExecuteTrade(ctx, user.ID, tt.symbol, tt.side, tt.qty, tt.price)

			require.Error(t, err)
			assert.True(t, validation.IsValidationError(err))
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}

	assert.Equal(t, 100.0, balanceOf(t, db, user.ID))
	var trades int64
	require.NoError(t, db.Model(&models.Trade{}).Count(&trades).Error)
	assert.Zero(t, trades)
}

func TestExecuteTrade_UsesLatestPrice(t *testing.T) {
	svc, db, user := setup(t, 1000)
	ctx := context.Background()
	require.NoError(t, db.Create(&models.PriceHistory{Symbol: "ETHUSDT", Timestamp: time.Now(), Close: 200}).Error)

	res, err := svc.ExecuteTrade(ctx, user.ID, "ETH/USDT", "BUY", 2, 0)

	require.NoError(t, err)
	assert.Equal(t, 200.0, res.Price)
	assert.Equal(t, 600.0, res.NewBalance)
}

func TestExecuteTrade_UnknownUser(t *testing.T) {
	svc, _, _ := setup(t, 1000)

	_, err := svc.ExecuteTrade(context.Background(), 999, "BTCUSDT", "BUY", 1, 10)

	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPortfolio(t *testing.T) {
	// Arrange
	svc, db, user := setup(t, 10000)
	ctx := context.Background()
	_, err := svc.ExecuteTrade(ctx, user.ID, "BTCUSDT", "BUY", 0.1, 40000)
	require.NoError(t, err)
	_, err = svc.ExecuteTrade(ctx, user.ID, "ETHUSDT", "BUY", 1, 2000)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.PriceHistory{Symbol: "BTCUSDT", Timestamp: time.Now(), Close: 50000}).Error)

	// Act
	p, err := svc.Portfolio(ctx, user.ID)

	// Assert
	require.NoError(t, err)
	require.Len(t, p.Positions, 2)
	btc := p.Positions[0]
	assert.Equal(t, "BTCUSDT", btc.Symbol)
	assert.Equal(t, 50000.0, btc.CurrentPrice)
	assert.InDelta(t, 1000, btc.ProfitLoss, 1e-9)
	assert.InDelta(t, 25, btc.ProfitLossPct, 1e-9)

	eth := p.Positions[1]
	assert.Equal(t, 2000.0, eth.CurrentPrice)
	assert.Zero(t, eth.ProfitLoss)

	assert.InDelta(t, 7000, p.TotalValue, 1e-9)
	assert.InDelta(t, 6000, p.TotalCost, 1e-9)
	assert.InDelta(t, 4000, p.Cash, 1e-9)
	assert.InDelta(t, 11000, p.Equity, 1e-9)
}

func TestValue_Empty(t *testing.T) {
	p := Value(nil, nil, 500)

	assert.Empty(t, p.Positions)
	assert.Zero(t, p.TotalProfitLossPct)
	assert.Equal(t, 500.0, p.Equity)
}
