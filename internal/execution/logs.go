package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-trading-assistant-go/internal/models"
	"ai-trading-assistant-go/internal/prices"
	"ai-trading-assistant-go/internal/validation"
)

// ErrLogNotFound is returned when a trade log does not exist.
var ErrLogNotFound = errors.New("trade log not found")

const defaultLogLimit = 50

// LogEntry is a trade log with the account it went through.
type LogEntry struct {
	models.ExchangeTradeLog
	ExchangeName string `json:"exchange_name"`
	AccountLabel string `json:"account_label"`
}

// TradeStats aggregates a user's trade logs.
type TradeStats struct {
	TotalTrades     int64   `json:"total_trades"`
	FilledTrades    int64   `json:"filled_trades"`
	SimulatedTrades int64   `json:"simulated_trades"`
	ErrorTrades     int64   `json:"error_trades"`
	BuyTrades       int64   `json:"buy_trades"`
	SellTrades      int64   `json:"sell_trades"`
	TotalVolume     float64 `json:"total_volume"`
	TotalFees       float64 `json:"total_fees"`
}

// SourceStats aggregates the executed trades of one trade source, such as a bot.
type SourceStats struct {
	TotalExecutions int64   `json:"total_executions"`
	TotalAmount     float64 `json:"total_bought"`
	AveragePrice    float64 `json:"average_price"`
	TotalValue      float64 `json:"total_spent"`
	LowestPrice     float64 `json:"lowest_price"`
	HighestPrice    float64 `json:"highest_price"`
}

// Logs returns the user's newest trade logs. limit defaults to 50.
func (r *Router) Logs(ctx context.Context, userID uint, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	var rows []models.ExchangeTradeLog
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").Order("id desc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load trade logs: %w", err)
	}

	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ExchangeAccountID)
	}
	var accts []models.ExchangeAccount
	if len(ids) > 0 {
		if err := r.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Find(&accts).Error; err != nil {
			return nil, fmt.Errorf("failed to load trade log accounts: %w", err)
		}
	}
	byID := make(map[uint]models.ExchangeAccount, len(accts))
	for _, a := range accts {
		byID[a.ID] = a
	}

	out := make([]LogEntry, 0, len(rows))
	for _, row := range rows {
		a := byID[row.ExchangeAccountID]
		out = append(out, LogEntry{ExchangeTradeLog: row, ExchangeName: a.ExchangeName, AccountLabel: a.Label})
	}
	return out, nil
}

// Stats aggregates the user's trade logs, optionally for one symbol.
func (r *Router) Stats(ctx context.Context, userID uint, symbol string) (*TradeStats, error) {
	q := r.db.WithContext(ctx).Model(&models.ExchangeTradeLog{}).
		Select(`COUNT(*) AS total_trades,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS filled_trades,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS simulated_trades,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS error_trades,
			COALESCE(SUM(CASE WHEN side = ? THEN 1 ELSE 0 END), 0) AS buy_trades,
			COALESCE(SUM(CASE WHEN side = ? THEN 1 ELSE 0 END), 0) AS sell_trades,
			COALESCE(SUM(total_value), 0) AS total_volume,
			COALESCE(SUM(fee), 0) AS total_fees`,
			models.TradeStatusFilled, models.TradeStatusSimulated, models.TradeStatusError,
			models.SideBuy, models.SideSell).
		Where("user_id = ?", userID)
	if symbol != "" {
		q = q.Where("symbol = ?", prices.Normalize(symbol))
	}

	var stats TradeStats
	if err := q.Scan(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to compute trade stats: %w", err)
	}
	return &stats, nil
}

// SourceStats aggregates the FILLED and SIMULATED trades a source produced for the user.
func (r *Router) SourceStats(ctx context.Context, userID uint, source string) (*SourceStats, error) {
	var stats SourceStats
	err := r.db.WithContext(ctx).Model(&models.ExchangeTradeLog{}).
		Select(`COUNT(*) AS total_executions,
			COALESCE(SUM(amount), 0) AS total_amount,
			COALESCE(AVG(price), 0) AS average_price,
			COALESCE(SUM(total_value), 0) AS total_value,
			COALESCE(MIN(price), 0) AS lowest_price,
			COALESCE(MAX(price), 0) AS highest_price`).
		Where("user_id = ? AND trade_source = ? AND status IN ?", userID, source,
			[]string{models.TradeStatusFilled, models.TradeStatusSimulated}).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats for %s: %w", source, err)
	}
	return &stats, nil
}

// UpdateStatus changes the status of a trade log and records an optional error message.
func (r *Router) UpdateStatus(ctx context.Context, logID uint, status, errorMessage string) error {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status == "" {
		return validation.Errorf("Status is required")
	}
	res := r.db.WithContext(ctx).Model(&models.ExchangeTradeLog{}).
		Where("id = ?", logID).
		Updates(map[string]interface{}{"status": status, "error_message": errorMessage})
	if res.Error != nil {
		return fmt.Errorf("failed to update trade log %d: %w", logID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrLogNotFound
	}
	return nil
}
