// Package prices stores OHLCV candles and keeps them in sync with the exchange.
package prices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-trading-assistant-go/internal/binance"
	"ai-trading-assistant-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoPriceData is returned when a symbol has no stored candles.
var ErrNoPriceData = errors.New("no price data available")

// SyncResult summarises one kline sync.
type SyncResult struct {
	Symbol      string  `json:"symbol"`
	Timeframe   string  `json:"timeframe"`
	Fetched     int     `json:"fetched"`
	Inserted    int64   `json:"inserted"`
	Duplicates  int64   `json:"duplicates"`
	LatestPrice float64 `json:"latest_price"`
}

// Store reads and writes price_history.
type Store struct {
	db     *gorm.DB
	market binance.MarketDataClient
	logger *zap.Logger
}

// NewStore creates a price Store. market may be nil when syncing is not needed.
func NewStore(db *gorm.DB, market binance.MarketDataClient, logger *zap.Logger) *Store {
	return &Store{db: db, market: market, logger: logger.Named("prices")}
}

// Latest returns the newest candle of a symbol.
func (s *Store) Latest(ctx context.Context, symbol string) (*models.PriceHistory, error) {
	var p models.PriceHistory
	err := s.db.WithContext(ctx).
		Where("symbol = ?", Normalize(symbol)).
		Order("timestamp desc").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoPriceData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest price for %s: %w", symbol, err)
	}
	return &p, nil
}

// LatestPrice returns the newest close of a symbol.
func (s *Store) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	p, err := s.Latest(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return p.Close, nil
}

// LatestPrices returns the newest close for each symbol that has data.
func (s *Store) LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		price, err := s.LatestPrice(ctx, sym)
		if errors.Is(err, ErrNoPriceData) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[Normalize(sym)] = price
	}
	return out, nil
}

// Candles returns up to limit of the newest candles, oldest first.
func (s *Store) Candles(ctx context.Context, symbol string, limit int) ([]models.PriceHistory, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []models.PriceHistory
	err := s.db.WithContext(ctx).
		Where("symbol = ?", Normalize(symbol)).
		Order("timestamp desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load candles for %s: %w", symbol, err)
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// Symbols lists every symbol with stored candles.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	var symbols []string
	if err := s.db.WithContext(ctx).Model(&models.PriceHistory{}).
		Distinct("symbol").Order("symbol").Pluck("symbol", &symbols).Error; err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	return symbols, nil
}

// candleColumns are rewritten when a candle is stored again. The newest kline
// from the exchange is still open, so its OHLCV keeps changing until it closes.
var candleColumns = []string{"open", "high", "low", "close", "volume"}

// Insert upserts candles keyed by (symbol, timestamp) and returns the number
// of new rows. Existing candles take the incoming OHLCV values.
func (s *Store) Insert(ctx context.Context, candles []models.PriceHistory) (int64, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	seen := make(map[string]struct{})
	symbols := make([]string, 0, 1)
	for i := range candles {
		candles[i].Symbol = Normalize(candles[i].Symbol)
		if _, ok := seen[candles[i].Symbol]; !ok {
			seen[candles[i].Symbol] = struct{}{}
			symbols = append(symbols, candles[i].Symbol)
		}
	}

	var inserted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var before, after int64
		if err := tx.Model(&models.PriceHistory{}).Where("symbol IN ?", symbols).Count(&before).Error; err != nil {
			return err
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "timestamp"}},
			DoUpdates: clause.AssignmentColumns(candleColumns),
		}).CreateInBatches(candles, 200).Error
		if err != nil {
			return err
		}
		if err := tx.Model(&models.PriceHistory{}).Where("symbol IN ?", symbols).Count(&after).Error; err != nil {
			return err
		}
		inserted = after - before
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store candles: %w", err)
	}
	return inserted, nil
}

// Sync fetches recent klines from the exchange and upserts them.
func (s *Store) Sync(ctx context.Context, symbol, timeframe string, limit int) (*SyncResult, error) {
	if s.market == nil {
		return nil, errors.New("price sync requires a market data client")
	}
	symbol = Normalize(symbol)
	l := s.logger.With(zap.String("symbol", symbol), zap.String("timeframe", timeframe))

	klines, err := s.market.GetKlines(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines: %w", err)
	}
	if len(klines) == 0 {
		return nil, errors.New("No data returned from exchange")
	}

	candles := make([]models.PriceHistory, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, models.PriceHistory{
			Symbol:    symbol,
			Timestamp: k.OpenTime,
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Volume,
		})
	}

	inserted, err := s.Insert(ctx, candles)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{
		Symbol:      symbol,
		Timeframe:   timeframe,
		Fetched:     len(klines),
		Inserted:    inserted,
		Duplicates:  int64(len(klines)) - inserted,
		LatestPrice: klines[len(klines)-1].Close,
	}
	l.Info("Price history synced",
		zap.Int("fetched", result.Fetched),
		zap.Int64("inserted", result.Inserted),
		zap.Float64("latest_price", result.LatestPrice),
	)
	return result, nil
}

// SyncAll syncs every symbol, continuing past individual failures.
func (s *Store) SyncAll(ctx context.Context, symbols []string, timeframe string, limit int) ([]SyncResult, error) {
	results := make([]SyncResult, 0, len(symbols))
	var errs []error
	for _, sym := range symbols {
		res, err := s.Sync(ctx, sym, timeframe, limit)
		if err != nil {
			s.logger.Warn("Price sync failed", zap.String("symbol", sym), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", sym, err))
			continue
		}
		results = append(results, *res)
	}
	return results, errors.Join(errs...)
}

// Prune deletes candles older than the cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("timestamp < ?", before).Delete(&models.PriceHistory{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune price history: %w", res.Error)
	}
	return res.RowsAffected, nil
}
