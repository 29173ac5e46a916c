// Package diagnostics reports service health and database contents.
package diagnostics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-trading-assistant-go/internal/cache"
	"ai-trading-assistant-go/internal/database"
	"ai-trading-assistant-go/internal/indicators"
	"ai-trading-assistant-go/internal/models"
	"ai-trading-assistant-go/internal/prices"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"

	probeSymbol       = "BTCUSDT"
	minIndicatorBars  = 20
	indicatorProbeLen = 50
)

// PriceData is the stored market data the checks probe.
type PriceData interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
	LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error)
	Candles(ctx context.Context, symbol string, limit int) ([]models.PriceHistory, error)
	Symbols(ctx context.Context) ([]string, error)
}

// Pinger is an optional dependency that can be probed.
type Pinger interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

var (
	_ PriceData = (*prices.Store)(nil)
	_ Pinger    = (*cache.RedisClient)(nil)
)

// Health is the result of the health checks.
type Health struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]bool   `json:"checks"`
	Details   map[string]string `json:"details,omitempty"`
}

// Overview summarises what the database holds.
type Overview struct {
	Tables       map[string]int64   `json:"tables"`
	LatestPrices map[string]float64 `json:"latest_prices"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

// Service runs diagnostics.
type Service struct {
	db      *gorm.DB
	prices  PriceData
	cache   Pinger
	version string
	logger  *zap.Logger
}

// NewService creates a diagnostics Service. cache may be nil.
func NewService(db *gorm.DB, priceData PriceData, c Pinger, version string, logger *zap.Logger) *Service {
	return &Service{
		db:      db,
		prices:  priceData,
		cache:   c,
		version: version,
		logger:  logger.Named("diagnostics"),
	}
}

// Health checks the database, the price data and the indicator pipeline.
// A database failure is an error; any other failure degrades the status.
func (s *Service) Health(ctx context.Context) *Health {
	h := &Health{
		Status:    StatusOK,
		Version:   s.version,
		Timestamp: time.Now().UTC(),
		Checks:    map[string]bool{},
		Details:   map[string]string{},
	}
	var mu sync.Mutex
	record := func(check, key string, err error, status string) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			h.Checks[check] = true
			return
		}
		h.Checks[check] = false
		h.Details[key] = err.Error()
		if h.Status != StatusError {
			h.Status = status
		}
	}

	// Checks are independent; none of them returns an error to the group.
	var g errgroup.Group
	g.Go(func() error {
		record("db", "db_error", s.pingDB(ctx), StatusError)
		return nil
	})
	g.Go(func() error {
		_, err := s.prices.LatestPrice(ctx, probeSymbol)
		record("price_service", "price_error", err, StatusDegraded)
		return nil
	})
	g.Go(func() error {
		record("indicator_service", "indicator_error", s.probeIndicators(ctx), StatusDegraded)
		return nil
	})
	if s.cache != nil && s.cache.Enabled() {
		g.Go(func() error {
			record("cache", "cache_error", s.cache.Ping(ctx), StatusDegraded)
			return nil
		})
	}
	_ = g.Wait()

	if len(h.Details) == 0 {
		h.Details = nil
	}
	passed := 0
	for _, ok := range h.Checks {
		if ok {
			passed++
		}
	}
	s.logger.Debug("Health check", zap.String("status", h.Status), zap.Int("passed", passed), zap.Int("total", len(h.Checks)))
	return h
}

func (s *Service) pingDB(ctx context.Context) error {
	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return err
	}
	if one != 1 {
		return fmt.Errorf("unexpected probe result %d", one)
	}
	return nil
}

func (s *Service) probeIndicators(ctx context.Context) error {
	candles, err := s.prices.Candles(ctx, probeSymbol, indicatorProbeLen)
	if err != nil {
		return err
	}
	if len(candles) < minIndicatorBars {
		return fmt.Errorf("Insufficient data: %d candles", len(candles))
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	if _, err := indicators.RSI(closes, 14); err != nil {
		return err
	}
	return nil
}

// Overview counts the rows of every table and reports the latest price of each stored symbol.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	counts, err := database.TableCounts(s.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	symbols, err := s.prices.Symbols(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := s.prices.LatestPrices(ctx, symbols)
	if err != nil {
		return nil, err
	}
	return &Overview{Tables: counts, LatestPrices: latest, GeneratedAt: time.Now().UTC()}, nil
}
