package cmd

import (
	"fmt"

	"ai-trading-assistant-go/internal/accounts"
	"ai-trading-assistant-go/internal/api"
	"ai-trading-assistant-go/internal/auth"
	"ai-trading-assistant-go/internal/binance"
	"ai-trading-assistant-go/internal/cache"
	"ai-trading-assistant-go/internal/config"
	"ai-trading-assistant-go/internal/database"
	"ai-trading-assistant-go/internal/dca"
	"ai-trading-assistant-go/internal/diagnostics"
	"ai-trading-assistant-go/internal/exchange"
	"ai-trading-assistant-go/internal/execution"
	"ai-trading-assistant-go/internal/grid"
	"ai-trading-assistant-go/internal/logger"
	"ai-trading-assistant-go/internal/market"
	"ai-trading-assistant-go/internal/paper"
	"ai-trading-assistant-go/internal/portfolioai"
	"ai-trading-assistant-go/internal/prediction"
	"ai-trading-assistant-go/internal/prices"
	"ai-trading-assistant-go/internal/secrets"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app is the wired set of services every command draws from.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	db     *gorm.DB
	cache  *cache.RedisClient

	prices      *prices.Store
	auth        *auth.Service
	paper       *paper.Service
	prediction  *prediction.Service
	market      *market.Service
	accounts    *accounts.Service
	orders      *execution.Router
	grid        *grid.Service
	dca         *dca.Service
	portfolioAI *portfolioai.Service
	diagnostics *diagnostics.Service
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logger, cfg.Server.Debug)
	if err != nil {
		return nil, fmt.Errorf("could not initialize logger: %w", err)
	}
	if cfg.UsesDefaultSecret() {
		log.Warn("SECRET_KEY is not set, using the development default")
	}

	db, err := database.NewDatabase(&cfg.Database, cfg.Server.Debug)
	if err != nil {
		return nil, err
	}
	log.Debug("Database connection successful and schema migrated", zap.String("driver", db.Dialector.Name()))

	encryptor, err := secrets.NewEncryptorFromSecret(cfg.Security.EncryptionKey, cfg.Server.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("could not initialize encryption: %w", err)
	}

	a := &app{cfg: cfg, logger: log, db: db}
	a.cache = cache.NewRedisClient(cfg.Redis, log)
	a.prices = prices.NewStore(db, binance.NewRestClient(&cfg.Binance, log), log)
	a.auth = auth.NewService(db, auth.NewTokenManager(cfg.Server.SecretKey, cfg.Server.TokenTTL), cfg.Trading.InitialBalance, log)
	a.paper = paper.NewService(db, a.prices, log)
	a.prediction = prediction.NewService(db, a.prices, cfg.Prediction.ModelsDir, cfg.Prediction.Timeframe, log)
	a.market = market.NewService(cfg.Market, a.cache, log)
	a.accounts = accounts.NewService(db, encryptor, exchange.NewFactory(cfg.Binance, log), log)
	a.orders = execution.NewRouter(db, a.accounts, a.prices, a.prediction, cfg.Trading, log)
	a.grid = grid.NewService(db, a.orders, a.prices, a.prediction, log)
	a.dca = dca.NewService(db, a.orders, a.prices, a.prediction, log)
	a.portfolioAI = portfolioai.NewService(a.paper, a.accounts, a.prices, a.orders, log)
	a.diagnostics = diagnostics.NewService(db, a.prices, a.cache, version, log)
	return a, nil
}

func (a *app) deps() api.Deps {
	return api.Deps{
		Auth:        a.auth,
		Paper:       a.paper,
		Prices:      a.prices,
		Prediction:  a.prediction,
		Market:      a.market,
		Accounts:    a.accounts,
		Orders:      a.orders,
		Grid:        a.grid,
		DCA:         a.dca,
		PortfolioAI: a.portfolioAI,
		Diagnostics: a.diagnostics,
	}
}

func (a *app) close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("Failed to close cache", zap.Error(err))
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}
