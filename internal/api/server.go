// Package api is the JSON HTTP surface of the assistant.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ai-trading-assistant-go/internal/accounts"
	"ai-trading-assistant-go/internal/auth"
	"ai-trading-assistant-go/internal/config"
	"ai-trading-assistant-go/internal/dca"
	"ai-trading-assistant-go/internal/diagnostics"
	"ai-trading-assistant-go/internal/execution"
	"ai-trading-assistant-go/internal/grid"
	"ai-trading-assistant-go/internal/market"
	"ai-trading-assistant-go/internal/paper"
	"ai-trading-assistant-go/internal/portfolioai"
	"ai-trading-assistant-go/internal/prediction"
	"ai-trading-assistant-go/internal/prices"
	"ai-trading-assistant-go/internal/trader"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	limiterResetInterval = 5 * time.Minute
	shutdownTimeout      = 10 * time.Second
	defaultPushInterval  = 5 * time.Second
)

// EngineStatus reports the state of the bot scheduler.
type EngineStatus interface {
	Status() trader.Status
}

var _ EngineStatus = (*trader.Engine)(nil)

// Deps are the services behind the routes. Engine may be nil when the scheduler is disabled.
type Deps struct {
	Auth        *auth.Service
	Paper       *paper.Service
	Prices      *prices.Store
	Prediction  *prediction.Service
	Market      *market.Service
	Accounts    *accounts.Service
	Orders      *execution.Router
	Grid        *grid.Service
	DCA         *dca.Service
	PortfolioAI *portfolioai.Service
	Diagnostics *diagnostics.Service
	Engine      EngineStatus
}

// Server serves the JSON API.
type Server struct {
	deps         Deps
	cfg          config.Server
	router       *gin.Engine
	limiters     *ipLimiters
	pushInterval time.Duration
	logger       *zap.Logger
}

// NewServer builds the gin router with its middleware chain and routes.
func NewServer(cfg config.Server, deps Deps, logger *zap.Logger) *Server {
	if !cfg.Debug && gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		deps:         deps,
		cfg:          cfg,
		router:       gin.New(),
		limiters:     newIPLimiters(cfg.RateLimit, cfg.RateLimitBurst),
		pushInterval: defaultPushInterval,
		logger:       logger.Named("api"),
	}

	s.router.Use(
		RequestIDMiddleware(),
		RequestLogger(s.logger),
		RecoveryMiddleware(s.logger),
		CORSMiddleware(),
		RateLimitMiddleware(s.limiters, s.logger),
	)
	s.routes()
	return s
}

// Handler returns the http.Handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.GET("/ws/prices", s.streamPrices)

	public := r.Group("/api")
	{
		public.POST("/register", s.register)
		public.POST("/login", s.login)
		public.POST("/logout", s.logout)

		public.GET("/health", s.health)
		public.GET("/fear_greed", s.fearGreed)
		public.GET("/market/top", s.topCoins)
		public.GET("/market/live_prices", s.livePrices)
		public.GET("/market/token/:symbol", s.tokenDetails)

		public.GET("/price/:symbol", s.price)
		public.GET("/indicators", s.indicators)
		public.GET("/indicators/:symbol", s.indicators)
		public.GET("/predict", s.predict)
		public.GET("/predict/:symbol", s.predict)
		public.GET("/prediction/latest", s.latestPrediction)
		public.GET("/prediction/latest/:symbol", s.latestPrediction)
	}

	private := r.Group("/api", AuthMiddleware(s.deps.Auth.Tokens()))
	{
		private.GET("/profile", s.profile)
		private.POST("/profile/update", s.updateProfile)

		private.GET("/portfolio", s.portfolio)
		private.POST("/trade", s.trade)
		private.GET("/trades", s.trades)
		private.POST("/set_symbol", s.setSymbol)

		private.POST("/grid_bot/create", s.createGridBot)
		private.GET("/grid_bot/list", s.listGridBots)
		private.GET("/grid_bot/:id/levels", s.gridLevels)
		private.GET("/grid_bot/:id/stats", s.gridStats)
		private.POST("/grid_bot/:id/stop", s.stopGridBot)
		private.DELETE("/grid_bot/:id/delete", s.deleteGridBot)
		private.POST("/grid_bot/:id/run_once", s.runGridBot)

		private.POST("/dca_bot/create", s.createDCABot)
		private.GET("/dca_bot/list", s.listDCABots)
		private.POST("/dca_bot/:id/run_once", s.runDCABot)
		private.POST("/dca_bot/:id/stop", s.stopDCABot)
		private.DELETE("/dca_bot/:id/delete", s.deleteDCABot)
		private.GET("/dca_bot/:id/stats", s.dcaStats)
		private.GET("/dca_bot/:id/orders", s.dcaOrders)

		private.GET("/bots/active", s.activeBots)
		private.GET("/bots/:type", s.botsByType)

		private.GET("/exchange/accounts", s.listAccounts)
		private.POST("/exchange/accounts", s.addAccount)
		private.DELETE("/exchange/accounts/:id", s.deleteAccount)
		private.POST("/exchange/test_connection", s.testConnection)
		private.GET("/exchange/:id/portfolio", s.exchangePortfolio)
		private.GET("/exchange/trade_logs", s.tradeLogs)
		private.GET("/exchange/trade_stats", s.tradeStats)

		private.POST("/ai_trade", s.aiTrade)
		private.POST("/portfolio_ai/suggestions", s.portfolioSuggestions)
		private.POST("/portfolio_ai/execute", s.portfolioExecute)

		private.POST("/prices/sync", s.syncPrices)
		private.POST("/advanced_predict", s.advancedPredict)
		private.GET("/prediction_history", s.predictionHistory)
		private.GET("/db_overview", s.dbOverview)
		private.GET("/engine/status", s.engineStatus)
	}
}

// Run serves on the configured port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		ticker := time.NewTicker(limiterResetInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.limiters.reset()
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}
