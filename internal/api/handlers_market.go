package api

import (
	"net/http"
	"strings"
	"time"

	"ai-trading-assistant-go/internal/diagnostics"
	"ai-trading-assistant-go/internal/market"
	"ai-trading-assistant-go/internal/prediction"
	"ai-trading-assistant-go/internal/prices"
	"ai-trading-assistant-go/internal/trader"
	"ai-trading-assistant-go/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultSymbol     = "BTCUSDT"
	predictTimeframe  = "1h"
	predictSyncLimit  = 100
	defaultSyncLimit  = 200
	defaultHistoryLen = 20
)

func symbolParam(c *gin.Context) (string, bool) {
	raw := c.Param("symbol")
	if raw == "" {
		raw = c.Query("symbol")
	}
	if raw == "" {
		return defaultSymbol, true
	}
	symbol, err := validation.Symbol(prices.Normalize(raw))
	if err != nil {
		failErr(c, err)
		return "", false
	}
	return symbol, true
}

// formatUSD renders 98549.53 as "$98,549.53".
func formatUSD(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}

func (s *Server) health(c *gin.Context) {
	h := s.deps.Diagnostics.Health(c.Request.Context())
	status := http.StatusOK
	if h.Status == diagnostics.StatusError {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, Response{Success: h.Status != diagnostics.StatusError, Data: h})
}

func (s *Server) dbOverview(c *gin.Context) {
	overview, err := s.deps.Diagnostics.Overview(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, overview)
}

func (s *Server) engineStatus(c *gin.Context) {
	if s.deps.Engine == nil {
		ok(c, trader.Status{Running: false})
		return
	}
	ok(c, s.deps.Engine.Status())
}

func (s *Server) fearGreed(c *gin.Context) {
	fg, err := s.deps.Market.FearGreed(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, fg)
}

func (s *Server) topCoins(c *gin.Context) {
	top, err := s.deps.Market.TopCoins(c.Request.Context(), market.ClampLimit(intQuery(c, "limit", market.DefaultLimit)))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, top)
}

func (s *Server) livePrices(c *gin.Context) {
	quotes, err := s.deps.Market.LivePrices(c.Request.Context(), market.ParseSymbols(c.Query("symbols")))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, quotes)
}

func (s *Server) tokenDetails(c *gin.Context) {
	details, err := s.deps.Market.TokenDetails(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, details)
}

func (s *Server) price(c *gin.Context) {
	symbol, valid := symbolParam(c)
	if !valid {
		return
	}

	price, err := s.deps.Prices.LatestPrice(c.Request.Context(), symbol)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"symbol": symbol, "price": price, "formatted": formatUSD(price)})
}

func (s *Server) indicators(c *gin.Context) {
	symbol, valid := symbolParam(c)
	if !valid {
		return
	}

	analysis, err := s.deps.Prediction.Indicators(c.Request.Context(), symbol)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"symbol": symbol, "analysis": analysis})
}

type predictResponse struct {
	*prediction.Result
	CandlesSynced int       `json:"candles_synced"`
	LastUpdate    time.Time `json:"last_update,omitempty"`
	LastClose     float64   `json:"last_close,omitempty"`
}

// predict refreshes recent candles before predicting. A failed sync falls back to stored data.
func (s *Server) predict(c *gin.Context) {
	symbol, valid := symbolParam(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()

	resp := predictResponse{}
	sync, err := s.deps.Prices.Sync(ctx, symbol, predictTimeframe, predictSyncLimit)
	if err != nil {
		s.logger.Warn("Price sync before prediction failed", zap.String("symbol", symbol), zap.Error(err))
	} else {
		resp.CandlesSynced = sync.Fetched
	}

	res, err := s.deps.Prediction.PredictAndSave(ctx, symbol)
	if err != nil {
		failErr(c, err)
		return
	}
	resp.Result = res

	if latest, err := s.deps.Prices.Latest(ctx, symbol); err == nil {
		resp.LastUpdate = latest.Timestamp
		resp.LastClose = latest.Close
	}
	ok(c, resp)
}

func (s *Server) latestPrediction(c *gin.Context) {
	symbol, valid := symbolParam(c)
	if !valid {
		return
	}

	p, err := s.deps.Prediction.Latest(c.Request.Context(), symbol)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, p)
}

type syncRequest struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Limit     int    `json:"limit"`
}

func (s *Server) syncPrices(c *gin.Context) {
	var req syncRequest
	if !bind(c, &req) {
		return
	}
	symbol, err := validation.Symbol(prices.Normalize(req.Symbol))
	if err != nil {
		failErr(c, err)
		return
	}
	if req.Timeframe == "" {
		req.Timeframe = predictTimeframe
	}
	if req.Limit <= 0 {
		req.Limit = defaultSyncLimit
	}

	res, err := s.deps.Prices.Sync(c.Request.Context(), symbol, req.Timeframe, req.Limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, res)
}

func (s *Server) advancedPredict(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if !bind(c, &req) {
		return
	}
	if req.Symbol == "" {
		req.Symbol = defaultSymbol
	}
	symbol, err := validation.Symbol(prices.Normalize(req.Symbol))
	if err != nil {
		failErr(c, err)
		return
	}

	adv, err := s.deps.Prediction.Advanced(c.Request.Context(), symbol)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, adv)
}

func (s *Server) predictionHistory(c *gin.Context) {
	symbol, valid := symbolParam(c)
	if !valid {
		return
	}

	rows, err := s.deps.Prediction.History(c.Request.Context(), symbol, intQuery(c, "limit", defaultHistoryLen))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"symbol": symbol, "predictions": rows, "count": len(rows)})
}
