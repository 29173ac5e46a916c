package api

import (
	"ai-trading-assistant-go/internal/prices"
	"ai-trading-assistant-go/internal/validation"
	"github.com/gin-gonic/gin"
)

type tradeRequest struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

func (s *Server) portfolio(c *gin.Context) {
	p, err := s.deps.Paper.Portfolio(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, p)
}

func (s *Server) trade(c *gin.Context) {
	var req tradeRequest
	if !bind(c, &req) {
		return
	}

	res, err := s.deps.Paper.ExecuteTrade(c.Request.Context(), CurrentUserID(c), req.Symbol, req.Side, req.Quantity, req.Price)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, res)
}

func (s *Server) trades(c *gin.Context) {
	trades, err := s.deps.Paper.Trades(c.Request.Context(), CurrentUserID(c), intQuery(c, "limit", 0))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"trades": trades, "count": len(trades)})
}

// setSymbol validates the chart symbol a client switched to. Selection lives on the client.
func (s *Server) setSymbol(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if !bind(c, &req) {
		return
	}

	symbol, err := validation.Symbol(prices.Normalize(req.Symbol))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"symbol": symbol, "message": "Symbol updated to " + symbol})
}
