package api

import (
	"net/http"

	"ai-trading-assistant-go/internal/accounts"
	"ai-trading-assistant-go/internal/portfolioai"
	"github.com/gin-gonic/gin"
)

func (s *Server) listAccounts(c *gin.Context) {
	list, err := s.deps.Accounts.List(c.Request.Context(), CurrentUserID(c), true)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"accounts": list, "count": len(list)})
}

func (s *Server) addAccount(c *gin.Context) {
	var req accounts.AddRequest
	if !bind(c, &req) {
		return
	}

	account, err := s.deps.Accounts.Add(c.Request.Context(), CurrentUserID(c), req)
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, account)
}

func (s *Server) deleteAccount(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}

	if err := s.deps.Accounts.Delete(c.Request.Context(), id, CurrentUserID(c)); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"message": "Exchange account removed"})
}

// testConnection reports a failed connection in the body; only bad input is an HTTP error.
func (s *Server) testConnection(c *gin.Context) {
	var req accounts.TestRequest
	if !bind(c, &req) {
		return
	}

	res, err := s.deps.Accounts.TestConnection(c.Request.Context(), CurrentUserID(c), req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, res)
}

func (s *Server) exchangePortfolio(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}

	p, err := s.deps.Accounts.Portfolio(c.Request.Context(), id, CurrentUserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, p)
}

func (s *Server) tradeLogs(c *gin.Context) {
	logs, err := s.deps.Orders.Logs(c.Request.Context(), CurrentUserID(c), intQuery(c, "limit", 0))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"logs": logs, "count": len(logs), "mode": s.deps.Orders.Mode()})
}

func (s *Server) tradeStats(c *gin.Context) {
	stats, err := s.deps.Orders.Stats(c.Request.Context(), CurrentUserID(c), c.Query("symbol"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, stats)
}

type aiTradeRequest struct {
	AccountID uint    `json:"account_id"`
	Symbol    string  `json:"symbol"`
	Amount    float64 `json:"amount"`
}

func (s *Server) aiTrade(c *gin.Context) {
	var req aiTradeRequest
	if !bind(c, &req) {
		return
	}
	if req.AccountID == 0 {
		fail(c, http.StatusBadRequest, "Exchange account is required")
		return
	}
	if req.Symbol == "" {
		req.Symbol = "BTCUSDT"
	}

	res, err := s.deps.Orders.ExecuteAITrade(c.Request.Context(), CurrentUserID(c), req.AccountID, req.Symbol, req.Amount)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, res)
}

func (s *Server) portfolioSuggestions(c *gin.Context) {
	var req struct {
		AccountID *uint `json:"account_id"`
	}
	if !bind(c, &req) {
		return
	}

	analysis, err := s.deps.PortfolioAI.Analyze(c.Request.Context(), CurrentUserID(c), req.AccountID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, analysis)
}

type rebalanceRequest struct {
	AccountID uint                     `json:"account_id"`
	Trades    []portfolioai.Suggestion `json:"trades"`
}

func (s *Server) portfolioExecute(c *gin.Context) {
	var req rebalanceRequest
	if !bind(c, &req) {
		return
	}
	if req.AccountID == 0 {
		fail(c, http.StatusBadRequest, "Exchange account is required")
		return
	}

	report, err := s.deps.PortfolioAI.Execute(c.Request.Context(), CurrentUserID(c), req.AccountID, req.Trades)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, report)
}
