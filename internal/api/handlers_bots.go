package api

import (
	"net/http"

	"ai-trading-assistant-go/internal/dca"
	"ai-trading-assistant-go/internal/grid"
	"ai-trading-assistant-go/internal/models"
	"github.com/gin-gonic/gin"
)

// Grid bots

func (s *Server) createGridBot(c *gin.Context) {
	var req grid.CreateRequest
	if !bind(c, &req) {
		return
	}

	res, err := s.deps.Grid.Create(c.Request.Context(), CurrentUserID(c), req)
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, res)
}

func (s *Server) listGridBots(c *gin.Context) {
	bots, err := s.deps.Grid.List(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"bots": bots, "count": len(bots)})
}

func (s *Server) gridLevels(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}

	levels, err := s.deps.Grid.Levels(c.Request.Context(), id, CurrentUserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"bot_id": id, "levels": levels, "count": len(levels)})
}

func (s *Server) gridStats(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}

	stats, err := s.deps.Grid.Stats(c.Request.Context(), id, CurrentUserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, stats)
}

func (s *Server) stopGridBot(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}

	refund, err := s.deps.Grid.Stop(c.Request.Context(), id, CurrentUserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"message": "Grid bot stopped", "returned_investment": refund})
}

func (s *Server) deleteGridBot(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}

	if err := s.deps.Grid.Delete(c.Request.Context(), id, CurrentUserID(c)); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"message": "Grid bot deleted"})
}

func (s *Server) runGridBot(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req struct {
		ExchangeAccountID uint    `json:"exchange_account_id"`
		AmountPerOrder    float64 `json:"amount_per_order"`
	}
	if !bind(c, &req) {
		return
	}

	if req.ExchangeAccountID != 0 {
		if _, err := s.deps.Grid.LinkAccount(c.Request.Context(), id, CurrentUserID(c), req.ExchangeAccountID); err != nil {
			failErr(c, err)
			return
		}
	}
	res, err := s.deps.Grid.RunOnce(c.Request.Context(), id, CurrentUserID(c), req.AmountPerOrder)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, res)
}

// DCA bots

func (s *Server) createDCABot(c *gin.Context) {
	var req dca.CreateRequest
	if !bind(c, &req) {
		return
	}

	res, err := s.deps.DCA.Create(c.Request.Context(), CurrentUserID(c), req)
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, res)
}

func (s *Server) listDCABots(c *gin.Context) {
	bots, err := s.deps.DCA.List(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"bots": bots, "count": len(bots)})
}

func (s *Server) runDCABot(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}

	res, err := s.deps.DCA.RunOnce(c.Request.Context(), id, CurrentUserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, res)
}

func (s *Server) stopDCABot(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}

	res, err := s.deps.DCA.Stop(c.Request.Context(), id, CurrentUserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, res)
}

func (s *Server) deleteDCABot(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}

	if err := s.deps.DCA.Delete(c.Request.Context(), id, CurrentUserID(c)); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"message": "DCA bot deleted"})
}

func (s *Server) dcaStats(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}

	stats, err := s.deps.DCA.Stats(c.Request.Context(), id, CurrentUserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, stats)
}

func (s *Server) dcaOrders(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}

	orders, err := s.deps.DCA.Orders(c.Request.Context(), id, CurrentUserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"bot_id": id, "orders": orders, "count": len(orders)})
}

// Bots of either kind

type botSummaries struct {
	Grid  []models.GridBot `json:"grid"`
	DCA   []models.DCABot  `json:"dca"`
	Count int              `json:"count"`
}

func (s *Server) userBots(c *gin.Context, kind string) (*botSummaries, error) {
	ctx := c.Request.Context()
	userID := CurrentUserID(c)
	out := &botSummaries{Grid: []models.GridBot{}, DCA: []models.DCABot{}}

	if kind == "" || kind == "grid" {
		bots, err := s.deps.Grid.List(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, b := range bots {
			if b.IsActive {
				out.Grid = append(out.Grid, b)
			}
		}
	}
	if kind == "" || kind == "dca" {
		bots, err := s.deps.DCA.List(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, b := range bots {
			if b.IsActive {
				out.DCA = append(out.DCA, b)
			}
		}
	}
	out.Count = len(out.Grid) + len(out.DCA)
	return out, nil
}

func (s *Server) activeBots(c *gin.Context) {
	bots, err := s.userBots(c, "")
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, bots)
}

func (s *Server) botsByType(c *gin.Context) {
	kind := c.Param("type")
	if kind != "grid" && kind != "dca" {
		fail(c, http.StatusBadRequest, "Invalid bot type")
		return
	}

	bots, err := s.userBots(c, kind)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, bots)
}
