package api

import (
	"context"
	"net/http"
	"time"

	"ai-trading-assistant-go/internal/market"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamPrices pushes live quotes for ?symbols= until the client disconnects.
func (s *Server) streamPrices(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("ws upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	symbols := market.ParseSymbols(c.Query("symbols"))
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The read side only exists to notice the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		msg := Response{Success: true}
		quotes, err := s.deps.Market.LivePrices(ctx, symbols)
		if err != nil {
			msg = Response{Success: false, Error: err.Error()}
		} else {
			msg.Data = quotes
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Debug("ws write error", zap.Error(err))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
