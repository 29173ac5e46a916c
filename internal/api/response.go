package api

import (
	"errors"
	"net/http"
	"strconv"

	"ai-trading-assistant-go/internal/accounts"
	"ai-trading-assistant-go/internal/auth"
	"ai-trading-assistant-go/internal/dca"
	"ai-trading-assistant-go/internal/exchange"
	"ai-trading-assistant-go/internal/execution"
	"ai-trading-assistant-go/internal/grid"
	"ai-trading-assistant-go/internal/indicators"
	"ai-trading-assistant-go/internal/market"
	"ai-trading-assistant-go/internal/paper"
	"ai-trading-assistant-go/internal/prediction"
	"ai-trading-assistant-go/internal/prices"
	"ai-trading-assistant-go/internal/validation"
	"github.com/gin-gonic/gin"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Error: message})
}

// failErr answers with the status that matches err.
func failErr(c *gin.Context, err error) {
	_ = c.Error(err)
	fail(c, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case validation.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, grid.ErrNotFound),
		errors.Is(err, dca.ErrNotFound),
		errors.Is(err, accounts.ErrNotFound),
		errors.Is(err, execution.ErrLogNotFound),
		errors.Is(err, paper.ErrUserNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, prediction.ErrNoPrediction),
		errors.Is(err, prices.ErrNoPriceData),
		errors.Is(err, market.ErrTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, grid.ErrInactive),
		errors.Is(err, dca.ErrInactive),
		errors.Is(err, indicators.ErrNotEnoughData),
		errors.Is(err, exchange.ErrUnsupportedExchange),
		errors.Is(err, exchange.ErrBelowLotSize),
		errors.Is(err, execution.ErrOrderRejected):
		return http.StatusBadRequest
	case errors.Is(err, market.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, market.ErrInvalidAPIKey):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// bind decodes the JSON body into dst. An empty body leaves dst untouched.
func bind(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
