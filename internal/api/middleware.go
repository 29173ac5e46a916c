package api

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	requestIDKey = "RequestID"
	userIDKey    = "UserID"
)

// TokenParser verifies a session token and returns the user id it belongs to.
type TokenParser interface {
	Parse(token string) (uint, error)
}

// ipLimiters hands out one token bucket per client IP.
type ipLimiters struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIPLimiters(perSecond float64, burst int) *ipLimiters {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &ipLimiters{limiters: make(map[string]*rate.Limiter), limit: limit, burst: burst}
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[ip]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// lost the race to another request from the same IP
	if limiter, exists := l.limiters[ip]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(l.limit, l.burst)
	l.limiters[ip] = limiter
	return limiter
}

// reset drops every bucket. The server calls it periodically so idle IPs do not pile up.
func (l *ipLimiters) reset() {
	l.mu.Lock()
	l.limiters = make(map[string]*rate.Limiter)
	l.mu.Unlock()
}

// CORSMiddleware allows any origin and answers preflight requests directly.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware reuses the caller's X-Request-ID or generates one, and echoes it back.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// RecoveryMiddleware turns a handler panic into a 500 envelope and logs it with the stack.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.Error("Recovered from panic",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
			zap.Stack("stack"),
		)
		fail(c, http.StatusInternalServerError, "Internal server error")
	})
}

// RateLimitMiddleware rejects clients that exceed their per-IP budget.
func RateLimitMiddleware(limiters *ipLimiters, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiters.get(ip).Allow() {
			logger.Warn("Rate limit exceeded", zap.String("ip", ip))
			fail(c, http.StatusTooManyRequests, "Too many requests, please slow down")
			return
		}
		c.Next()
	}
}

// RequestLogger logs every request with its status and latency.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("API request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("API request", fields...)
		default:
			logger.Info("API request", fields...)
		}
	}
}

// AuthMiddleware requires a valid bearer token and stores the user id on the context.
func AuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			fail(c, http.StatusUnauthorized, "Authentication required")
			return
		}

		userID, err := tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			fail(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user of the request.
func CurrentUserID(c *gin.Context) uint {
	return c.GetUint(userIDKey)
}
