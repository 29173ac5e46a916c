package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"ai-trading-assistant-go/internal/accounts"
	"ai-trading-assistant-go/internal/auth"
	"ai-trading-assistant-go/internal/config"
	"ai-trading-assistant-go/internal/dca"
	"ai-trading-assistant-go/internal/diagnostics"
	"ai-trading-assistant-go/internal/exchange"
	"ai-trading-assistant-go/internal/execution"
	"ai-trading-assistant-go/internal/grid"
	"ai-trading-assistant-go/internal/market"
	"ai-trading-assistant-go/internal/models"
	"ai-trading-assistant-go/internal/paper"
	"ai-trading-assistant-go/internal/portfolioai"
	"ai-trading-assistant-go/internal/prediction"
	"ai-trading-assistant-go/internal/prices"
	"ai-trading-assistant-go/internal/secrets"
	"ai-trading-assistant-go/internal/testutil"
	"ai-trading-assistant-go/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

type testEnv struct {
	server *httptest.Server
	client *resty.Client
	db     *gorm.DB
}

func newTestEnv(t *testing.T, cfg config.Server) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	logger := zap.NewNop()

	store := prices.NewStore(db, nil, logger)
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	predictor := prediction.NewService(db, store, t.TempDir(), "1h", logger)
	enc, err := secrets.NewEncryptorFromSecret("", "test-secret")
	require.NoError(t, err)
	accts := accounts.NewService(db, enc, &testutil.StaticFactory{Client: new(testutil.MockExchange)}, logger)
	orders := execution.NewRouter(db, accts, store, predictor, config.Trading{}, logger)
	paperSvc := paper.NewService(db, store, logger)

	srv := NewServer(cfg, Deps{
		Auth:        auth.NewService(db, tokens, 10000, logger),
		Paper:       paperSvc,
		Prices:      store,
		Prediction:  predictor,
		Market:      market.NewService(config.Market{}, nil, logger),
		Accounts:    accts,
		Orders:      orders,
		Grid:        grid.NewService(db, orders, store, predictor, logger),
		DCA:         dca.NewService(db, orders, store, predictor, logger),
		PortfolioAI: portfolioai.NewService(paperSvc, accts, store, orders, logger),
		Diagnostics: diagnostics.NewService(db, store, nil, "test", logger),
	}, logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{
		server: ts,
		client: resty.New().SetBaseURL(ts.URL),
		db:     db,
	}
}

func doJSON[T any](t *testing.T, env *testEnv, method, path, token string, body interface{}) (int, envelope[T]) {
	t.Helper()

	req := env.client.R()
	if token != "" {
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	require.NoError(t, err)

	var out envelope[T]
	require.NoError(t, json.Unmarshal(resp.Body(), &out), string(resp.Body()))
	return resp.StatusCode(), out
}

func registerAndLogin(t *testing.T, env *testEnv, username string) string {
	t.Helper()

	status, reg := doJSON[session](t, env, http.MethodPost, "/api/register", "", registerRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
	})
	require.Equal(t, http.StatusCreated, status, reg.Error)
	require.NotEmpty(t, reg.Data.Token)

	status, login := doJSON[session](t, env, http.MethodPost, "/api/login", "", loginRequest{Username: username, Password: "secret123"})
	require.Equal(t, http.StatusOK, status, login.Error)
	return login.Data.Token
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, config.Server{})

	// Arrange
	token := registerAndLogin(t, env, "alice")

	t.Run("Duplicate username is rejected", func(t *testing.T) {
		status, res := doJSON[session](t, env, http.MethodPost, "/api/register", "", registerRequest{
			Username: "alice", Email: "other@example.com", Password: "secret123",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.False(t, res.Success)
		assert.Equal(t, "Username already exists", res.Error)
	})

	t.Run("Wrong password is unauthorized", func(t *testing.T) {
		status, res := doJSON[session](t, env, http.MethodPost, "/api/login", "", loginRequest{Username: "alice", Password: "nope-nope"})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Invalid username or password", res.Error)
	})

	t.Run("Profile requires a token", func(t *testing.T) {
		status, res := doJSON[models.User](t, env, http.MethodGet, "/api/profile", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Authentication required", res.Error)

		status, _ = doJSON[models.User](t, env, http.MethodGet, "/api/profile", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("Profile returns the user", func(t *testing.T) {
		status, res := doJSON[models.User](t, env, http.MethodGet, "/api/profile", token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "alice", res.Data.Username)
		assert.Equal(t, 10000.0, res.Data.Balance)
	})
}

func TestPaperTrading(t *testing.T) {
	env := newTestEnv(t, config.Server{})
	token := registerAndLogin(t, env, "bob")

	// Act
	status, res := doJSON[paper.TradeResult](t, env, http.MethodPost, "/api/trade", token, tradeRequest{
		Symbol: "btc/usdt", Side: "buy", Quantity: 0.5, Price: 100,
	})

	// Assert
	require.Equal(t, http.StatusOK, status, res.Error)
	assert.Equal(t, "BTCUSDT", res.Data.Symbol)
	assert.Equal(t, 9950.0, res.Data.NewBalance)

	status, list := doJSON[struct {
		Count int `json:"count"`
	}](t, env, http.MethodGet, "/api/trades", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, list.Data.Count)

	t.Run("Selling more than held is a bad request", func(t *testing.T) {
		status, res := doJSON[paper.TradeResult](t, env, http.MethodPost, "/api/trade", token, tradeRequest{
			Symbol: "BTCUSDT", Side: "SELL", Quantity: 5, Price: 100,
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.False(t, res.Success)
	})
}

func TestSetSymbol(t *testing.T) {
	env := newTestEnv(t, config.Server{})
	token := registerAndLogin(t, env, "carol")

	tests := []struct {
		name       string
		symbol     string
		wantStatus int
		want       string
	}{
		{"Pair is normalised", "eth/usdt", http.StatusOK, "ETHUSDT"},
		{"Empty symbol", "", http.StatusBadRequest, ""},
		{"Bad characters", "BTC-USDT!", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res := doJSON[map[string]string](t, env, http.MethodPost, "/api/set_symbol", token, map[string]string{"symbol": tt.symbol})
			assert.Equal(t, tt.wantStatus, status)
			if tt.want != "" {
				assert.Equal(t, tt.want, res.Data["symbol"])
			}
		})
	}
}

func TestGridBotLifecycle(t *testing.T) {
	env := newTestEnv(t, config.Server{})
	token := registerAndLogin(t, env, "dave")

	// Arrange
	status, createRes := doJSON[grid.CreateResult](t, env, http.MethodPost, "/api/grid_bot/create", token, map[string]interface{}{
		"symbol":      "BTCUSDT",
		"lower_price": 90,
		"upper_price": 110,
		"grid_count":  5,
		"investment":  1000,
	})
	require.Equal(t, http.StatusCreated, status, createRes.Error)
	assert.Equal(t, 9000.0, createRes.Data.NewBalance)
	botPath := "/api/grid_bot/" + strconv.FormatUint(uint64(createRes.Data.Bot.ID), 10)

	t.Run("Levels and listings", func(t *testing.T) {
		status, levels := doJSON[struct {
			Count int `json:"count"`
		}](t, env, http.MethodGet, botPath+"/levels", token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 5, levels.Data.Count)

		status, active := doJSON[botSummaries](t, env, http.MethodGet, "/api/bots/active", token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 1, active.Data.Count)
		assert.Len(t, active.Data.Grid, 1)

		status, _ = doJSON[botSummaries](t, env, http.MethodGet, "/api/bots/futures", token, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("Other users cannot see the bot", func(t *testing.T) {
		other := registerAndLogin(t, env, "eve")
		status, res := doJSON[grid.Stats](t, env, http.MethodGet, botPath+"/stats", other, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, grid.ErrNotFound.Error(), res.Error)
	})

	t.Run("Stop refunds once", func(t *testing.T) {
		status, res := doJSON[map[string]interface{}](t, env, http.MethodPost, botPath+"/stop", token, nil)
		require.Equal(t, http.StatusOK, status, res.Error)
		assert.Equal(t, 1000.0, res.Data["returned_investment"])

		status, _ = doJSON[map[string]interface{}](t, env, http.MethodPost, botPath+"/stop", token, nil)
		assert.Equal(t, http.StatusBadRequest, status)

		var user models.User
		require.NoError(t, env.db.Where("username = ?", "dave").First(&user).Error)
		assert.Equal(t, 10000.0, user.Balance)
	})

	t.Run("Delete removes the bot", func(t *testing.T) {
		status, _ := doJSON[map[string]interface{}](t, env, http.MethodDelete, botPath+"/delete", token, nil)
		require.Equal(t, http.StatusOK, status)

		status, _ = doJSON[map[string]interface{}](t, env, http.MethodGet, botPath+"/levels", token, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("Invalid id", func(t *testing.T) {
		status, res := doJSON[map[string]interface{}](t, env, http.MethodGet, "/api/grid_bot/abc/levels", token, nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid id", res.Error)
	})
}

func TestPriceEndpoint(t *testing.T) {
	env := newTestEnv(t, config.Server{})
	require.NoError(t, env.db.Create(&models.PriceHistory{
		Symbol: "BTCUSDT", Timestamp: time.Now().UTC(), Open: 98000, High: 99000, Low: 97000, Close: 98549.53, Volume: 10,
	}).Error)

	status, res := doJSON[map[string]interface{}](t, env, http.MethodGet, "/api/price/btcusdt", "", nil)
	require.Equal(t, http.StatusOK, status, res.Error)
	assert.Equal(t, "BTCUSDT", res.Data["symbol"])
	assert.Equal(t, "$98,549.53", res.Data["formatted"])

	status, _ = doJSON[map[string]interface{}](t, env, http.MethodGet, "/api/price/ETHUSDT", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthAndMiddleware(t *testing.T) {
	env := newTestEnv(t, config.Server{})

	t.Run("Health is degraded without price data", func(t *testing.T) {
		status, res := doJSON[diagnostics.Health](t, env, http.MethodGet, "/api/health", "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.True(t, res.Success)
		assert.Equal(t, diagnostics.StatusDegraded, res.Data.Status)
	})

	t.Run("Request id is generated or echoed", func(t *testing.T) {
		resp, err := env.client.R().Get("/api/health")
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Header().Get("X-Request-ID"))

		resp, err = env.client.R().SetHeader("X-Request-ID", "req-123").Get("/api/health")
		require.NoError(t, err)
		assert.Equal(t, "req-123", resp.Header().Get("X-Request-ID"))
	})

	t.Run("CORS preflight", func(t *testing.T) {
		resp, err := env.client.R().Options("/api/trade")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode())
		assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Engine status without a scheduler", func(t *testing.T) {
		token := registerAndLogin(t, env, "frank")
		status, res := doJSON[map[string]interface{}](t, env, http.MethodGet, "/api/engine/status", token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, false, res.Data["running"])
	})
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, config.Server{RateLimit: 1, RateLimitBurst: 1})

	status, _ := doJSON[diagnostics.Health](t, env, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, res := doJSON[map[string]interface{}](t, env, http.MethodGet, "/api/market/top", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "Too many requests, please slow down", res.Error)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"Validation", validation.Errorf("Invalid symbol"), http.StatusBadRequest},
		{"Bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"Missing grid bot", fmt.Errorf("stop: %w", grid.ErrNotFound), http.StatusNotFound},
		{"Lot size", exchange.ErrBelowLotSize, http.StatusBadRequest},
		{"Upstream rate limit", market.ErrRateLimited, http.StatusTooManyRequests},
		{"Upstream key rejected", fmt.Errorf("listings: %w", market.ErrInvalidAPIKey), http.StatusBadGateway},
		{"Anything else", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	// Arrange
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), RecoveryMiddleware(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("nil map write") })
	rec := httptest.NewRecorder()

	// Act
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	// Assert
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var res envelope[any]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	assert.False(t, res.Success)
	assert.Equal(t, "Internal server error", res.Error)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMarketDemoMode(t *testing.T) {
	env := newTestEnv(t, config.Server{})

	status, res := doJSON[map[string]interface{}](t, env, http.MethodGet, "/api/market/live_prices?symbols=BTC,ETH", "", nil)
	require.Equal(t, http.StatusOK, status, res.Error)
	assert.True(t, res.Success)
}

func TestStreamPrices(t *testing.T) {
	env := newTestEnv(t, config.Server{})
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/prices?symbols=BTC"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg envelope[market.LivePrices]
	require.NoError(t, conn.ReadJSON(&msg))
	assert.True(t, msg.Success)
	assert.True(t, msg.Data.DemoMode)
	assert.Contains(t, msg.Data.Prices, "BTC")
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{98549.53, "$98,549.53"},
		{1234567.891, "$1,234,567.89"},
		{999, "$999.00"},
		{0, "$0.00"},
		{-1500.5, "-$1,500.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatUSD(tt.in))
	}
}
