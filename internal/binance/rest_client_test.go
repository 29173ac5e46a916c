package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ai-trading-assistant-go/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	rc := &RestClient{
		client:    resty.New().SetBaseURL(server.URL),
		apiKey:    "test_api_key",
		secretKey: "test_secret_key",
		logger:    zap.NewNop(),
		limiter:   rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
	}

	return rc, server
}

func TestGetServerTime(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		expectedTime := time.Now().UnixMilli()
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/time", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprintf(w, `{"serverTime": %d}`, expectedTime)
		})
		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		serverTime, err := rc.GetServerTime(context.Background())

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, expectedTime, serverTime)
	})

	t.Run("APIError", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code": -1100, "msg": "Illegal characters"}`))
		})
		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		serverTime, err := rc.GetServerTime(context.Background())

		// Assert
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get server time")
		var apiErr *APIError
		assert.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, int64(0), serverTime)
	})

	t.Run("RetriesServerError", func(t *testing.T) {
		// Arrange
		var calls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"serverTime": 7}`))
		})
		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		serverTime, err := rc.GetServerTime(context.Background())

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, int64(7), serverTime)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})
}

func TestGetAllTickerPrices(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ticker/price", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","price":"98500.10"},{"symbol":"ETHUSDT","price":"3800"},{"symbol":"BAD","price":"x"}]`))
	})
	rc, server := setupTestServer(handler)
	defer server.Close()

	prices, err := rc.GetAllTickerPrices(context.Background())

	require.NoError(t, err)
	assert.Len(t, prices, 2)
	assert.Equal(t, 98500.10, prices["BTCUSDT"])
	assert.Equal(t, 3800.0, prices["ETHUSDT"])
}

func TestGetTickerPrice(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SOLUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"SOLUSDT","price":"230.5"}`))
	})
	rc, server := setupTestServer(handler)
	defer server.Close()

	price, err := rc.GetTickerPrice(context.Background(), "SOLUSDT")

	require.NoError(t, err)
	assert.Equal(t, 230.5, price)
}

func TestGetKlines(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			[1735689600000,"100.0","110.0","95.0","105.0","12.5",1735693199999,"0",10,"0","0","0"],
			[1735693200000,"105.0","108.0","101.0","102.0","8.0",1735696799999,"0",10,"0","0","0"]
		]`))
	})
	rc, server := setupTestServer(handler)
	defer server.Close()

	klines, err := rc.GetKlines(context.Background(), "BTCUSDT", "1h", 2)

	require.NoError(t, err)
	require.Len(t, klines, 2)
	assert.Equal(t, time.UnixMilli(1735689600000).UTC(), klines[0].OpenTime)
	assert.Equal(t, 100.0, klines[0].Open)
	assert.Equal(t, 110.0, klines[0].High)
	assert.Equal(t, 95.0, klines[0].Low)
	assert.Equal(t, 105.0, klines[0].Close)
	assert.Equal(t, 12.5, klines[0].Volume)
	assert.Equal(t, 102.0, klines[1].Close)
}

func TestGetAccount_Signed(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/account", r.URL.Path)
		assert.Equal(t, "test_api_key", r.Header.Get("X-MBX-APIKEY"))
		assert.NotEmpty(t, r.URL.Query().Get("signature"))
		assert.NotEmpty(t, r.URL.Query().Get("timestamp"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"canTrade":true,"balances":[{"asset":"BTC","free":"0.5","locked":"0.1"}]}`))
	})
	rc, server := setupTestServer(handler)
	defer server.Close()

	account, err := rc.GetAccount(context.Background())

	require.NoError(t, err)
	assert.True(t, account.CanTrade)
	require.Len(t, account.Balances, 1)
	assert.Equal(t, "BTC", account.Balances[0].Asset)
}

func TestCreateOrder(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/order", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "BTCUSDT", r.PostForm.Get("symbol"))
		assert.Equal(t, "BUY", r.PostForm.Get("side"))
		assert.Equal(t, "MARKET", r.PostForm.Get("type"))
		assert.Equal(t, "0.01", r.PostForm.Get("quantity"))
		assert.NotEmpty(t, r.PostForm.Get("signature"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","orderId":12345,"executedQty":"0.01","cummulativeQuoteQty":"985.0","status":"FILLED","side":"BUY",
			"fills":[{"price":"98500","qty":"0.01","commission":"0.00001","commissionAsset":"BTC"}]}`))
	})
	rc, server := setupTestServer(handler)
	defer server.Close()

	order, err := rc.CreateOrder(context.Background(), "BTCUSDT", OrderSideBuy, 0.01)

	require.NoError(t, err)
	assert.Equal(t, int64(12345), order.OrderID)
	assert.Equal(t, "FILLED", order.Status)
	assert.InDelta(t, 98500.0, order.AveragePrice(), 1e-9)
	fee, asset := order.Commission()
	assert.InDelta(t, 0.00001, fee, 1e-12)
	assert.Equal(t, "BTC", asset)
}

func TestNewRestClient(t *testing.T) {
	t.Run("Testnet", func(t *testing.T) {
		cfg := &config.Binance{Testnet: true, ApiKey: "k", SecretKey: "s"}
		rc := NewRestClient(cfg, zap.NewNop())
		assert.NotNil(t, rc)
		assert.Equal(t, testnetBaseURL, rc.client.BaseURL)
		assert.Equal(t, "k", rc.apiKey)
		assert.Equal(t, "s", rc.secretKey)
	})

	t.Run("Production", func(t *testing.T) {
		cfg := &config.Binance{}
		rc := NewRestClient(cfg, zap.NewNop())
		assert.Equal(t, baseURL, rc.client.BaseURL)
		assert.Equal(t, rate.Limit(20), rc.limiter.Limit())
	})
}
