package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-trading-assistant-go/internal/cache"
	"ai-trading-assistant-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryCache is an in-process cache.Cache for tests.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(b, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	return nil
}

func (m *memoryCache) Publish(context.Context, string, interface{}) error { return nil }

func TestFormatLargeNumber(t *testing.T) {
	tests := map[float64]string{
		1_500_000:         "1.50M",
		2_340_000_000_000: "2.34T",
		950_000_000:       "950.00M",
		1_200_000_000:     "1.20B",
		12_346:            "12.35K",
		999.5:             "999.50",
		-1_500_000:        "-1.50M",
		999_995:           "1.00M",
		999_994:           "999.99K",
		-999_995_000:      "-1.00B",
		999.999:           "1.00K",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatLargeNumber(in), "input %v", in)
	}
}

func TestClampLimitAndParseSymbols(t *testing.T) {
	assert.Equal(t, 100, ClampLimit(0))
	assert.Equal(t, 5000, ClampLimit(9000))
	assert.Equal(t, 10, ClampLimit(10))

	assert.Equal(t, []string{"BTC", "ETH"}, ParseSymbols(" btc, eth ,"))
	assert.Equal(t, DefaultSymbols, ParseSymbols(""))
}

func TestDemoMode(t *testing.T) {
	svc := NewService(config.Market{CMCApiKey: "YOUR_API_KEY_HERE"}, nil, zap.NewNop())
	ctx := context.Background()
	require.True(t, svc.DemoMode())

	top, err := svc.TopCoins(ctx, 3)
	require.NoError(t, err)
	assert.True(t, top.DemoMode)
	assert.Len(t, top.Coins, 3)
	assert.Equal(t, "BTC", top.Coins[0].Symbol)
	assert.Equal(t, "1.95T", top.Coins[0].MarketCapFormatted)
	assert.Equal(t, "45.00B", top.Coins[0].Volume24hFormatted)

	all, err := svc.TopCoins(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, all.Count)

	live, err := svc.LivePrices(ctx, []string{"SOL", "DOGE"})
	require.NoError(t, err)
	assert.True(t, live.DemoMode)
	assert.Equal(t, 230.0, live.Prices["SOL"].Price)
	assert.Equal(t, 0.0, live.Prices["DOGE"].Price)

	btc, err := svc.TokenDetails(ctx, "btc")
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin", btc.Name)
	assert.Equal(t, 21000000.0, *btc.MaxSupply)
	assert.Equal(t, "1.95T", btc.MarketCapFormatted)

	unknown, err := svc.TokenDetails(ctx, "PEPE")
	require.NoError(t, err)
	assert.Equal(t, "Demo mode - API key not configured", unknown.Description)
}

func newCMCServer(t *testing.T, calls *int32, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "secret", r.Header.Get("X-CMC_PRO_API_KEY"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/cryptocurrency/listings/latest":
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			assert.Equal(t, "market_cap", r.URL.Query().Get("sort"))
			_, _ = w.Write([]byte(`{"data":[
				{"id":1,"name":"Bitcoin","symbol":"BTC","cmc_rank":1,"circulating_supply":19000000,"max_supply":21000000,
				 "quote":{"USD":{"price":98500.123,"market_cap":1.95e12,"volume_24h":4.5e10,"percent_change_24h":2.346}}},
				{"id":1027,"name":"Ethereum","symbol":"ETH","cmc_rank":2,"max_supply":null,
				 "quote":{"USD":{"price":3800}}}
			]}`))
		case "/cryptocurrency/quotes/latest":
			_, _ = w.Write([]byte(`{"data":{"BTC":{"id":1,"name":"Bitcoin","symbol":"BTC","slug":"bitcoin","cmc_rank":1,
				"urls":{"website":["https://bitcoin.org"]},
				"quote":{"USD":{"price":98500,"percent_change_1h":0.5,"last_updated":"2025-01-01T00:00:00Z"}}}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestTopCoins_LiveAndCached(t *testing.T) {
	// Arrange
	var calls int32
	server := newCMCServer(t, &calls, http.StatusOK)
	defer server.Close()
	svc := NewService(config.Market{CMCApiKey: "secret", CMCBaseURL: server.URL}, newMemoryCache(), zap.NewNop())

	// Act
	top, err := svc.TopCoins(context.Background(), 2)
	require.NoError(t, err)
	again, err := svc.TopCoins(context.Background(), 2)
	require.NoError(t, err)

	// Assert
	assert.False(t, top.DemoMode)
	require.Len(t, top.Coins, 2)
	assert.Equal(t, 98500.12, top.Coins[0].Price)
	assert.Equal(t, 2.35, top.Coins[0].PercentChange24h)
	assert.Equal(t, 21000000.0, *top.Coins[0].MaxSupply)
	assert.Nil(t, top.Coins[1].MaxSupply)
	assert.Equal(t, "1.95T", top.Coins[0].MarketCapFormatted)
	assert.Equal(t, "0.00", top.Coins[1].Volume24hFormatted)
	assert.Equal(t, top.Coins, again.Coins)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTopCoins_StatusErrors(t *testing.T) {
	for status, want := range map[int]error{
		http.StatusUnauthorized:    ErrInvalidAPIKey,
		http.StatusTooManyRequests: ErrRateLimited,
	} {
		var calls int32
		server := newCMCServer(t, &calls, status)
		svc := NewService(config.Market{CMCApiKey: "secret", CMCBaseURL: server.URL}, nil, zap.NewNop())

		_, err := svc.TopCoins(context.Background(), 2)

		assert.ErrorIs(t, err, want)
		server.Close()
	}

	var calls int32
	server := newCMCServer(t, &calls, http.StatusInternalServerError)
	defer server.Close()
	svc := NewService(config.Market{CMCApiKey: "secret", CMCBaseURL: server.URL}, nil, zap.NewNop())
	_, err := svc.TopCoins(context.Background(), 2)
	assert.EqualError(t, err, "API returned status 500")
}

func TestLivePricesAndTokenDetails(t *testing.T) {
	var calls int32
	server := newCMCServer(t, &calls, http.StatusOK)
	defer server.Close()
	svc := NewService(config.Market{CMCApiKey: "secret", CMCBaseURL: server.URL}, nil, zap.NewNop())
	ctx := context.Background()

	live, err := svc.LivePrices(ctx, []string{"BTC", "XYZ"})
	require.NoError(t, err)
	assert.Len(t, live.Prices, 1)
	assert.Equal(t, 98500.0, live.Prices["BTC"].Price)

	details, err := svc.TokenDetails(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", details.Slug)
	assert.Equal(t, []string{"https://bitcoin.org"}, details.Website)
	assert.Equal(t, "https://s2.coinmarketcap.com/static/img/coins/64x64/1.png", details.Logo)

	_, err = svc.TokenDetails(ctx, "ETH")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestFearGreed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"value":"42","value_classification":"Fear","timestamp":"1735689600","time_until_update":"3600"}]}`))
	}))
	defer server.Close()
	svc := NewService(config.Market{FearGreedURL: server.URL}, nil, zap.NewNop())

	fg, err := svc.FearGreed(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 42, fg.Value)
	assert.Equal(t, "Fear", fg.ValueClassification)
	assert.Equal(t, "2025-01-01 00:00:00", fg.Timestamp)
	assert.Equal(t, "3600", fg.TimeUntilUpdate)
}

func TestFearGreed_EmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()
	svc := NewService(config.Market{FearGreedURL: server.URL}, nil, zap.NewNop())

	_, err := svc.FearGreed(context.Background())

	assert.ErrorIs(t, err, ErrInvalidPayload)
}
