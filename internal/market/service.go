// Package market fetches market-wide data: the Fear & Greed index and
// CoinMarketCap listings, quotes and token details. Without an API key the
// CoinMarketCap calls answer with static demo data.
package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ai-trading-assistant-go/internal/cache"
	"ai-trading-assistant-go/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrInvalidAPIKey  = errors.New("Invalid CoinMarketCap API key")
	ErrRateLimited    = errors.New("API rate limit exceeded. Try again later.")
	ErrInvalidPayload = errors.New("Invalid API response format")
	ErrTokenNotFound  = errors.New("Token not found")
)

// Cache lifetimes per endpoint.
const (
	listingsTTL  = 60 * time.Second
	quotesTTL    = 15 * time.Second
	fearGreedTTL = 5 * time.Minute
)

const (
	DefaultLimit   = 100
	MaxLimit       = 5000
	defaultConvert = "USD"
	placeholderKey = "YOUR_API_KEY_HERE"
)

// DefaultSymbols are quoted when a live price request names none.
var DefaultSymbols = []string{"BTC", "ETH", "BNB", "SOL", "XRP"}

// FearGreed is the latest Fear & Greed index reading.
type FearGreed struct {
	Value               int    `json:"value"`
	ValueClassification string `json:"value_classification"`
	Timestamp           string `json:"timestamp"`
	TimeUntilUpdate     string `json:"time_until_update"`
}

// Coin is one row of the market cap listing.
type Coin struct {
	Rank               int      `json:"rank"`
	Name               string   `json:"name"`
	Symbol             string   `json:"symbol"`
	Price              float64  `json:"price"`
	MarketCap          float64  `json:"market_cap"`
	Volume24h          float64  `json:"volume_24h"`
	MarketCapFormatted string   `json:"market_cap_formatted"`
	Volume24hFormatted string   `json:"volume_24h_formatted"`
	PercentChange1h    float64  `json:"percent_change_1h"`
	PercentChange24h   float64  `json:"percent_change_24h"`
	PercentChange7d    float64  `json:"percent_change_7d"`
	CirculatingSupply  float64  `json:"circulating_supply"`
	MaxSupply          *float64 `json:"max_supply"`
	LastUpdated        string   `json:"last_updated"`
}

// TopCoins is a market cap listing.
type TopCoins struct {
	Coins    []Coin `json:"data"`
	Count    int    `json:"count"`
	Convert  string `json:"convert"`
	DemoMode bool   `json:"demo_mode"`
	Notice   string `json:"notice,omitempty"`
}

// Quote is the live price of one symbol.
type Quote struct {
	Price            float64 `json:"price"`
	PercentChange1h  float64 `json:"percent_change_1h"`
	PercentChange24h float64 `json:"percent_change_24h"`
	PercentChange7d  float64 `json:"percent_change_7d"`
	Volume24h        float64 `json:"volume_24h"`
	MarketCap        float64 `json:"market_cap"`
	LastUpdated      string  `json:"last_updated,omitempty"`
}

// LivePrices maps symbols to quotes.
type LivePrices struct {
	Prices    map[string]Quote `json:"prices"`
	DemoMode  bool             `json:"demo_mode"`
	Timestamp string           `json:"timestamp"`
}

// TokenDetails is the detailed view of a single token.
type TokenDetails struct {
	Name               string   `json:"name"`
	Symbol             string   `json:"symbol"`
	Slug               string   `json:"slug,omitempty"`
	Logo               string   `json:"logo,omitempty"`
	Category           string   `json:"category,omitempty"`
	Description        string   `json:"description"`
	Tags               []string `json:"tags,omitempty"`
	Price              float64  `json:"price"`
	MarketCap          float64  `json:"market_cap"`
	MarketCapRank      int      `json:"market_cap_rank"`
	Volume24h          float64  `json:"volume_24h"`
	MarketCapFormatted string   `json:"market_cap_formatted"`
	Volume24hFormatted string   `json:"volume_24h_formatted"`
	VolumeChange24h    float64  `json:"volume_change_24h"`
	PercentChange1h    float64  `json:"percent_change_1h"`
	PercentChange24h   float64  `json:"percent_change_24h"`
	PercentChange7d    float64  `json:"percent_change_7d"`
	PercentChange30d   float64  `json:"percent_change_30d"`
	PercentChange60d   float64  `json:"percent_change_60d"`
	PercentChange90d   float64  `json:"percent_change_90d"`
	CirculatingSupply  float64  `json:"circulating_supply"`
	TotalSupply        *float64 `json:"total_supply"`
	MaxSupply          *float64 `json:"max_supply"`
	MarketCapDominance float64  `json:"market_cap_dominance"`
	Website            []string `json:"website,omitempty"`
	Explorer           []string `json:"explorer,omitempty"`
	TechnicalDoc       []string `json:"technical_doc,omitempty"`
	Twitter            []string `json:"twitter,omitempty"`
	Reddit             []string `json:"reddit,omitempty"`
	DateAdded          string   `json:"date_added,omitempty"`
	LastUpdated        string   `json:"last_updated,omitempty"`
	DemoMode           bool     `json:"demo_mode,omitempty"`
}

// Service talks to the market data providers.
type Service struct {
	cmc       *resty.Client
	fearGreed *resty.Client
	fngURL    string
	apiKey    string
	cache     cache.Cache
	group     singleflight.Group
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a market Service. c may be nil to disable caching.
func NewService(cfg config.Market, c cache.Cache, logger *zap.Logger) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	apiKey := strings.TrimSpace(cfg.CMCApiKey)
	if apiKey == placeholderKey {
		apiKey = ""
	}

	return &Service{
		cmc: resty.New().
			SetBaseURL(strings.TrimRight(cfg.CMCBaseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json").
			SetHeader("X-CMC_PRO_API_KEY", apiKey),
		fearGreed: resty.New().SetTimeout(timeout),
		fngURL:    cfg.FearGreedURL,
		apiKey:    apiKey,
		cache:     c,
		logger:    logger.Named("market"),
		now:       time.Now,
	}
}

// DemoMode reports whether CoinMarketCap calls are served from static data.
func (s *Service) DemoMode() bool {
	return s.apiKey == ""
}

// cached serves key from the cache or runs fetch once for all concurrent callers.
func cached[T any](ctx context.Context, s *Service, key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	var out T
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &out); err == nil {
			return out, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		res, err := fetch()
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, res, ttl); err != nil {
				s.logger.Warn("Failed to cache market data", zap.String("key", key), zap.Error(err))
			}
		}
		return res, nil
	})
	if err != nil {
		return out, err
	}
	return v.(T), nil
}

// FearGreed fetches the latest Fear & Greed index.
func (s *Service) FearGreed(ctx context.Context) (*FearGreed, error) {
	fg, err := cached(ctx, s, "market:fear_greed", fearGreedTTL, func() (FearGreed, error) {
		var payload struct {
			Data []struct {
				Value               string `json:"value"`
				ValueClassification string `json:"value_classification"`
				Timestamp           string `json:"timestamp"`
				TimeUntilUpdate     string `json:"time_until_update"`
			} `json:"data"`
		}
		resp, err := s.fearGreed.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{"limit": "1", "format": "json"}).
			SetResult(&payload).
			Get(s.fngURL)
		if err != nil {
			return FearGreed{}, fmt.Errorf("failed to fetch fear and greed index: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return FearGreed{}, fmt.Errorf("API returned status %d", resp.StatusCode())
		}
		if len(payload.Data) == 0 {
			return FearGreed{}, ErrInvalidPayload
		}

		latest := payload.Data[0]
		value, err := strconv.Atoi(latest.Value)
		if err != nil {
			return FearGreed{}, fmt.Errorf("%w: value %q", ErrInvalidPayload, latest.Value)
		}
		ts := latest.Timestamp
		if sec, err := strconv.ParseInt(latest.Timestamp, 10, 64); err == nil {
			ts = time.Unix(sec, 0).UTC().Format(time.DateTime)
		}
		until := latest.TimeUntilUpdate
		if until == "" {
			until = "Unknown"
		}
		return FearGreed{
			Value:               value,
			ValueClassification: latest.ValueClassification,
			Timestamp:           ts,
			TimeUntilUpdate:     until,
		}, nil
	})
	if err != nil {
		s.logger.Warn("Fear and greed fetch failed", zap.Error(err))
		return nil, err
	}
	return &fg, nil
}

// ClampLimit keeps a listing size within 1..5000. Non-positive values mean the default.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

type cmcQuote struct {
	Price              float64 `json:"price"`
	Volume24h          float64 `json:"volume_24h"`
	VolumeChange24h    float64 `json:"volume_change_24h"`
	PercentChange1h    float64 `json:"percent_change_1h"`
	PercentChange24h   float64 `json:"percent_change_24h"`
	PercentChange7d    float64 `json:"percent_change_7d"`
	PercentChange30d   float64 `json:"percent_change_30d"`
	PercentChange60d   float64 `json:"percent_change_60d"`
	PercentChange90d   float64 `json:"percent_change_90d"`
	MarketCap          float64 `json:"market_cap"`
	MarketCapDominance float64 `json:"market_cap_dominance"`
	LastUpdated        string  `json:"last_updated"`
}

type cmcCoin struct {
	ID                int                 `json:"id"`
	Name              string              `json:"name"`
	Symbol            string              `json:"symbol"`
	Slug              string              `json:"slug"`
	Category          string              `json:"category"`
	Description       string              `json:"description"`
	Tags              []string            `json:"tags"`
	CMCRank           int                 `json:"cmc_rank"`
	CirculatingSupply float64             `json:"circulating_supply"`
	TotalSupply       *float64            `json:"total_supply"`
	MaxSupply         *float64            `json:"max_supply"`
	DateAdded         string              `json:"date_added"`
	LastUpdated       string              `json:"last_updated"`
	URLs              map[string][]string `json:"urls"`
	Quote             map[string]cmcQuote `json:"quote"`
}

// statusError maps CoinMarketCap HTTP failures to user-facing errors.
func statusError(resp *resty.Response) error {
	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return ErrInvalidAPIKey
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return fmt.Errorf("API returned status %d", resp.StatusCode())
}

// TopCoins returns the largest coins by market cap.
func (s *Service) TopCoins(ctx context.Context, limit int) (*TopCoins, error) {
	limit = ClampLimit(limit)
	if s.DemoMode() {
		n := limit
		if n > len(demoCoins) {
			n = len(demoCoins)
		}
		coins := append([]Coin(nil), demoCoins[:n]...)
		for i := range coins {
			coins[i].format()
		}
		return &TopCoins{
			Coins:    coins,
			Count:    len(coins),
			Convert:  defaultConvert,
			DemoMode: true,
			Notice:   "API key not configured. Get free key at https://coinmarketcap.com/api/",
		}, nil
	}

	key := fmt.Sprintf("market:top:%d", limit)
	top, err := cached(ctx, s, key, listingsTTL, func() (TopCoins, error) {
		var payload struct {
			Data []cmcCoin `json:"data"`
		}
		resp, err := s.cmc.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"limit":    strconv.Itoa(limit),
				"convert":  defaultConvert,
				"sort":     "market_cap",
				"sort_dir": "desc",
			}).
			SetResult(&payload).
			Get("/cryptocurrency/listings/latest")
		if err != nil {
			return TopCoins{}, fmt.Errorf("failed to fetch listings: %w", err)
		}
		if err := statusError(resp); err != nil {
			return TopCoins{}, err
		}
		if payload.Data == nil {
			return TopCoins{}, ErrInvalidPayload
		}

		coins := make([]Coin, 0, len(payload.Data))
		for _, c := range payload.Data {
			q, ok := c.Quote[defaultConvert]
			if !ok {
				continue
			}
			coin := Coin{
				Rank:              c.CMCRank,
				Name:              c.Name,
				Symbol:            c.Symbol,
				Price:             round2(q.Price),
				MarketCap:         round2(q.MarketCap),
				Volume24h:         round2(q.Volume24h),
				PercentChange1h:   round2(q.PercentChange1h),
				PercentChange24h:  round2(q.PercentChange24h),
				PercentChange7d:   round2(q.PercentChange7d),
				CirculatingSupply: round2(c.CirculatingSupply),
				LastUpdated:       c.LastUpdated,
			}
			if c.MaxSupply != nil && *c.MaxSupply > 0 {
				coin.MaxSupply = floatPtr(round2(*c.MaxSupply))
			}
			coin.format()
			coins = append(coins, coin)
		}
		return TopCoins{Coins: coins, Count: len(coins), Convert: defaultConvert}, nil
	})
	if err != nil {
		s.logger.Warn("Listings fetch failed", zap.Int("limit", limit), zap.Error(err))
		return nil, err
	}
	return &top, nil
}

// ParseSymbols splits a comma separated symbol list. An empty list yields DefaultSymbols.
func ParseSymbols(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if sym := strings.ToUpper(strings.TrimSpace(part)); sym != "" {
			out = append(out, sym)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultSymbols...)
	}
	return out
}

// LivePrices quotes the given symbols.
func (s *Service) LivePrices(ctx context.Context, symbols []string) (*LivePrices, error) {
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	stamp := s.now().UTC().Format(time.DateTime)

	if s.DemoMode() {
		out := &LivePrices{Prices: make(map[string]Quote, len(symbols)), DemoMode: true, Timestamp: stamp}
		for _, sym := range symbols {
			out.Prices[sym] = demoQuote(sym)
		}
		return out, nil
	}

	joined := strings.Join(symbols, ",")
	quotes, err := cached(ctx, s, "market:quotes:"+joined, quotesTTL, func() (map[string]Quote, error) {
		data, err := s.quotesLatest(ctx, joined, "")
		if err != nil {
			return nil, err
		}
		out := make(map[string]Quote, len(symbols))
		for _, sym := range symbols {
			c, ok := data[sym]
			if !ok {
				continue
			}
			q := c.Quote[defaultConvert]
			out[sym] = Quote{
				Price:            round2(q.Price),
				PercentChange1h:  round2(q.PercentChange1h),
				PercentChange24h: round2(q.PercentChange24h),
				PercentChange7d:  round2(q.PercentChange7d),
				Volume24h:        round2(q.Volume24h),
				MarketCap:        round2(q.MarketCap),
				LastUpdated:      q.LastUpdated,
			}
		}
		return out, nil
	})
	if err != nil {
		s.logger.Warn("Live price fetch failed", zap.Strings("symbols", symbols), zap.Error(err))
		return nil, err
	}
	return &LivePrices{Prices: quotes, Timestamp: stamp}, nil
}

func (s *Service) quotesLatest(ctx context.Context, symbols, aux string) (map[string]cmcCoin, error) {
	var payload struct {
		Data map[string]cmcCoin `json:"data"`
	}
	params := map[string]string{"symbol": symbols, "convert": defaultConvert}
	if aux != "" {
		params["aux"] = aux
	}
	resp, err := s.cmc.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&payload).
		Get("/cryptocurrency/quotes/latest")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}
	if err := statusError(resp); err != nil {
		return nil, err
	}
	if payload.Data == nil {
		return nil, ErrInvalidPayload
	}
	return payload.Data, nil
}

// TokenDetails returns the detailed view of one token.
func (s *Service) TokenDetails(ctx context.Context, symbol string) (*TokenDetails, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if s.DemoMode() {
		d, ok := demoDetails[symbol]
		if !ok {
			d = TokenDetails{Name: symbol, Symbol: symbol, Description: "Demo mode - API key not configured"}
		}
		d.DemoMode = true
		d.format()
		return &d, nil
	}

	details, err := cached(ctx, s, "market:token:"+symbol, quotesTTL, func() (TokenDetails, error) {
		data, err := s.quotesLatest(ctx, symbol, "urls,logo,description,tags,platform,date_added,notice")
		if err != nil {
			return TokenDetails{}, err
		}
		c, ok := data[symbol]
		if !ok {
			return TokenDetails{}, ErrTokenNotFound
		}
		q := c.Quote[defaultConvert]
		d := TokenDetails{
			Name:               c.Name,
			Symbol:             c.Symbol,
			Slug:               c.Slug,
			Logo:               fmt.Sprintf("https://s2.coinmarketcap.com/static/img/coins/64x64/%d.png", c.ID),
			Category:           c.Category,
			Description:        c.Description,
			Tags:               c.Tags,
			Price:              round2(q.Price),
			MarketCap:          round2(q.MarketCap),
			MarketCapRank:      c.CMCRank,
			Volume24h:          round2(q.Volume24h),
			VolumeChange24h:    round2(q.VolumeChange24h),
			PercentChange1h:    round2(q.PercentChange1h),
			PercentChange24h:   round2(q.PercentChange24h),
			PercentChange7d:    round2(q.PercentChange7d),
			PercentChange30d:   round2(q.PercentChange30d),
			PercentChange60d:   round2(q.PercentChange60d),
			PercentChange90d:   round2(q.PercentChange90d),
			CirculatingSupply:  round2(c.CirculatingSupply),
			MarketCapDominance: round2(q.MarketCapDominance),
			Website:            c.URLs["website"],
			Explorer:           c.URLs["explorer"],
			TechnicalDoc:       c.URLs["technical_doc"],
			Twitter:            c.URLs["twitter"],
			Reddit:             c.URLs["reddit"],
			DateAdded:          c.DateAdded,
			LastUpdated:        q.LastUpdated,
		}
		if c.TotalSupply != nil && *c.TotalSupply > 0 {
			d.TotalSupply = floatPtr(round2(*c.TotalSupply))
		}
		if c.MaxSupply != nil && *c.MaxSupply > 0 {
			d.MaxSupply = floatPtr(round2(*c.MaxSupply))
		}
		d.format()
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return &details, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
