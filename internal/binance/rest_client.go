package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ai-trading-assistant-go/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	baseURL         = "https://api.binance.com/api/v3"
	testnetBaseURL  = "https://testnet.binance.vision/api/v3"
	recvWindow      = "5000" // How long a signed request is valid in milliseconds
	OrderTypeMarket = "MARKET"
	OrderSideBuy    = "BUY"
	OrderSideSell   = "SELL"
)

// MarketDataClient is the public, unsigned part of the Binance API.
type MarketDataClient interface {
	GetServerTime(ctx context.Context) (int64, error)
	GetAllTickerPrices(ctx context.Context) (map[string]float64, error)
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)
}

// RestClientInterface defines the interface for the Binance REST API client.
type RestClientInterface interface {
	MarketDataClient
	GetExchangeInfo(ctx context.Context) (*ExchangeInfoResponse, error)
	GetAccount(ctx context.Context) (*AccountResponse, error)
	CreateOrder(ctx context.Context, symbol, side string, quantity float64) (*CreateOrderResponse, error)
}

// RestClient is a client for the Binance REST API.
// It implements the RestClientInterface.
type RestClient struct {
	client    *resty.Client
	apiKey    string
	secretKey string
	logger    *zap.Logger
	limiter   *rate.Limiter
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new Binance REST API client.
func NewRestClient(cfg *config.Binance, logger *zap.Logger) *RestClient {
	var url string
	if cfg.Testnet {
		url = testnetBaseURL
		logger.Warn("Using Binance Testnet")
	} else {
		url = baseURL
		logger.Debug("Using Binance Production API")
	}

	client := resty.New().
		SetBaseURL(url).
		SetTimeout(15 * time.Second)

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 20
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 5
	}

	return &RestClient{
		client:    client,
		apiKey:    cfg.ApiKey,
		secretKey: cfg.SecretKey,
		logger:    logger.Named("binance"),
		limiter:   rate.NewLimiter(rate.Limit(limit), burst),
	}
}

// sign creates a HMAC-SHA256 signature for the request.
func (c *RestClient) sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// signedParams adds timestamp, recvWindow and signature to params.
func (c *RestClient) signedParams(params url.Values) url.Values {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", recvWindow)
	params.Set("signature", c.sign(params.Encode()))
	return params
}

// GetServerTime fetches the current server time from Binance.
// It doubles as the connectivity check.
func (c *RestClient) GetServerTime(ctx context.Context) (int64, error) {
	type ServerTimeResponse struct {
		ServerTime int64 `json:"serverTime"`
	}

	req := c.client.R().
		SetContext(ctx).
		SetResult(&ServerTimeResponse{})

	resp, err := c.doRequest(ctx, http.MethodGet, "/time", req)
	if err != nil {
		c.logger.Error("Failed to get server time", zap.Error(err))
		return 0, fmt.Errorf("failed to get server time: %w", err)
	}

	result := resp.Result().(*ServerTimeResponse)
	return result.ServerTime, nil
}

// TickerPrice represents the response for a single ticker price.
type TickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil && resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == http.StatusTeapot {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else {
			// Network or other client-side errors
			shouldRetry = ctx.Err() == nil
		}

		if !shouldRetry {
			if err != nil {
				return nil, fmt.Errorf("request failed: %w", err)
			}
			return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
		}

		if i == maxRetries-1 {
			break
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err == nil && resp != nil {
		err = &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// APIError is a non-retryable error response from Binance.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Body)
}

// GetAllTickerPrices fetches the latest price for all symbols.
func (c *RestClient) GetAllTickerPrices(ctx context.Context) (map[string]float64, error) {
	var prices []*TickerPrice

	req := c.client.R().
		SetContext(ctx).
		SetResult(&prices)

	resp, err := c.doRequest(ctx, http.MethodGet, "/ticker/price", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get all ticker prices: %w", err)
	}

	result := resp.Result().(*[]*TickerPrice)
	priceMap := make(map[string]float64, len(*result))
	for _, p := range *result {
		v, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			c.logger.Warn("Skipping unparsable ticker price", zap.String("symbol", p.Symbol), zap.String("price", p.Price))
			continue
		}
		priceMap[p.Symbol] = v
	}

	return priceMap, nil
}

// GetTickerPrice fetches the latest price of one symbol.
func (c *RestClient) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&TickerPrice{})

	resp, err := c.doRequest(ctx, http.MethodGet, "/ticker/price", req)
	if err != nil {
		return 0, fmt.Errorf("failed to get ticker price for %s: %w", symbol, err)
	}

	tp := resp.Result().(*TickerPrice)
	price, err := strconv.ParseFloat(tp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q for %s: %w", tp.Price, symbol, err)
	}
	return price, nil
}

// ExchangeInfoResponse represents the full response from the /exchangeInfo endpoint.
type ExchangeInfoResponse struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// SymbolInfo contains information about a specific trading symbol.
type SymbolInfo struct {
	Symbol     string   `json:"symbol"`
	Status     string   `json:"status"`
	BaseAsset  string   `json:"baseAsset"`
	QuoteAsset string   `json:"quoteAsset"`
	Filters    []Filter `json:"filters"`
}

// Filter represents a single filter for a symbol.
// Only LOT_SIZE is used, for its stepSize.
type Filter struct {
	FilterType string `json:"filterType"`
	MinQty     string `json:"minQty,omitempty"`
	MaxQty     string `json:"maxQty,omitempty"`
	StepSize   string `json:"stepSize,omitempty"`
}

// GetExchangeInfo fetches exchange trading rules and symbol information.
func (c *RestClient) GetExchangeInfo(ctx context.Context) (*ExchangeInfoResponse, error) {
	var exchangeInfo ExchangeInfoResponse

	req := c.client.R().
		SetContext(ctx).
		SetResult(&exchangeInfo)

	resp, err := c.doRequest(ctx, http.MethodGet, "/exchangeInfo", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", err)
	}

	return resp.Result().(*ExchangeInfoResponse), nil
}

// Balance is one asset line of the account endpoint.
type Balance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// AccountResponse represents the signed /account response.
type AccountResponse struct {
	CanTrade bool      `json:"canTrade"`
	Balances []Balance `json:"balances"`
}

// GetAccount fetches the balances of the authenticated account.
func (c *RestClient) GetAccount(ctx context.Context) (*AccountResponse, error) {
	params := c.signedParams(url.Values{})

	req := c.client.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetQueryString(params.Encode()).
		SetResult(&AccountResponse{})

	resp, err := c.doRequest(ctx, http.MethodGet, "/account", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return resp.Result().(*AccountResponse), nil
}

// Fill is a partial execution of an order.
type Fill struct {
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
}

// CreateOrderResponse represents the response from creating a new order.
type CreateOrderResponse struct {
	Symbol              string `json:"symbol"`
	OrderID             int64  `json:"orderId"`
	ClientOrderID       string `json:"clientOrderId"`
	TransactTime        int64  `json:"transactTime"`
	Price               string `json:"price"`
	OrigQuantity        string `json:"origQty"`
	ExecutedQuantity    string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Status              string `json:"status"`
	TimeInForce         string `json:"timeInForce"`
	Type                string `json:"type"`
	Side                string `json:"side"`
	Fills               []Fill `json:"fills"`
}

// AveragePrice is quote quantity over executed quantity, or 0 when nothing filled.
func (r *CreateOrderResponse) AveragePrice() float64 {
	executed, _ := strconv.ParseFloat(r.ExecutedQuantity, 64)
	quote, _ := strconv.ParseFloat(r.CummulativeQuoteQty, 64)
	if executed <= 0 {
		return 0
	}
	return quote / executed
}

// Commission sums the fill commissions and returns them with the commission asset.
func (r *CreateOrderResponse) Commission() (float64, string) {
	var total float64
	var asset string
	for _, f := range r.Fills {
		v, _ := strconv.ParseFloat(f.Commission, 64)
		total += v
		asset = f.CommissionAsset
	}
	return total, asset
}

// CreateOrder places a MARKET order on Binance.
func (c *RestClient) CreateOrder(ctx context.Context, symbol, side string, quantity float64) (*CreateOrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", OrderTypeMarket)
	params.Set("quantity", strconv.FormatFloat(quantity, 'f', -1, 64))
	params.Set("newOrderRespType", "FULL")
	params = c.signedParams(params)

	req := c.client.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(params.Encode()).
		SetResult(&CreateOrderResponse{})

	resp, err := c.doRequest(ctx, http.MethodPost, "/order", req)
	if err != nil {
		c.logger.Error("Failed to create order after multiple attempts",
			zap.Error(err),
			zap.String("symbol", symbol),
		)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	result := resp.Result().(*CreateOrderResponse)
	c.logger.Info("Successfully created order",
		zap.String("symbol", result.Symbol),
		zap.Int64("order_id", result.OrderID),
		zap.String("status", result.Status),
	)
	return result, nil
}
