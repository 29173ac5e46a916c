// Package exchange exposes account-scoped exchange clients behind one interface.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-trading-assistant-go/internal/binance"
	"ai-trading-assistant-go/internal/config"
	"go.uber.org/zap"
)

// ErrUnsupportedExchange is returned for exchanges without a live client.
var ErrUnsupportedExchange = errors.New("exchange not supported for live trading")

// Info describes a supported exchange.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	HasTestnet  bool   `json:"has_testnet"`
}

// Supported lists the exchanges an account can be linked to, in display order.
var Supported = []Info{
	{ID: "binance", Name: "Binance", Description: "World's largest crypto exchange", HasTestnet: true},
	{ID: "bybit", Name: "Bybit", Description: "Popular derivatives exchange", HasTestnet: true},
	{ID: "okx", Name: "OKX", Description: "Major exchange with spot and futures", HasTestnet: true},
	{ID: "mexc", Name: "MEXC", Description: "Wide selection of altcoins"},
	{ID: "bingx", Name: "BingX", Description: "Copy trading and derivatives"},
}

// Lookup finds a supported exchange by id, case-insensitively.
func Lookup(name string) (Info, bool) {
	id := strings.ToLower(strings.TrimSpace(name))
	for _, info := range Supported {
		if info.ID == id {
			return info, true
		}
	}
	return Info{}, false
}

// Names returns the ids of every supported exchange.
func Names() []string {
	out := make([]string, len(Supported))
	for i, info := range Supported {
		out[i] = info.ID
	}
	return out
}

// Balance is the holding of one asset.
type Balance struct {
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
	Total  float64 `json:"total"`
}

// Order is the normalised result of a market order.
type Order struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	Side        string      `json:"side"`
	Amount      float64     `json:"amount"`
	Filled      float64     `json:"filled"`
	AvgPrice    float64     `json:"average"`
	Status      string      `json:"status"`
	Fee         float64     `json:"fee"`
	FeeCurrency string      `json:"fee_currency"`
	Raw         interface{} `json:"raw,omitempty"`
}

// Client is a connection to one exchange account.
type Client interface {
	TestConnection(ctx context.Context) error
	Balances(ctx context.Context) (map[string]Balance, error)
	PlaceMarketOrder(ctx context.Context, symbol, side string, amount float64) (*Order, error)
	TickerPrices(ctx context.Context) (map[string]float64, error)
}

// Credentials identify an exchange account.
type Credentials struct {
	Exchange  string
	APIKey    string
	APISecret string
	Testnet   bool
}

// Factory builds clients from credentials.
type Factory interface {
	New(creds Credentials) (Client, error)
}

// DefaultFactory builds live clients. Only Binance is backed by a real connector.
type DefaultFactory struct {
	cfg    config.Binance
	logger *zap.Logger
}

var _ Factory = (*DefaultFactory)(nil)

// NewFactory creates a DefaultFactory. cfg supplies the rate limits shared by every client.
func NewFactory(cfg config.Binance, logger *zap.Logger) *DefaultFactory {
	return &DefaultFactory{cfg: cfg, logger: logger.Named("exchange")}
}

// New returns a client for the account's exchange.
func (f *DefaultFactory) New(creds Credentials) (Client, error) {
	info, ok := Lookup(creds.Exchange)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExchange, creds.Exchange)
	}
	switch info.ID {
	case "binance":
		cfg := f.cfg
		cfg.ApiKey = creds.APIKey
		cfg.SecretKey = creds.APISecret
		cfg.Testnet = creds.Testnet
		return NewBinanceClient(binance.NewRestClient(&cfg, f.logger)), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedExchange, info.Name)
}
