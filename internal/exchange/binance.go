package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"ai-trading-assistant-go/internal/binance"
	"ai-trading-assistant-go/internal/prices"
	"github.com/shopspring/decimal"
)

// ErrBelowLotSize is returned when an amount rounds down to zero at the symbol's step size.
var ErrBelowLotSize = errors.New("order quantity is below the minimum lot size")

// BinanceClient adapts the Binance REST client to Client.
type BinanceClient struct {
	rest binance.RestClientInterface

	mu    sync.Mutex
	steps map[string]decimal.Decimal // LOT_SIZE stepSize per symbol, loaded on first order
}

var _ Client = (*BinanceClient)(nil)

// NewBinanceClient wraps a Binance REST client.
func NewBinanceClient(rest binance.RestClientInterface) *BinanceClient {
	return &BinanceClient{rest: rest}
}

// TestConnection reads the account, which checks both reachability and the key.
func (c *BinanceClient) TestConnection(ctx context.Context) error {
	if _, err := c.rest.GetServerTime(ctx); err != nil {
		return err
	}
	_, err := c.rest.GetAccount(ctx)
	return err
}

// Balances returns every asset with a non-zero total.
func (c *BinanceClient) Balances(ctx context.Context) (map[string]Balance, error) {
	account, err := c.rest.GetAccount(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Balance)
	for _, b := range account.Balances {
		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid free balance %q for %s: %w", b.Free, b.Asset, err)
		}
		locked, err := strconv.ParseFloat(b.Locked, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid locked balance %q for %s: %w", b.Locked, b.Asset, err)
		}
		if free+locked <= 0 {
			continue
		}
		out[b.Asset] = Balance{Free: free, Locked: locked, Total: free + locked}
	}
	return out, nil
}

// PlaceMarketOrder sends a MARKET order. symbol may be given as BTC/USDT or BTCUSDT.
func (c *BinanceClient) PlaceMarketOrder(ctx context.Context, symbol, side string, amount float64) (*Order, error) {
	symbol = prices.Normalize(symbol)
	qty, err := c.roundToStep(ctx, symbol, amount)
	if err != nil {
		return nil, err
	}
	resp, err := c.rest.CreateOrder(ctx, symbol, side, qty)
	if err != nil {
		return nil, err
	}
	filled, _ := strconv.ParseFloat(resp.ExecutedQuantity, 64)
	fee, feeAsset := resp.Commission()
	return &Order{
		ID:          strconv.FormatInt(resp.OrderID, 10),
		Symbol:      resp.Symbol,
		Side:        resp.Side,
		Amount:      qty,
		Filled:      filled,
		AvgPrice:    resp.AveragePrice(),
		Status:      resp.Status,
		Fee:         fee,
		FeeCurrency: feeAsset,
		Raw:         resp,
	}, nil
}

// TickerPrices returns the last price of every symbol.
func (c *BinanceClient) TickerPrices(ctx context.Context) (map[string]float64, error) {
	return c.rest.GetAllTickerPrices(ctx)
}

// roundToStep floors amount to the LOT_SIZE step of symbol. Symbols without a
// known step are sent unchanged.
func (c *BinanceClient) roundToStep(ctx context.Context, symbol string, amount float64) (float64, error) {
	steps, err := c.lotSteps(ctx)
	if err != nil {
		return 0, err
	}
	step, ok := steps[symbol]
	if !ok || !step.IsPositive() {
		return amount, nil
	}
	qty := decimal.NewFromFloat(amount).Div(step).Floor().Mul(step)
	if !qty.IsPositive() {
		return 0, fmt.Errorf("%w: %s step %s, got %v", ErrBelowLotSize, symbol, step, amount)
	}
	return qty.InexactFloat64(), nil
}

func (c *BinanceClient) lotSteps(ctx context.Context) (map[string]decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.steps != nil {
		return c.steps, nil
	}

	info, err := c.rest.GetExchangeInfo(ctx)
	if err != nil {
		return nil, err
	}
	steps := make(map[string]decimal.Decimal, len(info.Symbols))
	for _, s := range info.Symbols {
		for _, f := range s.Filters {
			if f.FilterType != "LOT_SIZE" || f.StepSize == "" {
				continue
			}
			step, err := decimal.NewFromString(f.StepSize)
			if err != nil {
				return nil, fmt.Errorf("invalid step size %q for %s: %w", f.StepSize, s.Symbol, err)
			}
			steps[s.Symbol] = step
		}
	}
	c.steps = steps
	return steps, nil
}
