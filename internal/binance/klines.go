package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// MaxKlinesLimit is the largest page the /klines endpoint serves.
const MaxKlinesLimit = 1000

// Kline is one parsed candlestick.
type Kline struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// GetKlines fetches the most recent candlesticks of a symbol.
// The API answers with positional arrays: [openTime, open, high, low, close, volume, closeTime, ...].
func (c *RestClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	if limit <= 0 || limit > MaxKlinesLimit {
		limit = MaxKlinesLimit
	}

	var raw [][]json.RawMessage
	req := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":   symbol,
			"interval": interval,
			"limit":    strconv.Itoa(limit),
		}).
		SetResult(&raw)

	resp, err := c.doRequest(ctx, http.MethodGet, "/klines", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines for %s: %w", symbol, err)
	}

	rows := *resp.Result().(*[][]json.RawMessage)
	klines := make([]Kline, 0, len(rows))
	for i, row := range rows {
		k, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("kline %d of %s: %w", i, symbol, err)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

func parseKline(row []json.RawMessage) (Kline, error) {
	if len(row) < 6 {
		return Kline{}, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}

	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return Kline{}, fmt.Errorf("open time: %w", err)
	}

	values := make([]float64, 5)
	for i := range values {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return Kline{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Kline{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		values[i] = v
	}

	return Kline{
		OpenTime: time.UnixMilli(openTime).UTC(),
		Open:     values[0],
		High:     values[1],
		Low:      values[2],
		Close:    values[3],
		Volume:   values[4],
	}, nil
}
