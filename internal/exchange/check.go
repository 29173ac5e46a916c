package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ai-trading-assistant-go/internal/binance"
)

// Connection check error types.
const (
	ErrorTypeAuth        = "auth_error"
	ErrorTypePermission  = "permission_error"
	ErrorTypeNetwork     = "network_error"
	ErrorTypeUnsupported = "unsupported"
	ErrorTypeUnknown     = "unknown"
)

// ConnectionResult reports the outcome of a connection test.
type ConnectionResult struct {
	OK             bool               `json:"ok"`
	Exchange       string             `json:"exchange"`
	Message        string             `json:"message"`
	Error          string             `json:"error,omitempty"`
	ErrorType      string             `json:"error_type,omitempty"`
	Suggestion     string             `json:"suggestion,omitempty"`
	BalancesSample map[string]float64 `json:"balances_sample,omitempty"`
	TotalAssets    int                `json:"total_assets"`
}

// CheckConnection builds a client and fetches balances with it.
func CheckConnection(ctx context.Context, factory Factory, creds Credentials) ConnectionResult {
	name := strings.ToLower(strings.TrimSpace(creds.Exchange))
	client, err := factory.New(creds)
	if err != nil {
		return failure(name, err)
	}

	balances, err := client.Balances(ctx)
	if err != nil {
		return failure(name, err)
	}

	sample := make(map[string]float64, len(balances))
	for asset, b := range balances {
		sample[asset] = b.Total
	}
	info, _ := Lookup(name)
	return ConnectionResult{
		OK:             true,
		Exchange:       name,
		Message:        fmt.Sprintf("Successfully connected to %s", info.Name),
		BalancesSample: sample,
		TotalAssets:    len(sample),
	}
}

func failure(name string, err error) ConnectionResult {
	res := ConnectionResult{Exchange: name, Error: err.Error()}

	var apiErr *binance.APIError
	switch {
	case errors.Is(err, ErrUnsupportedExchange):
		res.Message = err.Error()
		res.ErrorType = ErrorTypeUnsupported
		res.Suggestion = "Use one of: " + strings.Join(Names(), ", ")
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized:
		res.Message = "Authentication failed - check API key and secret"
		res.ErrorType = ErrorTypeAuth
		res.Suggestion = "Verify API key and secret are correct"
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden:
		res.Message = "API key lacks required permissions"
		res.ErrorType = ErrorTypePermission
		res.Suggestion = `Enable "Read" permissions on exchange API key settings`
	case errors.As(err, &apiErr):
		res.Message = "Exchange rejected the request"
		res.ErrorType = ErrorTypeUnknown
		res.Suggestion = "Check server logs for details"
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "request failed"):
		res.Message = "Cannot connect to exchange"
		res.ErrorType = ErrorTypeNetwork
		res.Suggestion = "Check internet connection and exchange status"
	default:
		res.Message = "Unexpected error occurred"
		res.ErrorType = ErrorTypeUnknown
		res.Suggestion = "Check server logs for details"
	}
	return res
}
