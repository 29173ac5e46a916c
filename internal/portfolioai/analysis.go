// Package portfolioai suggests and executes trades that move a portfolio back to a target allocation.
package portfolioai

import (
	"fmt"
	"math"
	"sort"

	"ai-trading-assistant-go/internal/models"
	"ai-trading-assistant-go/internal/validation"
)

// Threshold is the allocation drift that triggers a suggestion.
const Threshold = 0.05

// CashAsset is held as cash and never allocated.
const CashAsset = "USDT"

// Target is the desired share of an asset.
type Target struct {
	Asset string
	Share float64
}

// DefaultTargets is the allocation every portfolio is measured against.
var DefaultTargets = []Target{
	{"BTC", 0.50},
	{"ETH", 0.30},
	{"BNB", 0.10},
	{"SOL", 0.10},
}

// Suggestion is a trade that reduces the drift of one asset.
type Suggestion struct {
	Action     string  `json:"action"`
	Symbol     string  `json:"symbol"`
	Asset      string  `json:"asset"`
	Amount     float64 `json:"amount"`
	Reason     string  `json:"reason"`
	CurrentPct float64 `json:"current_pct"`
	TargetPct  float64 `json:"target_pct"`
}

// Analysis compares a portfolio with the target allocation.
type Analysis struct {
	Source            string             `json:"source"`
	TotalValue        float64            `json:"total_value_usdt"`
	CurrentAllocation map[string]float64 `json:"current_allocation"`
	TargetAllocation  map[string]float64 `json:"target_allocation"`
	AssetValues       map[string]float64 `json:"asset_values"`
	Suggestions       []Suggestion       `json:"suggested_trades"`
	NeedsRebalancing  bool               `json:"needs_rebalancing"`
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Analyze values balances at prices (both keyed by asset) and suggests trades
// for every target asset whose share drifts more than Threshold.
// Assets without a price are valued at zero and get no suggestion.
func Analyze(balances, prices map[string]float64, targets []Target) (*Analysis, error) {
	if len(balances) == 0 {
		return nil, validation.Errorf("Balances and prices required")
	}

	values := make(map[string]float64, len(balances))
	var total float64
	for asset, amount := range balances {
		if amount <= 0 {
			continue
		}
		value := amount
		if asset != CashAsset {
			value = amount * prices[asset]
		}
		values[asset] = value
		total += value
	}
	if total <= 0 {
		return nil, validation.Errorf("Portfolio has no value")
	}

	current := make(map[string]float64, len(values))
	for asset, value := range values {
		if asset != CashAsset {
			current[asset] = value / total
		}
	}

	a := &Analysis{
		TotalValue:        round(total, 2),
		CurrentAllocation: make(map[string]float64, len(current)),
		TargetAllocation:  make(map[string]float64, len(targets)),
		AssetValues:       make(map[string]float64, len(values)),
		Suggestions:       []Suggestion{},
	}
	for asset, share := range current {
		a.CurrentAllocation[asset] = round(share*100, 1)
	}
	for asset, value := range values {
		a.AssetValues[asset] = round(value, 2)
	}

	for _, t := range targets {
		a.TargetAllocation[t.Asset] = round(t.Share*100, 1)
		share := current[t.Asset]
		diff := share - t.Share
		price := prices[t.Asset]
		if math.Abs(diff) <= Threshold || price <= 0 {
			continue
		}
		s := Suggestion{
			Symbol:     t.Asset + "/" + CashAsset,
			Asset:      t.Asset,
			Amount:     round(math.Abs(diff)*total/price, 6),
			CurrentPct: round(share*100, 1),
			TargetPct:  round(t.Share*100, 1),
		}
		if diff > 0 {
			s.Action = models.SideSell
			s.Reason = fmt.Sprintf("Reduce %s from %.1f%% to %.1f%%", t.Asset, share*100, t.Share*100)
		} else {
			s.Action = models.SideBuy
			s.Reason = fmt.Sprintf("Increase %s from %.1f%% to %.1f%%", t.Asset, share*100, t.Share*100)
		}
		a.Suggestions = append(a.Suggestions, s)
	}
	// sells first so they free cash for the buys
	sort.SliceStable(a.Suggestions, func(i, j int) bool {
		return a.Suggestions[i].Action == models.SideSell && a.Suggestions[j].Action != models.SideSell
	})
	a.NeedsRebalancing = len(a.Suggestions) > 0
	return a, nil
}
