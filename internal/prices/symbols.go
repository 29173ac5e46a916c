package prices

import "strings"

// DefaultQuote is the quote asset assumed when a symbol carries none.
const DefaultQuote = "USDT"

// Normalize turns "btc/usdt" or "BTCUSDT" into the stored form "BTCUSDT".
func Normalize(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(symbol)), "/", "")
}

// Pair turns "BTCUSDT" into the display form "BTC/USDT".
func Pair(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "BTC/" + DefaultQuote
	}
	if strings.Contains(s, "/") {
		return s
	}
	if strings.HasSuffix(s, DefaultQuote) && len(s) > len(DefaultQuote) {
		return strings.TrimSuffix(s, DefaultQuote) + "/" + DefaultQuote
	}
	return s + "/" + DefaultQuote
}

// BaseAsset returns the traded asset of a symbol, e.g. BTC for BTCUSDT.
func BaseAsset(symbol string) string {
	p := Pair(symbol)
	return p[:strings.Index(p, "/")]
}
