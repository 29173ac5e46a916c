package market

import (
	"fmt"
	"math"
	"strconv"
)

var largeUnits = []struct {
	size   float64
	suffix string
}{
	{1e12, "T"},
	{1e9, "B"},
	{1e6, "M"},
	{1e3, "K"},
	{1, ""},
}

// FormatLargeNumber abbreviates a number with T/B/M/K suffixes and two decimals.
// The unit is chosen after rounding, so 999_995 is 1.00M rather than 1000.00K.
func FormatLargeNumber(n float64) string {
	a := math.Abs(n)
	for i, u := range largeUnits {
		if a < u.size && u.size > 1 {
			continue
		}
		m, _ := strconv.ParseFloat(fmt.Sprintf("%.2f", a/u.size), 64)
		if m >= 1000 && i > 0 {
			u = largeUnits[i-1]
		}
		return fmt.Sprintf("%.2f%s", n/u.size, u.suffix)
	}
	return fmt.Sprintf("%.2f", n)
}

func (c *Coin) format() {
	c.MarketCapFormatted = FormatLargeNumber(c.MarketCap)
	c.Volume24hFormatted = FormatLargeNumber(c.Volume24h)
}

func (d *TokenDetails) format() {
	d.MarketCapFormatted = FormatLargeNumber(d.MarketCap)
	d.Volume24hFormatted = FormatLargeNumber(d.Volume24h)
}
