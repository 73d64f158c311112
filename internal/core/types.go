package core

import (
	"strings"
	"time"
)

// DateLayout is the layout of every trading date carried across the system.
const DateLayout = "2006-01-02"

// Market represents a trading market
type Market string

const (
	MarketSH Market = "SH" // Shanghai
	MarketSZ Market = "SZ" // Shenzhen
	MarketBJ Market = "BJ" // Beijing
)

// PriceBar is one daily OHLCV candle
type PriceBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume int64   `json:"volume"`
}

// IsValid checks if the bar has a parseable date and a positive close
func (b PriceBar) IsValid() bool {
	if _, err := ParseDate(b.Date); err != nil {
		return false
	}
	return b.Close > 0
}

// ChangePercent returns the intraday change from open to close, in percent.
func (b PriceBar) ChangePercent() float64 {
	if b.Open <= 0 {
		return 0
	}
	return (b.Close - b.Open) / b.Open * 100
}

// Closes extracts the close prices of bars in order.
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// ParseDate parses a YYYY-MM-DD trading date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// NormalizeCode lower-cases an A-share code and adds its exchange prefix,
// e.g. 600519 -> sh600519, 000001 -> sz000001. Codes that already carry a
// prefix or use the 600519.SH form are converted to the prefixed form.
func NormalizeCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if num, suffix, ok := strings.Cut(code, "."); ok {
		return suffix + num
	}
	for _, p := range []string{"sh", "sz", "bj"} {
		if strings.HasPrefix(code, p) {
			return code
		}
	}
	switch code[0] {
	case '6':
		return "sh" + code
	case '0', '3':
		return "sz" + code
	case '4', '8':
		return "bj" + code
	}
	return code
}

// MarketOf returns the exchange an instrument code trades on.
func MarketOf(code string) Market {
	n := NormalizeCode(code)
	switch {
	case strings.HasPrefix(n, "sz"):
		return MarketSZ
	case strings.HasPrefix(n, "bj"):
		return MarketBJ
	default:
		return MarketSH
	}
}

// SameInstrument reports whether two codes name the same instrument.
// Matching tolerates a missing exchange prefix on either side.
func SameInstrument(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.HasSuffix(a, b) || strings.HasSuffix(b, a)
}
