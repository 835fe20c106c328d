package model

import (
	"strings"
	"time"
)

// Trade represents a single executed trade delivered by an exchange stream.
type Trade struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"` // epoch milliseconds
	Datetime  string  `json:"datetime"`  // ISO 8601, informational
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"` // base units
	Cost      float64 `json:"cost"`   // price * amount, quote units
}

// Time returns the trade timestamp as a time.Time in UTC.
func (t Trade) Time() time.Time {
	return time.Unix(0, t.Timestamp*int64(time.Millisecond)).UTC()
}

// NormalizeSymbol strips a ":settle" suffix some exchanges append to
// derivative market symbols, e.g. "BTC/USDT:USDT" -> "BTC/USDT".
func NormalizeSymbol(symbol string) string {
	if i := strings.IndexByte(symbol, ':'); i >= 0 {
		return symbol[:i]
	}
	return symbol
}
