package model

import (
	"encoding/json"
	"math"
	"time"
)

// Quote is one per-minute market sample for a single symbol.
// A minute without trades carries zero OHLC values until the
// quote repository fills them from the previous sample.
type Quote struct {
	Symbol         string    `json:"symbol"`
	Time           time.Time `json:"time"`
	Open           float64   `json:"open"`
	High           float64   `json:"high"`
	Low            float64   `json:"low"`
	Close          float64   `json:"close"`
	Volume         float64   `json:"volume"`
	Average        float64   `json:"average"`
	Notional       float64   `json:"notional"`
	NumberOfTrades int64     `json:"number_of_trades"`

	MarketOpen     float64 `json:"market_open"`
	MarketHigh     float64 `json:"market_high"`
	MarketLow      float64 `json:"market_low"`
	MarketClose    float64 `json:"market_close"`
	MarketVolume   float64 `json:"market_volume"`
	MarketAverage  float64 `json:"market_average"`
	MarketNotional float64 `json:"market_notional"`
}

// HasPrices reports whether the quote carries its own OHLC values.
// The feed marks empty minutes with a null open, decoded as zero.
func (q Quote) HasPrices() bool {
	return q.Open != 0 && !math.IsNaN(q.Open)
}

// WithPricesFrom returns a copy of q with OHLC taken from prev.
func (q Quote) WithPricesFrom(prev Quote) Quote {
	q.Open = prev.Open
	q.High = prev.High
	q.Low = prev.Low
	q.Close = prev.Close
	return q
}

// JSON returns the JSON-encoded quote (ignoring errors for hot-path usage).
func (q *Quote) JSON() []byte {
	b, _ := json.Marshal(q)
	return b
}
