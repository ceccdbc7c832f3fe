package model

import (
	"time"

	"github.com/google/uuid"
)

// Side is the direction of a trade intent.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeIntent is a fully resolved order request handed to the broker.
// Quantity is always positive; Side carries the direction.
type TradeIntent struct {
	ID       string    `json:"id"`
	Side     Side      `json:"side"`
	Symbol   string    `json:"symbol"`
	Quantity int64     `json:"quantity"`
	Price    float64   `json:"price"` // reference price, latest open
	Time     time.Time `json:"time"`
	Strategy string    `json:"strategy"`
	Reason   string    `json:"reason"`
}

// NewTradeIntent builds an intent with a fresh client order id.
func NewTradeIntent(side Side, symbol string, qty int64, price float64, ts time.Time) TradeIntent {
	return TradeIntent{
		ID:       uuid.NewString(),
		Side:     side,
		Symbol:   symbol,
		Quantity: qty,
		Price:    price,
		Time:     ts,
	}
}

// OrderAck is the broker's acknowledgement of a submitted intent.
type OrderAck struct {
	OrderID   string    `json:"order_id"`
	ClientID  string    `json:"client_id"`
	Status    string    `json:"status"` // accepted, filled, rejected
	FilledQty int64     `json:"filled_qty"`
	AvgPrice  float64   `json:"avg_price"`
	At        time.Time `json:"at"`
}

// Trade pairs a submitted intent with the broker's acknowledgement.
type Trade struct {
	Intent TradeIntent `json:"intent"`
	Ack    OrderAck    `json:"ack"`
}
