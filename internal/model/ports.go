package model

import "context"

// ── Collaborator Port Interfaces ──
// These interfaces decouple the trading loop from concrete market data,
// brokerage and telemetry implementations (IEX, Alpaca, paper, replay).

// QuoteSource fetches per-minute quotes for a symbol.
type QuoteSource interface {
	// FetchHistory returns today's intraday quotes in time order.
	FetchHistory(ctx context.Context, symbol string) ([]Quote, error)

	// FetchLatest returns the most recent quote.
	FetchLatest(ctx context.Context, symbol string) (Quote, error)
}

// MarketClock reports whether the market is open for trading.
type MarketClock interface {
	IsOpen(ctx context.Context) (bool, error)
}

// Broker exposes account state and accepts orders.
type Broker interface {
	// Account returns cash and held quantities.
	Account(ctx context.Context) (Account, error)

	// SubmitOrder places a market order for the intent.
	SubmitOrder(ctx context.Context, intent TradeIntent) (OrderAck, error)
}

// Sink receives telemetry events. Push must never block.
type Sink interface {
	Push(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event)

// Push calls f(ev).
func (f SinkFunc) Push(ev Event) { f(ev) }
