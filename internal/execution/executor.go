// Package execution places orders with a broker: a simulated paper
// account, the Alpaca REST API, and a risk-checking executor that wraps
// either one.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
	"github.com/thibautquentinjacob/trading-bot/internal/portfolio"
)

// ErrRiskRejected is returned when a buy would breach a risk limit.
var ErrRiskRejected = errors.New("rejected by risk limits")

// Executor wraps a Broker with risk checks. Buys are refused when the
// RiskManager says no; sells always pass so positions can be flattened.
// Acknowledged orders are booked so limits track session exposure.
type Executor struct {
	broker model.Broker
	risk   *portfolio.RiskManager
	book   *portfolio.Portfolio
	pnl    *portfolio.PnLTracker
}

// NewExecutor creates an executor enforcing limits on top of broker.
func NewExecutor(broker model.Broker, limits portfolio.RiskLimits, initialEquity decimal.Decimal) *Executor {
	book := portfolio.New()
	return &Executor{
		broker: broker,
		risk:   portfolio.NewRiskManager(limits, book, initialEquity),
		book:   book,
		pnl:    portfolio.NewPnLTracker(),
	}
}

// Account passes through to the wrapped broker.
func (e *Executor) Account(ctx context.Context) (model.Account, error) {
	return e.broker.Account(ctx)
}

// SubmitOrder checks limits, submits, and books the fill.
func (e *Executor) SubmitOrder(ctx context.Context, intent model.TradeIntent) (model.OrderAck, error) {
	if intent.Side == model.SideBuy {
		ok, reason := e.risk.CanBuy(intent.Symbol, intent.Quantity, decimal.NewFromFloat(intent.Price))
		if !ok {
			log.Printf("[executor] rejected %s %s qty=%d: %s", intent.Side, intent.Symbol, intent.Quantity, reason)
			return model.OrderAck{}, fmt.Errorf("%w: %s", ErrRiskRejected, reason)
		}
	}

	ack, err := e.broker.SubmitOrder(ctx, intent)
	if err != nil {
		return ack, err
	}

	qty, price := bookedFill(intent, ack)
	if qty > 0 {
		e.book.Apply(intent.Side, intent.Symbol, qty, price)
		realized := e.pnl.Record(portfolio.Fill{
			Symbol:    intent.Symbol,
			Side:      intent.Side,
			Qty:       qty,
			Price:     price,
			Timestamp: ack.At,
		})
		e.risk.RecordPnL(realized)
	}
	return ack, nil
}

// bookedFill returns what to book for an acknowledged order. Market orders
// are usually acknowledged before they fill; those are booked in full at
// the intent price so limits hold while the fill is pending.
func bookedFill(intent model.TradeIntent, ack model.OrderAck) (int64, decimal.Decimal) {
	switch ack.Status {
	case "rejected", "canceled", "expired", "suspended":
		return ack.FilledQty, decimal.NewFromFloat(ack.AvgPrice)
	}
	if ack.FilledQty == 0 {
		return intent.Quantity, decimal.NewFromFloat(intent.Price)
	}
	if ack.AvgPrice == 0 {
		return ack.FilledQty, decimal.NewFromFloat(intent.Price)
	}
	return ack.FilledQty, decimal.NewFromFloat(ack.AvgPrice)
}

// ResetDaily clears the daily loss counter.
func (e *Executor) ResetDaily() { e.risk.ResetDaily() }

// RiskStatus returns the current risk snapshot.
func (e *Executor) RiskStatus() portfolio.RiskStatus { return e.risk.Status() }
