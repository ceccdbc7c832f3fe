package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
	"github.com/thibautquentinjacob/trading-bot/internal/portfolio"
)

var (
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrNoPrice              = errors.New("no reference price")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientPosition = errors.New("insufficient position")
)

// Fill represents a simulated order fill.
type Fill struct {
	OrderID   string            `json:"order_id"`
	Intent    model.TradeIntent `json:"intent"`
	FillPrice decimal.Decimal   `json:"fill_price"`
	FillQty   int64             `json:"fill_qty"`
	FilledAt  time.Time         `json:"filled_at"`
	Slippage  decimal.Decimal   `json:"slippage"` // per share
	Realized  decimal.Decimal   `json:"realized"`
}

// PaperBroker simulates a cash account without real broker calls.
// Market orders fill immediately at the intent's reference price moved
// against the trader by slippageBps.
type PaperBroker struct {
	mu       sync.Mutex
	cash     decimal.Decimal
	book     *portfolio.Portfolio
	pnl      *portfolio.PnLTracker
	fills    []Fill
	orderSeq int64
	now      func() time.Time

	// Simulation parameters
	slippageBps int64 // basis points of slippage (e.g., 5 = 0.05%)
}

// NewPaperBroker creates a paper account funded with initialCash.
func NewPaperBroker(initialCash decimal.Decimal, slippageBps int64) *PaperBroker {
	return &PaperBroker{
		cash:        initialCash,
		book:        portfolio.New(),
		pnl:         portfolio.NewPnLTracker(),
		fills:       make([]Fill, 0, 1000),
		now:         time.Now,
		slippageBps: slippageBps,
	}
}

// Account returns cash and positions marked to the last seen price.
func (p *PaperBroker) Account(context.Context) (model.Account, error) {
	p.mu.Lock()
	cash := p.cash
	p.mu.Unlock()

	return model.Account{
		Cash:           cash,
		BuyingPower:    cash,
		PortfolioValue: cash.Add(p.book.MarketValue()),
		Positions:      p.book.Positions(),
	}, nil
}

// SubmitOrder fills the intent in full or rejects it.
func (p *PaperBroker) SubmitOrder(_ context.Context, intent model.TradeIntent) (model.OrderAck, error) {
	if intent.Quantity <= 0 {
		return model.OrderAck{}, ErrInvalidQuantity
	}
	if intent.Price <= 0 {
		return model.OrderAck{}, ErrNoPrice
	}

	qty := decimal.NewFromInt(intent.Quantity)
	price := decimal.NewFromFloat(intent.Price)
	slippage := price.Mul(decimal.NewFromInt(p.slippageBps)).Div(decimal.NewFromInt(10000))

	p.mu.Lock()
	fillPrice := price
	switch intent.Side {
	case model.SideBuy:
		fillPrice = price.Add(slippage) // buy higher
		cost := fillPrice.Mul(qty)
		if cost.GreaterThan(p.cash) {
			p.mu.Unlock()
			return model.OrderAck{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, cost.StringFixed(2), p.cash.StringFixed(2))
		}
		p.cash = p.cash.Sub(cost)
	case model.SideSell:
		if held := p.book.Held(intent.Symbol); held < intent.Quantity {
			p.mu.Unlock()
			return model.OrderAck{}, fmt.Errorf("%w: hold %d, selling %d", ErrInsufficientPosition, held, intent.Quantity)
		}
		fillPrice = price.Sub(slippage) // sell lower
		p.cash = p.cash.Add(fillPrice.Mul(qty))
	default:
		p.mu.Unlock()
		return model.OrderAck{}, fmt.Errorf("unknown side %q", intent.Side)
	}

	p.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", p.orderSeq)
	at := p.now()
	p.book.Apply(intent.Side, intent.Symbol, intent.Quantity, fillPrice)
	realized := p.pnl.Record(portfolio.Fill{
		Symbol:    intent.Symbol,
		Side:      intent.Side,
		Qty:       intent.Quantity,
		Price:     fillPrice,
		Timestamp: at,
	})
	p.fills = append(p.fills, Fill{
		OrderID:   orderID,
		Intent:    intent,
		FillPrice: fillPrice,
		FillQty:   intent.Quantity,
		FilledAt:  at,
		Slippage:  slippage,
		Realized:  realized,
	})
	p.mu.Unlock()

	log.Printf("[paper] %s %s qty=%d price=%s (slip=%s) order=%s reason=%s",
		intent.Side, intent.Symbol, intent.Quantity, fillPrice.StringFixed(4),
		slippage.StringFixed(4), orderID, intent.Reason)

	avg, _ := fillPrice.Float64()
	return model.OrderAck{
		OrderID:   orderID,
		ClientID:  intent.ID,
		Status:    "filled",
		FilledQty: intent.Quantity,
		AvgPrice:  avg,
		At:        at,
	}, nil
}

// Observe marks positions to the quote.
func (p *PaperBroker) Observe(q model.Quote) {
	p.book.UpdatePrice(q)
}

// Run marks positions from quote events until ctx is cancelled or
// events is closed.
func (p *PaperBroker) Run(ctx context.Context, events <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if q, isQuote := ev.Payload.(model.Quote); isQuote && ev.Kind == model.EventQuote {
				p.Observe(q)
			}
		}
	}
}

// Fills returns a snapshot of all fills.
func (p *PaperBroker) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// PnL returns the broker's P&L tracker.
func (p *PaperBroker) PnL() *portfolio.PnLTracker { return p.pnl }

// Portfolio returns the broker's positions.
func (p *PaperBroker) Portfolio() *portfolio.Portfolio { return p.book }
