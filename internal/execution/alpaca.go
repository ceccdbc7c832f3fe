package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
	"github.com/thibautquentinjacob/trading-bot/pkg/alpaca"
)

// AlpacaBroker places market day orders through the Alpaca REST API.
type AlpacaBroker struct {
	client *alpaca.Client
}

// NewAlpacaBroker creates a broker backed by client.
func NewAlpacaBroker(client *alpaca.Client) *AlpacaBroker {
	return &AlpacaBroker{client: client}
}

// Account reads cash and open positions. Fractional quantities are
// truncated to whole shares.
func (b *AlpacaBroker) Account(ctx context.Context) (model.Account, error) {
	acct, err := b.client.Account(ctx)
	if err != nil {
		return model.Account{}, fmt.Errorf("account: %w", err)
	}
	positions, err := b.client.Positions(ctx)
	if err != nil {
		return model.Account{}, fmt.Errorf("positions: %w", err)
	}

	out := model.Account{
		Cash:           acct.Cash,
		BuyingPower:    acct.BuyingPower,
		PortfolioValue: acct.PortfolioValue,
		Positions:      make(map[string]model.Position, len(positions)),
	}
	for _, p := range positions {
		out.Positions[p.Symbol] = model.Position{
			Symbol:    p.Symbol,
			Qty:       p.Qty.IntPart(),
			AvgPrice:  p.AvgEntryPrice,
			LastPrice: p.CurrentPrice,
		}
	}
	return out, nil
}

// SubmitOrder sends the intent as a market day order. The intent id is
// the client order id, so a retried submission is rejected as duplicate.
func (b *AlpacaBroker) SubmitOrder(ctx context.Context, intent model.TradeIntent) (model.OrderAck, error) {
	if intent.Quantity <= 0 {
		return model.OrderAck{}, ErrInvalidQuantity
	}
	o, err := b.client.SubmitOrder(ctx, alpaca.OrderRequest{
		Symbol:        intent.Symbol,
		Qty:           decimal.NewFromInt(intent.Quantity),
		Side:          string(intent.Side),
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: intent.ID,
	})
	if err != nil {
		return model.OrderAck{}, fmt.Errorf("submit %s %s: %w", intent.Side, intent.Symbol, err)
	}

	ack := model.OrderAck{
		OrderID:   o.ID,
		ClientID:  o.ClientOrderID,
		Status:    o.Status,
		FilledQty: o.FilledQty.IntPart(),
		At:        o.SubmittedAt,
	}
	if o.FilledAvgPrice.Valid {
		ack.AvgPrice, _ = o.FilledAvgPrice.Decimal.Float64()
	}
	if ack.At.IsZero() {
		ack.At = time.Now()
	}
	return ack, nil
}
