// Package portfolio tracks positions, P&L, and risk limits.
//
// It keeps a view of open positions marked to the latest quote, computes
// realized P&L from fills, and gates new exposure against configured limits.
package portfolio

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

// Portfolio tracks all open positions by symbol.
type Portfolio struct {
	mu        sync.RWMutex
	positions map[string]*model.Position
}

// New creates a new empty Portfolio.
func New() *Portfolio {
	return &Portfolio{
		positions: make(map[string]*model.Position),
	}
}

// Apply books a fill. Buys extend the position at a weighted average
// price; sells reduce it and remove it once flat.
func (pf *Portfolio) Apply(side model.Side, symbol string, qty int64, price decimal.Decimal) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	pos, ok := pf.positions[symbol]
	if !ok {
		if side != model.SideBuy {
			return
		}
		pos = &model.Position{Symbol: symbol}
		pf.positions[symbol] = pos
	}

	switch side {
	case model.SideBuy:
		cost := pos.AvgPrice.Mul(decimal.NewFromInt(pos.Qty)).Add(price.Mul(decimal.NewFromInt(qty)))
		pos.Qty += qty
		pos.AvgPrice = cost.Div(decimal.NewFromInt(pos.Qty))
	case model.SideSell:
		pos.Qty -= qty
		if pos.Qty <= 0 {
			delete(pf.positions, symbol)
			return
		}
	}
	pos.LastPrice = price
}

// UpdatePrice marks a held position to the quote's close.
func (pf *Portfolio) UpdatePrice(q model.Quote) {
	if !q.HasPrices() {
		return
	}
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if pos, ok := pf.positions[q.Symbol]; ok {
		pos.LastPrice = decimal.NewFromFloat(q.Close)
	}
}

// Held returns the quantity held for symbol.
func (pf *Portfolio) Held(symbol string) int64 {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	if pos, ok := pf.positions[symbol]; ok {
		return pos.Qty
	}
	return 0
}

// GetPositions returns a snapshot of all positions ordered by symbol.
func (pf *Portfolio) GetPositions() []model.Position {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	result := make([]model.Position, 0, len(pf.positions))
	for _, p := range pf.positions {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })
	return result
}

// Positions returns the positions keyed by symbol.
func (pf *Portfolio) Positions() map[string]model.Position {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	out := make(map[string]model.Position, len(pf.positions))
	for sym, p := range pf.positions {
		out[sym] = *p
	}
	return out
}

// MarketValue returns the sum of qty * last price over all positions.
func (pf *Portfolio) MarketValue() decimal.Decimal {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	total := decimal.Zero
	for _, p := range pf.positions {
		total = total.Add(p.LastPrice.Mul(decimal.NewFromInt(p.Qty)))
	}
	return total
}

// TotalUnrealizedPnL returns the unrealized P&L across all positions.
func (pf *Portfolio) TotalUnrealizedPnL() decimal.Decimal {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	total := decimal.Zero
	for _, p := range pf.positions {
		total = total.Add(p.UnrealizedPnL())
	}
	return total
}
