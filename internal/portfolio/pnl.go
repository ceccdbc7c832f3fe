package portfolio

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

// Fill is an executed trade used for P&L calculation.
type Fill struct {
	Symbol    string          `json:"symbol"`
	Side      model.Side      `json:"side"`
	Qty       int64           `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// PnLTracker tracks realized and unrealized P&L.
type PnLTracker struct {
	mu    sync.RWMutex
	fills []Fill

	realizedPnL decimal.Decimal

	// Per-symbol cost basis
	costBasis map[string]costEntry
}

type costEntry struct {
	Qty      int64
	AvgPrice decimal.Decimal
}

// NewPnLTracker creates a new P&L tracker.
func NewPnLTracker() *PnLTracker {
	return &PnLTracker{
		fills:     make([]Fill, 0, 500),
		costBasis: make(map[string]costEntry),
	}
}

// Record books a fill and returns the P&L it realized.
// Selling more than held realizes P&L on the held quantity only.
func (p *PnLTracker) Record(f Fill) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fills = append(p.fills, f)
	entry := p.costBasis[f.Symbol]

	realized := decimal.Zero
	if f.Side == model.SideBuy {
		if entry.Qty == 0 {
			entry.Qty = f.Qty
			entry.AvgPrice = f.Price
		} else {
			totalCost := entry.AvgPrice.Mul(decimal.NewFromInt(entry.Qty)).Add(f.Price.Mul(decimal.NewFromInt(f.Qty)))
			entry.Qty += f.Qty
			entry.AvgPrice = totalCost.Div(decimal.NewFromInt(entry.Qty))
		}
	} else {
		sellQty := min(f.Qty, entry.Qty)
		realized = f.Price.Sub(entry.AvgPrice).Mul(decimal.NewFromInt(sellQty))
		entry.Qty -= sellQty
		if entry.Qty <= 0 {
			entry = costEntry{}
		}
		p.realizedPnL = p.realizedPnL.Add(realized)
	}

	p.costBasis[f.Symbol] = entry
	return realized
}

// RealizedPnL returns the total realized P&L.
func (p *PnLTracker) RealizedPnL() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.realizedPnL
}

// UnrealizedPnL values open cost basis at currentPrices (symbol -> price).
func (p *PnLTracker) UnrealizedPnL(currentPrices map[string]decimal.Decimal) decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unrealized(currentPrices)
}

func (p *PnLTracker) unrealized(currentPrices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for sym, entry := range p.costBasis {
		if entry.Qty <= 0 {
			continue
		}
		if price, ok := currentPrices[sym]; ok {
			total = total.Add(price.Sub(entry.AvgPrice).Mul(decimal.NewFromInt(entry.Qty)))
		}
	}
	return total
}

// Fills returns a snapshot of all fills.
func (p *PnLTracker) Fills() []Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// PnLSummary is a point-in-time P&L report.
type PnLSummary struct {
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	TotalTrades   int             `json:"total_trades"`
	OpenPositions int             `json:"open_positions"`
}

// Summary returns the current P&L summary.
func (p *PnLTracker) Summary(currentPrices map[string]decimal.Decimal) PnLSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	open := 0
	for _, entry := range p.costBasis {
		if entry.Qty > 0 {
			open++
		}
	}
	unrealized := p.unrealized(currentPrices)
	return PnLSummary{
		RealizedPnL:   p.realizedPnL,
		UnrealizedPnL: unrealized,
		TotalPnL:      p.realizedPnL.Add(unrealized),
		TotalTrades:   len(p.fills),
		OpenPositions: open,
	}
}
