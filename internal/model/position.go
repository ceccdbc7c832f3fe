package model

import "github.com/shopspring/decimal"

// Position is a held quantity of one symbol.
type Position struct {
	Symbol    string          `json:"symbol"`
	Qty       int64           `json:"qty"` // positive = long
	AvgPrice  decimal.Decimal `json:"avg_price"`
	LastPrice decimal.Decimal `json:"last_price"`
}

// UnrealizedPnL computes unrealized profit/loss at the last known price.
func (p Position) UnrealizedPnL() decimal.Decimal {
	return p.LastPrice.Sub(p.AvgPrice).Mul(decimal.NewFromInt(p.Qty))
}

// Account is a broker account snapshot.
type Account struct {
	Cash           decimal.Decimal     `json:"cash"`
	BuyingPower    decimal.Decimal     `json:"buying_power"`
	PortfolioValue decimal.Decimal     `json:"portfolio_value"`
	Positions      map[string]Position `json:"positions"`
}

// Held returns the quantity held for symbol, zero when flat.
func (a Account) Held(symbol string) int64 {
	if a.Positions == nil {
		return 0
	}
	return a.Positions[symbol].Qty
}
