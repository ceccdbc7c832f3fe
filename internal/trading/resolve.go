package trading

import (
	"github.com/shopspring/decimal"

	"github.com/thibautquentinjacob/trading-bot/internal/strategy"
)

// BuyQuantity resolves a buy decision against available cash. The
// AllAvailable sentinel buys floor((cash - reserve) / price) shares; a
// result of zero or less means skip.
func BuyQuantity(d strategy.Decision, cash, reserve decimal.Decimal) int64 {
	switch {
	case d.Quantity == strategy.AllAvailable:
		if d.Price <= 0 {
			return 0
		}
		free := cash.Sub(reserve)
		if !free.IsPositive() {
			return 0
		}
		return free.Div(decimal.NewFromFloat(d.Price)).Floor().IntPart()
	case d.Quantity > 0:
		return d.Quantity
	}
	return 0
}

// SellQuantity resolves a sell decision against the held position. The
// AllAvailable sentinel sells everything held.
func SellQuantity(d strategy.Decision, held int64) int64 {
	switch {
	case d.Quantity == strategy.AllAvailable:
		if held < 0 {
			return 0
		}
		return held
	case d.Quantity > 0:
		return d.Quantity
	}
	return 0
}
