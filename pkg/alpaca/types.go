package alpaca

import (
	"time"

	"github.com/shopspring/decimal"
)

// Clock is the market clock.
type Clock struct {
	Timestamp time.Time `json:"timestamp"`
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// Account is the trading account. Money fields arrive as JSON strings.
type Account struct {
	ID                    string          `json:"id"`
	AccountNumber         string          `json:"account_number"`
	Status                string          `json:"status"`
	Currency              string          `json:"currency"`
	Cash                  decimal.Decimal `json:"cash"`
	BuyingPower           decimal.Decimal `json:"buying_power"`
	DaytradingBuyingPower decimal.Decimal `json:"daytrading_buying_power"`
	PortfolioValue        decimal.Decimal `json:"portfolio_value"`
	Equity                decimal.Decimal `json:"equity"`
	LastEquity            decimal.Decimal `json:"last_equity"`
	LongMarketValue       decimal.Decimal `json:"long_market_value"`
	PatternDayTrader      bool            `json:"pattern_day_trader"`
	TradingBlocked        bool            `json:"trading_blocked"`
	AccountBlocked        bool            `json:"account_blocked"`
	DaytradeCount         int             `json:"daytrade_count"`
}

// Position is an open position.
type Position struct {
	AssetID       string          `json:"asset_id"`
	Symbol        string          `json:"symbol"`
	Exchange      string          `json:"exchange"`
	AssetClass    string          `json:"asset_class"`
	Qty           decimal.Decimal `json:"qty"`
	Side          string          `json:"side"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	UnrealizedPL  decimal.Decimal `json:"unrealized_pl"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
}

// OrderRequest is the body of a new order.
type OrderRequest struct {
	Symbol        string           `json:"symbol"`
	Qty           decimal.Decimal  `json:"qty"`
	Side          string           `json:"side"`          // buy, sell
	Type          string           `json:"type"`          // market, limit, stop, stop_limit
	TimeInForce   string           `json:"time_in_force"` // day, gtc, opg, ioc
	LimitPrice    *decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice     *decimal.Decimal `json:"stop_price,omitempty"`
	ClientOrderID string           `json:"client_order_id,omitempty"`
	ExtendedHours bool             `json:"extended_hours"`
}

// Order is an order as reported by the API.
type Order struct {
	ID             string              `json:"id"`
	ClientOrderID  string              `json:"client_order_id"`
	Symbol         string              `json:"symbol"`
	Qty            decimal.Decimal     `json:"qty"`
	FilledQty      decimal.Decimal     `json:"filled_qty"`
	FilledAvgPrice decimal.NullDecimal `json:"filled_avg_price"`
	Side           string              `json:"side"`
	Type           string              `json:"type"`
	TimeInForce    string              `json:"time_in_force"`
	Status         string              `json:"status"`
	SubmittedAt    time.Time           `json:"submitted_at"`
	FilledAt       *time.Time          `json:"filled_at"`
}

// CalendarDay is one trading day with its session bounds (HH:MM, exchange time).
type CalendarDay struct {
	Date  string `json:"date"`
	Open  string `json:"open"`
	Close string `json:"close"`
}
