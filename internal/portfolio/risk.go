package portfolio

import (
	"log"
	"sync"

	"github.com/shopspring/decimal"
)

// RiskLimits defines configurable risk thresholds. A zero value disables
// the corresponding check.
type RiskLimits struct {
	MaxPositionSize  int64           `json:"max_position_size"`  // max qty held per symbol
	MaxOpenPositions int             `json:"max_open_positions"` // max number of concurrent positions
	MaxDailyLoss     decimal.Decimal `json:"max_daily_loss"`
	MaxExposure      decimal.Decimal `json:"max_exposure"`     // max notional held across symbols
	MaxDrawdownPct   float64         `json:"max_drawdown_pct"` // 0-100
}

// Disabled reports whether no limit is set.
func (l RiskLimits) Disabled() bool {
	return l.MaxPositionSize == 0 && l.MaxOpenPositions == 0 &&
		l.MaxDailyLoss.IsZero() && l.MaxExposure.IsZero() && l.MaxDrawdownPct == 0
}

// RiskManager validates new exposure against limits and tracks equity.
type RiskManager struct {
	mu        sync.RWMutex
	limits    RiskLimits
	portfolio *Portfolio

	dailyPnL   decimal.Decimal
	equity     decimal.Decimal
	peakEquity decimal.Decimal
}

// NewRiskManager creates a RiskManager with the given limits, portfolio, and starting equity.
func NewRiskManager(limits RiskLimits, pf *Portfolio, initialEquity decimal.Decimal) *RiskManager {
	return &RiskManager{
		limits:     limits,
		portfolio:  pf,
		equity:     initialEquity,
		peakEquity: initialEquity,
	}
}

// CanBuy checks whether buying qty of symbol at price would violate a limit.
// Returns false with a reason when it would.
func (rm *RiskManager) CanBuy(symbol string, qty int64, price decimal.Decimal) (bool, string) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	held := rm.portfolio.Held(symbol)
	if held == 0 && rm.limits.MaxOpenPositions > 0 &&
		len(rm.portfolio.GetPositions()) >= rm.limits.MaxOpenPositions {
		return false, "max open positions reached"
	}

	if rm.limits.MaxPositionSize > 0 && held+qty > rm.limits.MaxPositionSize {
		return false, "position size exceeds limit"
	}

	if !rm.limits.MaxExposure.IsZero() {
		exposure := rm.portfolio.MarketValue().Add(price.Mul(decimal.NewFromInt(qty)))
		if exposure.GreaterThan(rm.limits.MaxExposure) {
			return false, "exposure exceeds limit"
		}
	}

	if !rm.limits.MaxDailyLoss.IsZero() && rm.dailyPnL.LessThan(rm.limits.MaxDailyLoss.Neg()) {
		return false, "max daily loss reached"
	}

	if rm.limits.MaxDrawdownPct > 0 && rm.peakEquity.IsPositive() {
		drawdown, _ := rm.peakEquity.Sub(rm.equity).Div(rm.peakEquity).Mul(decimal.NewFromInt(100)).Float64()
		if drawdown > rm.limits.MaxDrawdownPct {
			return false, "max drawdown exceeded"
		}
	}

	return true, ""
}

// RecordPnL updates daily P&L and equity tracking.
func (rm *RiskManager) RecordPnL(pnl decimal.Decimal) {
	if pnl.IsZero() {
		return
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.dailyPnL = rm.dailyPnL.Add(pnl)
	rm.equity = rm.equity.Add(pnl)
	if rm.equity.GreaterThan(rm.peakEquity) {
		rm.peakEquity = rm.equity
	}

	log.Printf("[risk] daily P&L: %s, equity: %s, peak: %s", rm.dailyPnL, rm.equity, rm.peakEquity)
}

// ResetDaily resets the daily P&L counter (call at market open).
func (rm *RiskManager) ResetDaily() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.dailyPnL = decimal.Zero
}

// RiskStatus is a snapshot of the risk state.
type RiskStatus struct {
	DailyPnL    decimal.Decimal `json:"daily_pnl"`
	Equity      decimal.Decimal `json:"equity"`
	PeakEquity  decimal.Decimal `json:"peak_equity"`
	DrawdownPct float64         `json:"drawdown_pct"`
	Limits      RiskLimits      `json:"limits"`
}

// Status returns the current risk status.
func (rm *RiskManager) Status() RiskStatus {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	drawdown := 0.0
	if rm.peakEquity.IsPositive() {
		drawdown, _ = rm.peakEquity.Sub(rm.equity).Div(rm.peakEquity).Mul(decimal.NewFromInt(100)).Float64()
	}
	return RiskStatus{
		DailyPnL:    rm.dailyPnL,
		Equity:      rm.equity,
		PeakEquity:  rm.peakEquity,
		DrawdownPct: drawdown,
		Limits:      rm.limits,
	}
}
