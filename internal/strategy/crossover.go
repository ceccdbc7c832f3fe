package strategy

import (
	"fmt"

	"github.com/thibautquentinjacob/trading-bot/internal/indicator"
)

const (
	oscillatorKey     = "oscillator"
	oscillatorChannel = "output"
)

// Crossover trades an oscillator crossing a level.
//
// Buy signal: oscillator crosses above the level with time left in the session
// Sell signal: oscillator crosses below the level, or the session is in its
// final minutes (end-of-day flatten)
type Crossover struct {
	name    string
	spec    indicator.Spec
	level   float64
	session Session
}

// NewCrossover creates a crossover strategy. The default oscillator is
// cci[10] over high, low and close, crossing zero.
func NewCrossover(name string, p Params) *Crossover {
	return &Crossover{
		name: name,
		spec: p.indicator(oscillatorKey, indicator.Spec{
			Name:    "cci",
			Params:  []float64{10},
			Inputs:  []indicator.Column{indicator.ColumnHigh, indicator.ColumnLow, indicator.ColumnClose},
			Outputs: []string{oscillatorChannel},
		}),
		level:   p.threshold("level", 0),
		session: p.session(),
	}
}

func (s *Crossover) Name() string { return s.name }

func (s *Crossover) Indicators() indicator.Set {
	return indicator.Set{oscillatorKey: s.spec}
}

func (s *Crossover) EvaluateBuy(w Window) Decision {
	latest, ok := w.Latest()
	if !ok {
		return hold("no quotes")
	}
	if !s.session.BuyAllowed(latest) {
		return hold(fmt.Sprintf("%.1f min to close, buys suppressed", s.session.MinutesToClose(latest)))
	}

	cur, prev, ok := w.Indicators.LastTwo(s.spec.QualifiedName(), oscillatorChannel)
	if !ok {
		return hold("oscillator warming up")
	}
	if prev < s.level && cur > s.level {
		return Decision{
			Act:      true,
			Quantity: AllAvailable,
			Price:    w.Price(),
			Reason:   fmt.Sprintf("%s crossed above %.2f (%.2f → %.2f)", s.spec.QualifiedName(), s.level, prev, cur),
		}
	}
	return hold("no upward cross")
}

func (s *Crossover) EvaluateSell(w Window) Decision {
	latest, ok := w.Latest()
	if !ok {
		return hold("no quotes")
	}
	if s.session.MustFlatten(latest) {
		return Decision{
			Act:      true,
			Quantity: AllAvailable,
			Price:    w.Price(),
			Reason:   fmt.Sprintf("%.1f min to close, flattening", s.session.MinutesToClose(latest)),
		}
	}

	cur, prev, ok := w.Indicators.LastTwo(s.spec.QualifiedName(), oscillatorChannel)
	if !ok {
		return hold("oscillator warming up")
	}
	if prev > s.level && cur < s.level {
		return Decision{
			Act:      true,
			Quantity: AllAvailable,
			Price:    w.Price(),
			Reason:   fmt.Sprintf("%s crossed below %.2f (%.2f → %.2f)", s.spec.QualifiedName(), s.level, prev, cur),
		}
	}
	return hold("no downward cross")
}
