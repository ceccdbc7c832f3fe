package strategy

import (
	"fmt"

	"github.com/thibautquentinjacob/trading-bot/internal/indicator"
)

const (
	strengthKey = "rsi"
	trendKey    = "macd"

	strengthChannel = "output"
	trendChannel    = "long"
)

// Composite combines a strength oscillator with a trend filter.
//
// Buy signal: strength at or below buy_max while the trend is below trend_buy_max,
// with time left in the session
// Sell signal: strength at or above exit_min, or at or above sell_min while
// the trend is negative. Sells ignore the session cutoff.
type Composite struct {
	name     string
	strength indicator.Spec
	trend    indicator.Spec
	extra    indicator.Set
	session  Session

	buyMax      float64
	trendBuyMax float64
	sellMin     float64
	trendSell   float64
	exitMin     float64
}

// NewComposite creates a composite strategy. Defaults: rsi[7] and
// macd[1,8,6] on open, buy at rsi <= 31 with macd.long < -0.3, sell at
// rsi >= 60 with macd.long < 0, or rsi >= 80.
func NewComposite(name string, p Params) *Composite {
	open := []indicator.Column{indicator.ColumnOpen}
	return &Composite{
		name: name,
		strength: p.indicator(strengthKey, indicator.Spec{
			Name: "rsi", Params: []float64{7}, Inputs: open, Outputs: []string{strengthChannel},
		}),
		trend: p.indicator(trendKey, indicator.Spec{
			Name: "macd", Params: []float64{1, 8, 6}, Inputs: open, Outputs: []string{"short", trendChannel, "signal"},
		}),
		// Published for dashboards only
		extra: indicator.Set{
			"sma_fast": p.indicator("sma_fast", indicator.Spec{Name: "sma", Params: []float64{12}, Inputs: open, Outputs: []string{"output"}}),
			"sma_slow": p.indicator("sma_slow", indicator.Spec{Name: "sma", Params: []float64{26}, Inputs: open, Outputs: []string{"output"}}),
		},
		session:     p.session(),
		buyMax:      p.threshold("buy_max", 31),
		trendBuyMax: p.threshold("trend_buy_max", -0.3),
		sellMin:     p.threshold("sell_min", 60),
		trendSell:   p.threshold("trend_sell_max", 0),
		exitMin:     p.threshold("exit_min", 80),
	}
}

func (s *Composite) Name() string { return s.name }

func (s *Composite) Indicators() indicator.Set {
	return indicator.Merge(s.extra, indicator.Set{
		strengthKey: s.strength,
		trendKey:    s.trend,
	})
}

func (s *Composite) strengthNow(w Window) (float64, bool) {
	cur, _, ok := w.Indicators.LastTwo(s.strength.QualifiedName(), strengthChannel)
	return cur, ok
}

func (s *Composite) trendNow(w Window) (float64, bool) {
	cur, _, ok := w.Indicators.LastTwo(s.trend.QualifiedName(), trendChannel)
	return cur, ok
}

func (s *Composite) EvaluateBuy(w Window) Decision {
	latest, ok := w.Latest()
	if !ok {
		return hold("no quotes")
	}
	if !s.session.BuyAllowed(latest) {
		return hold(fmt.Sprintf("%.1f min to close, buys suppressed", s.session.MinutesToClose(latest)))
	}

	strength, ok := s.strengthNow(w)
	if !ok {
		return hold("indicators warming up")
	}
	trend, ok := s.trendNow(w)
	if !ok {
		return hold("indicators warming up")
	}
	if strength <= s.buyMax && trend < s.trendBuyMax {
		return Decision{
			Act:      true,
			Quantity: AllAvailable,
			Price:    w.Price(),
			Reason:   fmt.Sprintf("oversold: %s=%.2f, trend=%.3f", s.strength.QualifiedName(), strength, trend),
		}
	}
	return hold("not oversold")
}

func (s *Composite) EvaluateSell(w Window) Decision {
	if _, ok := w.Latest(); !ok {
		return hold("no quotes")
	}

	strength, ok := s.strengthNow(w)
	if !ok {
		return hold("indicators warming up")
	}
	// The overbought exit needs no trend reading.
	if strength >= s.exitMin {
		return Decision{
			Act:      true,
			Quantity: AllAvailable,
			Price:    w.Price(),
			Reason:   fmt.Sprintf("overbought: %s=%.2f", s.strength.QualifiedName(), strength),
		}
	}

	trend, ok := s.trendNow(w)
	if !ok {
		return hold("trend warming up")
	}
	if trend < s.trendSell && strength >= s.sellMin {
		return Decision{
			Act:      true,
			Quantity: AllAvailable,
			Price:    w.Price(),
			Reason:   fmt.Sprintf("weakening: %s=%.2f, trend=%.3f", s.strength.QualifiedName(), strength, trend),
		}
	}
	return hold("no exit")
}
