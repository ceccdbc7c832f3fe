// Package strategy provides the decision engine for intraday trading rules.
//
// A Strategy declares the indicators it needs and turns the latest values of
// those indicators into buy and sell decisions. Strategies only ever look at
// the last two aligned values of a channel.
package strategy

import (
	"time"

	"github.com/thibautquentinjacob/trading-bot/internal/indicator"
	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

// AllAvailable is the decision quantity meaning "as much as possible":
// all affordable shares on a buy, the whole position on a sell.
const AllAvailable int64 = -1

// Decision is the outcome of evaluating one side of a strategy.
type Decision struct {
	Act      bool    `json:"act"`
	Quantity int64   `json:"quantity"` // AllAvailable, explicit shares, or 0
	Price    float64 `json:"price"`    // reference price, latest open
	Reason   string  `json:"reason"`
}

func hold(reason string) Decision {
	return Decision{Reason: reason}
}

// Strategy is the interface all trading rule families implement.
type Strategy interface {
	// Name returns the configured strategy name, e.g. "CCI".
	Name() string

	// Indicators returns the indicator specs the strategy reads.
	Indicators() indicator.Set

	// EvaluateBuy decides whether to open a position.
	EvaluateBuy(w Window) Decision

	// EvaluateSell decides whether to close the position.
	EvaluateSell(w Window) Decision
}

// Window is the data a strategy decides on: the raw quote columns plus the
// aligned indicator series computed from them.
type Window struct {
	Times      []time.Time
	Open       []float64
	High       []float64
	Low        []float64
	Close      []float64
	Volume     []float64
	Indicators indicator.Series
}

// NewWindow builds a window from quotes and their computed indicators.
func NewWindow(quotes []model.Quote, series indicator.Series) Window {
	n := len(quotes)
	w := Window{
		Times:      make([]time.Time, n),
		Open:       make([]float64, n),
		High:       make([]float64, n),
		Low:        make([]float64, n),
		Close:      make([]float64, n),
		Volume:     make([]float64, n),
		Indicators: series,
	}
	for i, q := range quotes {
		w.Times[i] = q.Time
		w.Open[i] = q.Open
		w.High[i] = q.High
		w.Low[i] = q.Low
		w.Close[i] = q.Close
		w.Volume[i] = q.Volume
	}
	return w
}

// Latest returns the timestamp of the newest sample.
func (w Window) Latest() (time.Time, bool) {
	if len(w.Times) == 0 {
		return time.Time{}, false
	}
	return w.Times[len(w.Times)-1], true
}

// Price returns the reference price, the newest open.
func (w Window) Price() float64 {
	if len(w.Open) == 0 {
		return 0
	}
	return w.Open[len(w.Open)-1]
}

// Evaluation is one full pass of a strategy over the quote history.
type Evaluation struct {
	Window Window
	Buy    Decision
	Sell   Decision
}

// Engine binds a strategy to the indicator engine computing its inputs.
type Engine struct {
	strategy   Strategy
	indicators *indicator.Engine
}

// NewEngine resolves the strategy's indicator set.
func NewEngine(s Strategy) (*Engine, error) {
	ie, err := indicator.NewEngine(s.Indicators())
	if err != nil {
		return nil, err
	}
	return &Engine{strategy: s, indicators: ie}, nil
}

// Strategy returns the bound strategy.
func (e *Engine) Strategy() Strategy { return e.strategy }

// Indicators returns the underlying indicator engine.
func (e *Engine) Indicators() *indicator.Engine { return e.indicators }

// Evaluate computes indicators over quotes and evaluates buy, then sell.
// Indicator failures are returned alongside a still-usable evaluation;
// rules depending on a failed indicator see no values and hold.
func (e *Engine) Evaluate(quotes []model.Quote) (Evaluation, error) {
	series, err := e.indicators.Compute(quotes)
	w := NewWindow(quotes, series)
	return Evaluation{
		Window: w,
		Buy:    e.strategy.EvaluateBuy(w),
		Sell:   e.strategy.EvaluateSell(w),
	}, err
}
