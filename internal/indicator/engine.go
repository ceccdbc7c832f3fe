package indicator

import (
	"errors"
	"fmt"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

// Channels maps output channel names to their aligned values.
type Channels map[string][]float64

// Series holds every computed indicator keyed by qualified name.
type Series map[QualifiedName]Channels

// Channel returns the values of one channel, nil if absent.
func (s Series) Channel(name QualifiedName, channel string) []float64 {
	return s[name][channel]
}

// LastTwo returns the latest and previous values of a channel.
// ok is false when fewer than two values exist.
func (s Series) LastTwo(name QualifiedName, channel string) (cur, prev float64, ok bool) {
	vals := s.Channel(name, channel)
	if len(vals) < 2 {
		return 0, 0, false
	}
	return vals[len(vals)-1], vals[len(vals)-2], true
}

// ComputeError reports a failure of a single indicator.
type ComputeError struct {
	Name QualifiedName
	Err  error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("indicator %s: %v", e.Name, e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }

// bound is a spec resolved against the catalogue with its cached offset.
type bound struct {
	name    QualifiedName
	spec    Spec
	fn      Func
	outputs []string
	offset  int
	columns string
}

// Engine computes a fixed set of indicators over a quote history.
// Offsets are resolved once at construction. Compute is pure and safe
// for concurrent use.
type Engine struct {
	indicators []bound
	columns    map[string][]Column // signature → columns, one matrix each
	offsets    map[QualifiedName]int
}

// NewEngine resolves the set. Specs sharing a qualified name are computed once.
func NewEngine(set Set) (*Engine, error) {
	e := &Engine{
		indicators: make([]bound, 0, len(set)),
		columns:    make(map[string][]Column),
		offsets:    make(map[QualifiedName]int, len(set)),
	}

	for _, key := range set.Keys() {
		spec := set[key]
		fn, err := spec.Validate()
		if err != nil {
			return nil, fmt.Errorf("indicator %q: %w", key, err)
		}

		name := spec.QualifiedName()
		if prev, dup := e.find(name); dup {
			if prev.columns != spec.columnKey() {
				return nil, fmt.Errorf("indicator %q: %s already bound to columns %s", key, name, prev.columns)
			}
			continue
		}

		b := bound{
			name:    name,
			spec:    spec,
			fn:      fn,
			outputs: spec.OutputNames(fn),
			offset:  fn.Start(spec.Params),
			columns: spec.columnKey(),
		}
		e.indicators = append(e.indicators, b)
		e.offsets[name] = b.offset
		e.columns[b.columns] = spec.Inputs
	}
	return e, nil
}

func (e *Engine) find(name QualifiedName) (bound, bool) {
	for _, b := range e.indicators {
		if b.name == name {
			return b, true
		}
	}
	return bound{}, false
}

// Offset returns the warm-up offset of an indicator.
func (e *Engine) Offset(name QualifiedName) (int, bool) {
	off, ok := e.offsets[name]
	return off, ok
}

// Names returns the qualified names computed by the engine.
func (e *Engine) Names() []QualifiedName {
	out := make([]QualifiedName, len(e.indicators))
	for i, b := range e.indicators {
		out[i] = b.name
	}
	return out
}

// Compute runs every indicator over quotes. Output index j of each channel
// corresponds to quote index j+offset. A failing indicator is left out of
// the Series and reported as a *ComputeError in the joined error; the
// returned Series is usable even when err != nil.
func (e *Engine) Compute(quotes []model.Quote) (Series, error) {
	matrices := make(map[string][][]float64, len(e.columns))
	for key, cols := range e.columns {
		matrices[key] = project(quotes, cols)
	}

	series := make(Series, len(e.indicators))
	var errs []error
	for _, b := range e.indicators {
		res, err := b.fn.Compute(matrices[b.columns], b.spec.Params)
		if err != nil {
			errs = append(errs, &ComputeError{Name: b.name, Err: err})
			continue
		}

		ch := make(Channels, len(b.outputs))
		for k, out := range b.outputs {
			ch[out] = res[k]
		}
		series[b.name] = ch
	}
	return series, errors.Join(errs...)
}

// project builds a column-major matrix of the requested quote fields.
func project(quotes []model.Quote, cols []Column) [][]float64 {
	m := make([][]float64, len(cols))
	for i, c := range cols {
		row := make([]float64, len(quotes))
		for j, q := range quotes {
			// Columns were validated in NewEngine
			row[j], _ = c.Value(q)
		}
		m[i] = row
	}
	return m
}
