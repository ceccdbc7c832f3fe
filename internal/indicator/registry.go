package indicator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/thibautquentinjacob/trading-bot/internal/model"
)

// Column names a quote field an indicator can read.
type Column string

const (
	ColumnOpen   Column = "open"
	ColumnHigh   Column = "high"
	ColumnLow    Column = "low"
	ColumnClose  Column = "close"
	ColumnVolume Column = "volume"
)

// Value projects the column out of q.
func (c Column) Value(q model.Quote) (float64, error) {
	switch c {
	case ColumnOpen:
		return q.Open, nil
	case ColumnHigh:
		return q.High, nil
	case ColumnLow:
		return q.Low, nil
	case ColumnClose:
		return q.Close, nil
	case ColumnVolume:
		return q.Volume, nil
	}
	return 0, fmt.Errorf("unknown column %q", string(c))
}

// QualifiedName identifies a (function, params) pair, e.g. "cci_10" or "macd_1_8_6".
type QualifiedName string

// Spec declares one indicator a strategy needs.
// Outputs renames the function's native outputs positionally; when empty the
// native names are used.
type Spec struct {
	Name    string    `yaml:"name" json:"name"`
	Params  []float64 `yaml:"params" json:"params"`
	Inputs  []Column  `yaml:"inputs" json:"inputs"`
	Outputs []string  `yaml:"outputs,omitempty" json:"outputs,omitempty"`
}

// QualifiedName returns the name joined with its params by underscores.
func (s Spec) QualifiedName() QualifiedName {
	if len(s.Params) == 0 {
		return QualifiedName(s.Name)
	}
	parts := make([]string, 0, len(s.Params)+1)
	parts = append(parts, s.Name)
	for _, p := range s.Params {
		parts = append(parts, strconv.FormatFloat(p, 'f', -1, 64))
	}
	return QualifiedName(strings.Join(parts, "_"))
}

// Validate checks the spec against the function catalogue and returns the
// resolved function.
func (s Spec) Validate() (Func, error) {
	fn, ok := Lookup(s.Name)
	if !ok {
		return Func{}, fmt.Errorf("%s: %w", s.Name, ErrUnknownIndicator)
	}
	if len(s.Params) != fn.Options {
		return Func{}, fmt.Errorf("%s: want %d params, got %d: %w", s.QualifiedName(), fn.Options, len(s.Params), ErrInvalidOption)
	}
	if len(s.Inputs) != fn.Inputs {
		return Func{}, fmt.Errorf("%s: want %d input columns, got %d: %w", s.QualifiedName(), fn.Inputs, len(s.Inputs), ErrInputMismatch)
	}
	for _, c := range s.Inputs {
		if _, err := c.Value(model.Quote{}); err != nil {
			return Func{}, fmt.Errorf("%s: %w", s.QualifiedName(), err)
		}
	}
	if len(s.Outputs) != 0 && len(s.Outputs) != len(fn.Outputs) {
		return Func{}, fmt.Errorf("%s: want %d output names, got %d: %w", s.QualifiedName(), len(fn.Outputs), len(s.Outputs), ErrInputMismatch)
	}
	return fn, nil
}

// OutputNames returns the channel names the spec's results are stored under.
func (s Spec) OutputNames(fn Func) []string {
	if len(s.Outputs) == 0 {
		return fn.Outputs
	}
	return s.Outputs
}

// columnKey identifies the input-column signature shared by several specs.
func (s Spec) columnKey() string {
	parts := make([]string, len(s.Inputs))
	for i, c := range s.Inputs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

// Set maps a strategy's logical keys ("cci", "rsi", "macd") to specs.
type Set map[string]Spec

// Keys returns the logical keys in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns the union of sets; later sets win on duplicate keys.
func Merge(sets ...Set) Set {
	out := make(Set)
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}

var catalogue = map[string]Func{
	sma.Name:     sma,
	ema.Name:     ema,
	wilders.Name: wilders,
	rsi.Name:     rsi,
	macd.Name:    macd,
	cci.Name:     cci,
}

// Lookup returns the math function registered under name.
func Lookup(name string) (Func, bool) {
	fn, ok := catalogue[strings.ToLower(name)]
	return fn, ok
}

// Available lists the registered function names.
func Available() []string {
	names := make([]string, 0, len(catalogue))
	for n := range catalogue {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
