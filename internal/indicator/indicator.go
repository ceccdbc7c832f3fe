// Package indicator provides technical indicator calculations over quote series.
//
// Every indicator is a batch function over column-major input matrices.
// Output index j of an indicator corresponds to input index j+Start(params),
// matching the offsets of the tulip indicators library.
package indicator

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOption is returned when indicator parameters are out of range.
	ErrInvalidOption = errors.New("invalid indicator option")

	// ErrInputMismatch is returned when input columns differ in count or length.
	ErrInputMismatch = errors.New("indicator input mismatch")

	// ErrUnknownIndicator is returned for a function name not in the catalogue.
	ErrUnknownIndicator = errors.New("unknown indicator")
)

// Func is one indicator math function.
type Func struct {
	Name    string
	Inputs  int      // number of input columns
	Options int      // number of numeric parameters
	Outputs []string // native output names, in order

	// Start returns the warm-up offset for the given parameters.
	Start func(params []float64) int

	calc func(in [][]float64, params []float64, size int) ([][]float64, error)
}

// Compute validates the inputs and runs the function. When the inputs are
// shorter than the warm-up every output is empty.
func (f Func) Compute(in [][]float64, params []float64) ([][]float64, error) {
	if len(params) != f.Options {
		return nil, fmt.Errorf("%s: want %d options, got %d: %w", f.Name, f.Options, len(params), ErrInvalidOption)
	}
	if len(in) != f.Inputs {
		return nil, fmt.Errorf("%s: want %d inputs, got %d: %w", f.Name, f.Inputs, len(in), ErrInputMismatch)
	}
	size := len(in[0])
	for _, col := range in[1:] {
		if len(col) != size {
			return nil, fmt.Errorf("%s: ragged input columns: %w", f.Name, ErrInputMismatch)
		}
	}
	return f.calc(in, params, size)
}

// emptyOutputs returns n zero-length output channels.
func emptyOutputs(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = []float64{}
	}
	return out
}

// period reads an integer option, rejecting values below min.
func period(name string, v float64, min int) (int, error) {
	p := int(v)
	if p < min {
		return 0, fmt.Errorf("%s: period %v below %d: %w", name, v, min, ErrInvalidOption)
	}
	return p, nil
}
