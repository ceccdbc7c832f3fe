package indicator

import "fmt"

// macd is Moving Average Convergence/Divergence with options
// [short, long, signal] and outputs macd, signal and histogram.
// Both EMAs seed from the first input; the signal EMA seeds at long-1.
var macd = Func{
	Name:    "macd",
	Inputs:  1,
	Options: 3,
	Outputs: []string{"macd", "macd_signal", "macd_histogram"},
	Start:   func(p []float64) int { return int(p[1]) - 1 },
	calc:    macdCalc,
}

func macdCalc(in [][]float64, params []float64, size int) ([][]float64, error) {
	short, err := period("macd", params[0], 1)
	if err != nil {
		return nil, err
	}
	long, err := period("macd", params[1], 2)
	if err != nil {
		return nil, err
	}
	signal, err := period("macd", params[2], 1)
	if err != nil {
		return nil, err
	}
	if long < short {
		return nil, fmt.Errorf("macd: long %d below short %d: %w", long, short, ErrInvalidOption)
	}

	start := long - 1
	if size <= start {
		return emptyOutputs(3), nil
	}

	shortPer := 2.0 / (float64(short) + 1.0)
	longPer := 2.0 / (float64(long) + 1.0)
	signalPer := 2.0 / (float64(signal) + 1.0)
	if short == 12 && long == 26 {
		// Conventional rounded multipliers for the standard setting
		shortPer, longPer = 0.15, 0.075
	}

	src := in[0]
	n := size - start
	line := make([]float64, 0, n)
	sig := make([]float64, 0, n)
	hist := make([]float64, 0, n)

	shortEMA, longEMA := src[0], src[0]
	var signalEMA float64
	for i := 1; i < size; i++ {
		shortEMA = (src[i]-shortEMA)*shortPer + shortEMA
		longEMA = (src[i]-longEMA)*longPer + longEMA
		out := shortEMA - longEMA

		if i == start {
			signalEMA = out
		}
		if i >= start {
			signalEMA = (out-signalEMA)*signalPer + signalEMA
			line = append(line, out)
			sig = append(sig, signalEMA)
			hist = append(hist, out-signalEMA)
		}
	}
	return [][]float64{line, sig, hist}, nil
}
