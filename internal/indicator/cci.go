package indicator

import "math"

// cci is the Commodity Channel Index over the typical price (h+l+c)/3,
// scaled by 0.015 times the mean deviation of the last period values.
// The first output is at 2*(period-1).
var cci = Func{
	Name:    "cci",
	Inputs:  3,
	Options: 1,
	Outputs: []string{"cci"},
	Start:   func(p []float64) int { return (int(p[0]) - 1) * 2 },
	calc:    cciCalc,
}

func cciCalc(in [][]float64, params []float64, size int) ([][]float64, error) {
	p, err := period("cci", params[0], 1)
	if err != nil {
		return nil, err
	}
	start := (p - 1) * 2
	if size <= start {
		return emptyOutputs(1), nil
	}

	high, low, closes := in[0], in[1], in[2]
	typical := make([]float64, size)
	for i := range typical {
		typical[i] = (high[i] + low[i] + closes[i]) / 3
	}

	scale := 1.0 / float64(p)
	out := make([]float64, 0, size-start)
	for i := start; i < size; i++ {
		window := typical[i-p+1 : i+1]

		sum := 0.0
		for _, v := range window {
			sum += v
		}
		avg := sum * scale

		dev := 0.0
		for _, v := range window {
			dev += math.Abs(avg - v)
		}
		divisor := dev * scale * 0.015
		if divisor == 0 {
			// Flat window: price sits on its mean
			out = append(out, 0)
			continue
		}
		out = append(out, (typical[i]-avg)/divisor)
	}
	return [][]float64{out}, nil
}
