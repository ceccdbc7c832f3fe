package indicator

// wilders is Wilder's smoothed moving average.
// First value is SMA(period), then SMMA = prev + (price - prev) / period.
var wilders = Func{
	Name:    "wilders",
	Inputs:  1,
	Options: 1,
	Outputs: []string{"wilders"},
	Start:   func(p []float64) int { return int(p[0]) - 1 },
	calc:    wildersCalc,
}

func wildersCalc(in [][]float64, params []float64, size int) ([][]float64, error) {
	p, err := period("wilders", params[0], 1)
	if err != nil {
		return nil, err
	}
	start := p - 1
	if size <= start {
		return emptyOutputs(1), nil
	}

	src := in[0]
	per := 1.0 / float64(p)
	out := make([]float64, 0, size-start)

	// Accumulate for initial SMA seed
	sum := 0.0
	for i := 0; i < p; i++ {
		sum += src[i]
	}
	val := sum / float64(p)
	out = append(out, val)

	for i := p; i < size; i++ {
		val = (src[i]-val)*per + val
		out = append(out, val)
	}
	return [][]float64{out}, nil
}
