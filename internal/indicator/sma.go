package indicator

// sma is the simple moving average over a rolling window of period values.
var sma = Func{
	Name:    "sma",
	Inputs:  1,
	Options: 1,
	Outputs: []string{"sma"},
	Start:   func(p []float64) int { return int(p[0]) - 1 },
	calc:    smaCalc,
}

func smaCalc(in [][]float64, params []float64, size int) ([][]float64, error) {
	p, err := period("sma", params[0], 1)
	if err != nil {
		return nil, err
	}
	start := p - 1
	if size <= start {
		return emptyOutputs(1), nil
	}

	src := in[0]
	out := make([]float64, 0, size-start)
	scale := 1.0 / float64(p)

	sum := 0.0
	for i := 0; i < p; i++ {
		sum += src[i]
	}
	out = append(out, sum*scale)

	for i := p; i < size; i++ {
		// Slide the window: add newest, drop oldest
		sum += src[i] - src[i-p]
		out = append(out, sum*scale)
	}
	return [][]float64{out}, nil
}
