package indicator

// ema is the exponential moving average seeded with the first input value.
// Multiplier = 2 / (period + 1). Output starts at index 0.
var ema = Func{
	Name:    "ema",
	Inputs:  1,
	Options: 1,
	Outputs: []string{"ema"},
	Start:   func([]float64) int { return 0 },
	calc:    emaCalc,
}

func emaCalc(in [][]float64, params []float64, size int) ([][]float64, error) {
	p, err := period("ema", params[0], 1)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return emptyOutputs(1), nil
	}

	src := in[0]
	per := 2.0 / (float64(p) + 1.0)
	out := make([]float64, size)

	val := src[0]
	out[0] = val
	for i := 1; i < size; i++ {
		val = (src[i]-val)*per + val
		out[i] = val
	}
	return [][]float64{out}, nil
}
