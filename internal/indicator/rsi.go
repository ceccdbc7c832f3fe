package indicator

// rsi is the Relative Strength Index using Wilder's smoothing method.
// The first value uses the plain average of the first period moves.
var rsi = Func{
	Name:    "rsi",
	Inputs:  1,
	Options: 1,
	Outputs: []string{"rsi"},
	Start:   func(p []float64) int { return int(p[0]) },
	calc:    rsiCalc,
}

func rsiCalc(in [][]float64, params []float64, size int) ([][]float64, error) {
	p, err := period("rsi", params[0], 1)
	if err != nil {
		return nil, err
	}
	if size <= p {
		return emptyOutputs(1), nil
	}

	src := in[0]
	per := 1.0 / float64(p)
	out := make([]float64, 0, size-p)

	var avgGain, avgLoss float64
	for i := 1; i <= p; i++ {
		gain, loss := move(src[i-1], src[i])
		avgGain += gain
		avgLoss += loss
	}
	avgGain /= float64(p)
	avgLoss /= float64(p)
	out = append(out, rsiValue(avgGain, avgLoss))

	for i := p + 1; i < size; i++ {
		gain, loss := move(src[i-1], src[i])
		avgGain = (gain-avgGain)*per + avgGain
		avgLoss = (loss-avgLoss)*per + avgLoss
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return [][]float64{out}, nil
}

func move(prev, cur float64) (gain, loss float64) {
	if cur > prev {
		return cur - prev, 0
	}
	return 0, prev - cur
}

// rsiValue returns 100*gain/(gain+loss); a flat window reads as neutral 50.
func rsiValue(gain, loss float64) float64 {
	total := gain + loss
	if total == 0 {
		return 50
	}
	return 100 * gain / total
}
