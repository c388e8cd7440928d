package indicators

// OBV computes On-Balance Volume: a running total of volume, added when
// price closes higher than the prior bar and subtracted when it closes lower.
func OBV(closePrices, volume []float64) (Series, error) {
	n := len(closePrices)
	if n == 0 {
		return nil, ErrParameterInvalid
	}

	out := newSeries(n)
	out[0] = volume[0]
	for i := 1; i < n; i++ {
		switch {
		case closePrices[i] > closePrices[i-1]:
			out[i] = out[i-1] + volume[i]
		case closePrices[i] < closePrices[i-1]:
			out[i] = out[i-1] - volume[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out, nil
}
