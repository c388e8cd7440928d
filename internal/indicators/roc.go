package indicators

// ROC computes the Rate of Change: percentage price change over period bars.
func ROC(closePrices []float64, period int) (Series, error) {
	n := len(closePrices)
	if err := validatePeriod(period, n); err != nil {
		return nil, err
	}

	out := newSeries(n)
	for i := period; i < n; i++ {
		prev := closePrices[i-period]
		if prev == 0 {
			continue
		}
		out[i] = (closePrices[i]/prev - 1) * 100
	}
	return out, nil
}
