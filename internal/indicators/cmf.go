package indicators

// CMF computes the Chaikin Money Flow: the period-sum of the Money Flow
// Volume (money flow multiplier * volume) divided by the period-sum of volume.
func CMF(high, low, closePrices, volume []float64, period int) (Series, error) {
	n := len(closePrices)
	if err := validatePeriod(period, n); err != nil {
		return nil, err
	}

	mfv := make([]float64, n)
	for i := range mfv {
		rangeHL := high[i] - low[i]
		if rangeHL == 0 {
			continue
		}
		multiplier := ((closePrices[i] - low[i]) - (high[i] - closePrices[i])) / rangeHL
		mfv[i] = multiplier * volume[i]
	}

	out := newSeries(n)
	for i := period - 1; i < n; i++ {
		var mfvSum, volSum float64
		for j := i - period + 1; j <= i; j++ {
			mfvSum += mfv[j]
			volSum += volume[j]
		}
		if volSum == 0 {
			continue
		}
		out[i] = mfvSum / volSum
	}
	return out, nil
}
