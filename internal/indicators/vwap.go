package indicators

// VWAP computes the Volume-Weighted Average Price over a rolling window of
// period bars using the typical price (high+low+close)/3. A period of 0
// computes a running (session-to-date) VWAP from the start of the series.
func VWAP(high, low, closePrices, volume []float64, period int) (Series, error) {
	n := len(closePrices)
	if n == 0 {
		return nil, ErrParameterInvalid
	}
	if period < 0 {
		return nil, ErrParameterInvalid
	}

	typical := make([]float64, n)
	pv := make([]float64, n)
	for i := range typical {
		typical[i] = (high[i] + low[i] + closePrices[i]) / 3
		pv[i] = typical[i] * volume[i]
	}

	out := newSeries(n)

	if period == 0 {
		var pvSum, volSum float64
		for i := 0; i < n; i++ {
			pvSum += pv[i]
			volSum += volume[i]
			if volSum == 0 {
				continue
			}
			out[i] = pvSum / volSum
		}
		return out, nil
	}

	if err := validatePeriod(period, n); err != nil {
		return nil, err
	}

	for i := period - 1; i < n; i++ {
		var pvSum, volSum float64
		for j := i - period + 1; j <= i; j++ {
			pvSum += pv[j]
			volSum += volume[j]
		}
		if volSum == 0 {
			continue
		}
		out[i] = pvSum / volSum
	}
	return out, nil
}
