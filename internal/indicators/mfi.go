package indicators

// MFI computes the Money Flow Index: a volume-weighted RSI over the typical
// price (high+low+close)/3.
func MFI(high, low, closePrices, volume []float64, period int) (Series, error) {
	n := len(closePrices)
	if err := validatePeriod(period, n); err != nil {
		return nil, err
	}

	typical := make([]float64, n)
	rawFlow := make([]float64, n)
	for i := range typical {
		typical[i] = (high[i] + low[i] + closePrices[i]) / 3
		rawFlow[i] = typical[i] * volume[i]
	}

	out := newSeries(n)
	for i := period; i < n; i++ {
		var positive, negative float64
		for j := i - period + 1; j <= i; j++ {
			if typical[j] > typical[j-1] {
				positive += rawFlow[j]
			} else if typical[j] < typical[j-1] {
				negative += rawFlow[j]
			}
		}
		if negative == 0 {
			out[i] = 100
			continue
		}
		moneyRatio := positive / negative
		out[i] = 100 - (100 / (1 + moneyRatio))
	}
	return out, nil
}
