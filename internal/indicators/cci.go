package indicators

import "math"

// CCI computes the Commodity Channel Index over the typical price
// (high+low+close)/3: (typical - SMA(typical)) / (0.015 * mean absolute deviation).
func CCI(high, low, closePrices []float64, period int) (Series, error) {
	n := len(closePrices)
	if err := validatePeriod(period, n); err != nil {
		return nil, err
	}

	typical := make([]float64, n)
	for i := range typical {
		typical[i] = (high[i] + low[i] + closePrices[i]) / 3
	}

	out := newSeries(n)
	for i := period - 1; i < n; i++ {
		var sum float64
		for j := i - period + 1; j <= i; j++ {
			sum += typical[j]
		}
		mean := sum / float64(period)

		var mad float64
		for j := i - period + 1; j <= i; j++ {
			mad += math.Abs(typical[j] - mean)
		}
		mad /= float64(period)

		if mad == 0 {
			continue
		}
		out[i] = (typical[i] - mean) / (0.015 * mad)
	}
	return out, nil
}
