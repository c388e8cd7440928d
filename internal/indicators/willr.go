package indicators

import "math"

// WilliamsR computes Williams %R: 100 * (highest_high - close) / (highest_high - lowest_low),
// negated into the conventional [-100, 0] range.
func WilliamsR(high, low, closePrices []float64, period int) (Series, error) {
	n := len(closePrices)
	if err := validatePeriod(period, n); err != nil {
		return nil, err
	}

	out := newSeries(n)
	for i := period - 1; i < n; i++ {
		hh, ll := high[i], low[i]
		for j := i - period + 1; j <= i; j++ {
			hh = math.Max(hh, high[j])
			ll = math.Min(ll, low[j])
		}
		if hh == ll {
			out[i] = -50
			continue
		}
		out[i] = -100 * (hh - closePrices[i]) / (hh - ll)
	}
	return out, nil
}
