package indicators

import "math"

// Stochastic computes the %K and %D lines of the Stochastic Oscillator.
// %K(i) = 100 * (close[i] - lowest_low[i-kPeriod+1:i+1]) / (highest_high - lowest_low).
// %D is the dPeriod-bar SMA of %K.
func Stochastic(high, low, closePrices []float64, kPeriod, dPeriod int) (percentK, percentD Series, err error) {
	n := len(closePrices)
	if err := validatePeriod(kPeriod, n); err != nil {
		return nil, nil, err
	}
	if dPeriod < 1 {
		return nil, nil, ErrParameterInvalid
	}

	percentK = newSeries(n)
	for i := kPeriod - 1; i < n; i++ {
		hh, ll := high[i], low[i]
		for j := i - kPeriod + 1; j <= i; j++ {
			hh = math.Max(hh, high[j])
			ll = math.Min(ll, low[j])
		}
		if hh == ll {
			percentK[i] = 50
			continue
		}
		percentK[i] = 100 * (closePrices[i] - ll) / (hh - ll)
	}

	percentD = newSeries(n)
	for i := kPeriod - 1 + dPeriod - 1; i < n; i++ {
		var sum float64
		valid := true
		for j := i - dPeriod + 1; j <= i; j++ {
			if math.IsNaN(percentK[j]) {
				valid = false
				break
			}
			sum += percentK[j]
		}
		if valid {
			percentD[i] = sum / float64(dPeriod)
		}
	}

	return percentK, percentD, nil
}
