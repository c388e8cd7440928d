package indicators

import "math"

// ADX computes the Average Directional Index. cinar/indicator/v2 has no ADX
// implementation, so this follows the teacher's own manual Wilder-smoothing
// approach (directional movement -> smoothed TR/+DM/-DM -> DX -> smoothed
// DX), generalized to return the full aligned series instead of only the
// latest value.
func ADX(high, low, closePrices []float64, period int) (Series, error) {
	n := len(closePrices)
	if err := validatePeriod(period, n); err != nil {
		return nil, err
	}
	if len(high) != n || len(low) != n {
		return nil, ErrParameterInvalid
	}

	tr := trueRange(high, low, closePrices)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	plusDM[0], minusDM[0] = nanValue, nanValue

	for i := 1; i < n; i++ {
		upMove := high[i] - high[i-1]
		downMove := low[i-1] - low[i]

		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	smoothTR := smoothWilder(tr, period)
	smoothPlusDM := smoothWilder(plusDM, period)
	smoothMinusDM := smoothWilder(minusDM, period)

	dx := newSeries(n)
	for i := range dx {
		if math.IsNaN(smoothTR[i]) || smoothTR[i] == 0 {
			continue
		}
		plusDI := 100 * smoothPlusDM[i] / smoothTR[i]
		minusDI := 100 * smoothMinusDM[i] / smoothTR[i]
		diSum := plusDI + minusDI
		if diSum != 0 {
			dx[i] = 100 * math.Abs(plusDI-minusDI) / diSum
		} else {
			dx[i] = 0
		}
	}

	return Series(smoothWilder(dx, period)), nil
}
