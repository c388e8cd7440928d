package indicators

import "math"

// HMA computes the Hull Moving Average:
// HMA(n) = WMA(2*WMA(n/2) - WMA(n), round(sqrt(n))), which reacts faster
// than a plain WMA while keeping smoothness.
func HMA(closePrices []float64, period int) (Series, error) {
	if err := validatePeriod(period, len(closePrices)); err != nil {
		return nil, err
	}

	halfPeriod := period / 2
	if halfPeriod < 1 {
		halfPeriod = 1
	}
	sqrtPeriod := int(math.Round(math.Sqrt(float64(period))))
	if sqrtPeriod < 1 {
		sqrtPeriod = 1
	}

	wmaHalf := wmaRaw(closePrices, halfPeriod)
	wmaFull := wmaRaw(closePrices, period)

	raw := make([]float64, len(closePrices))
	for i := range raw {
		if math.IsNaN(wmaHalf[i]) || math.IsNaN(wmaFull[i]) {
			raw[i] = nanValue
			continue
		}
		raw[i] = 2*wmaHalf[i] - wmaFull[i]
	}

	return wmaRaw(raw, sqrtPeriod), nil
}
