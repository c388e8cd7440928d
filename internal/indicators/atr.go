package indicators

import "math"

// ATR computes the Average True Range via Wilder's smoothing of the true
// range series.
func ATR(high, low, closePrices []float64, period int) (Series, error) {
	if err := validatePeriod(period, len(closePrices)); err != nil {
		return nil, err
	}
	tr := trueRange(high, low, closePrices)
	return Series(smoothWilder(tr, period)), nil
}

// NATR computes the Normalized ATR: ATR expressed as a percentage of the
// closing price, which makes it comparable across instruments of different
// price scale.
func NATR(high, low, closePrices []float64, period int) (Series, error) {
	atr, err := ATR(high, low, closePrices, period)
	if err != nil {
		return nil, err
	}
	out := newSeries(len(closePrices))
	for i, v := range atr {
		if math.IsNaN(v) || closePrices[i] == 0 {
			continue
		}
		out[i] = (v / closePrices[i]) * 100
	}
	return out, nil
}
