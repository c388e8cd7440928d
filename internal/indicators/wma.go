package indicators

import "github.com/cinar/indicator/v2/trend"

// WMA computes the Weighted Moving Average, where more recent bars carry
// proportionally greater weight.
func WMA(closePrices []float64, period int) (Series, error) {
	if err := validatePeriod(period, len(closePrices)); err != nil {
		return nil, err
	}
	return computeTrendSeries(closePrices, period, trend.NewWmaWithPeriod[float64](period).Compute), nil
}

// wmaRaw is a manual WMA used as a building block by HMA, which needs WMA
// over an already-derived intermediate series (not necessarily the same
// length as the original candle series) and so cannot round-trip through
// cinar's channel Computer without reshaping it back to candle length each
// time.
func wmaRaw(values []float64, period int) []float64 {
	n := len(values)
	out := make([]float64, n)
	for i := range out {
		out[i] = nanValue
	}
	if period < 1 {
		return out
	}
	denom := float64(period * (period + 1) / 2)
	for i := period - 1; i < n; i++ {
		var sum float64
		for j := 0; j < period; j++ {
			weight := float64(period - j)
			sum += values[i-j] * weight
		}
		out[i] = sum / denom
	}
	return out
}
