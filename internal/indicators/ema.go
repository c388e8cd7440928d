package indicators

import (
	"github.com/cinar/indicator/v2/trend"
)

// EMA computes the Exponential Moving Average over the full close series,
// padded with leading NaNs so the output aligns with the input length.
func EMA(closePrices []float64, period int) (Series, error) {
	if err := validatePeriod(period, len(closePrices)); err != nil {
		return nil, err
	}
	return computeTrendSeries(closePrices, period, trend.NewEmaWithPeriod[float64](period).Compute), nil
}

// computeTrendSeries drives a cinar/indicator/v2 channel-based Computer over
// a price slice and left-pads the result to the input length, matching the
// teacher's channel-conversion idiom (pkg internal/indicators/ema.go et al.)
// generalized to return the whole series rather than only the latest value.
func computeTrendSeries(prices []float64, period int, compute func(<-chan float64) <-chan float64) Series {
	in := make(chan float64, len(prices))
	for _, p := range prices {
		in <- p
	}
	close(in)

	var values []float64
	for v := range compute(in) {
		values = append(values, v)
	}

	out := newSeries(len(prices))
	offset := len(prices) - len(values)
	for i, v := range values {
		out[offset+i] = v
	}
	return out
}
