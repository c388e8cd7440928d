package indicators

import "github.com/cinar/indicator/v2/momentum"

// RSI computes the Relative Strength Index.
func RSI(closePrices []float64, period int) (Series, error) {
	if err := validatePeriod(period, len(closePrices)); err != nil {
		return nil, err
	}
	return computeTrendSeries(closePrices, period, momentum.NewRsiWithPeriod[float64](period).Compute), nil
}
