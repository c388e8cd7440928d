package indicators

import "github.com/cinar/indicator/v2/trend"

// SMA computes the Simple Moving Average.
func SMA(closePrices []float64, period int) (Series, error) {
	if err := validatePeriod(period, len(closePrices)); err != nil {
		return nil, err
	}
	return computeTrendSeries(closePrices, period, trend.NewSmaWithPeriod[float64](period).Compute), nil
}
