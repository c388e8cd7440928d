package indicators

import "math"

// DEMA computes the Double Exponential Moving Average:
// DEMA = 2*EMA(n) - EMA(EMA(n)).
func DEMA(closePrices []float64, period int) (Series, error) {
	ema1, err := EMA(closePrices, period)
	if err != nil {
		return nil, err
	}
	ema2 := emaOfSeries(ema1, period)

	out := newSeries(len(closePrices))
	for i := range out {
		if math.IsNaN(ema1[i]) || math.IsNaN(ema2[i]) {
			continue
		}
		out[i] = 2*ema1[i] - ema2[i]
	}
	return out, nil
}

// TEMA computes the Triple Exponential Moving Average:
// TEMA = 3*EMA(n) - 3*EMA(EMA(n)) + EMA(EMA(EMA(n))).
func TEMA(closePrices []float64, period int) (Series, error) {
	ema1, err := EMA(closePrices, period)
	if err != nil {
		return nil, err
	}
	ema2 := emaOfSeries(ema1, period)
	ema3 := emaOfSeries(ema2, period)

	out := newSeries(len(closePrices))
	for i := range out {
		if math.IsNaN(ema1[i]) || math.IsNaN(ema2[i]) || math.IsNaN(ema3[i]) {
			continue
		}
		out[i] = 3*ema1[i] - 3*ema2[i] + ema3[i]
	}
	return out, nil
}

// emaOfSeries applies exponential smoothing (alpha = 2/(period+1)) to an intermediate
// series that already carries leading NaNs, smoothing only over the
// warmed-up tail and re-padding the result to the original length.
func emaOfSeries(series Series, period int) Series {
	start := 0
	for start < len(series) && math.IsNaN(series[start]) {
		start++
	}
	out := newSeries(len(series))
	if start >= len(series) {
		return out
	}

	alpha := 2.0 / float64(period+1)
	prev := series[start]
	out[start] = prev
	for i := start + 1; i < len(series); i++ {
		prev = alpha*series[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}
