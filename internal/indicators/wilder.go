package indicators

import "math"

// trueRange computes the per-bar true range series: max(high-low,
// |high-prevClose|, |low-prevClose|). Index 0 has no previous close and is
// left NaN.
func trueRange(high, low, closePrices []float64) []float64 {
	n := len(high)
	tr := make([]float64, n)
	tr[0] = nanValue
	for i := 1; i < n; i++ {
		tr[i] = math.Max(high[i]-low[i],
			math.Max(math.Abs(high[i]-closePrices[i-1]), math.Abs(low[i]-closePrices[i-1])))
	}
	return tr
}

// smoothWilder applies Wilder's smoothing method: the first smoothed value
// is a simple average over period, subsequent values blend in one new
// sample at a time. Leading positions are left NaN.
func smoothWilder(data []float64, period int) []float64 {
	n := len(data)
	out := make([]float64, n)
	for i := range out {
		out[i] = nanValue
	}
	if period < 1 || n < period {
		return out
	}

	start := 0
	for start < n && math.IsNaN(data[start]) {
		start++
	}
	if n-start < period {
		return out
	}

	var sum float64
	for i := start; i < start+period; i++ {
		sum += data[i]
	}
	out[start+period-1] = sum / float64(period)

	for i := start + period; i < n; i++ {
		out[i] = (out[i-1]*float64(period-1) + data[i]) / float64(period)
	}
	return out
}
