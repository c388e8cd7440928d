package indicators

import (
	"math"
	"math/rand"

	"github.com/ajitpratap0/backtestcore/internal/candlestore"
)

// syntheticCandles builds a deterministic, gap-free OHLCV series useful for
// exercising warm-up and steady-state indicator behavior without depending
// on any network fetch.
func syntheticCandles(n int) []candlestore.Candle {
	r := rand.New(rand.NewSource(42))
	out := make([]candlestore.Candle, n)
	price := 100.0
	for i := 0; i < n; i++ {
		delta := (r.Float64() - 0.5) * 2
		open := price
		close := price + delta
		high := math.Max(open, close) + r.Float64()
		low := math.Min(open, close) - r.Float64()
		out[i] = candlestore.Candle{
			TimestampMS: int64(i) * 60_000,
			Open:        open,
			High:        high,
			Low:         low,
			Close:       close,
			Volume:      100 + r.Float64()*50,
		}
		price = close
	}
	return out
}

func countLeadingNaN(s Series) int {
	for i, v := range s {
		if !math.IsNaN(v) {
			return i
		}
	}
	return len(s)
}

func allFinite(s Series, from int) bool {
	for _, v := range s[from:] {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
