// Package indicators implements the pure technical-indicator functions the
// signal engine binds expressions against: moving averages, oscillators,
// volatility bands, and volume-weighted series, each producing output
// aligned to the input candle series with leading NaNs where the indicator
// has not warmed up.
package indicators

import (
	"fmt"
	"math"

	"github.com/ajitpratap0/backtestcore/internal/candlestore"
)

// Series is a derived numeric series aligned 1:1 with an input candle
// series. Values before an indicator's warm-up period are NaN.
type Series []float64

// Kind enumerates the indicator kinds the library covers (spec.md §4.2).
type Kind string

const (
	KindEMA       Kind = "ema"
	KindSMA       Kind = "sma"
	KindWMA       Kind = "wma"
	KindDEMA      Kind = "dema"
	KindTEMA      Kind = "tema"
	KindHMA       Kind = "hma"
	KindRSI       Kind = "rsi"
	KindStoch     Kind = "stoch"
	KindMACD      Kind = "macd"
	KindBBands    Kind = "bbands"
	KindATR       Kind = "atr"
	KindNATR      Kind = "natr"
	KindADX       Kind = "adx"
	KindROC       Kind = "roc"
	KindCCI       Kind = "cci"
	KindWillR     Kind = "willr"
	KindMFI       Kind = "mfi"
	KindOBV       Kind = "obv"
	KindCMF       Kind = "cmf"
	KindVWAP      Kind = "vwap"
	KindVolumeSMA Kind = "volume_sma"
)

// Spec is one configured indicator instance from a strategy template:
// `indicators: list of { kind, alias?, params }` (spec.md §3).
type Spec struct {
	Kind   Kind
	Alias  string
	Params map[string]float64
}

var nanValue = math.NaN()

func newSeries(n int) Series {
	s := make(Series, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func intParam(params map[string]float64, key string, def int) int {
	if v, ok := params[key]; ok {
		return int(v)
	}
	return def
}

func floatParam(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}

func closes(candles []candlestore.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func highs(candles []candlestore.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

func lows(candles []candlestore.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

func volumes(candles []candlestore.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

func validatePeriod(period, n int) error {
	if period < 1 || period > n {
		return fmt.Errorf("%w: period %d out of range for %d bars", ErrParameterInvalid, period, n)
	}
	return nil
}
