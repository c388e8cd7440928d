package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSI_BoundedRange(t *testing.T) {
	cl := closes(syntheticCandles(100))
	series, err := RSI(cl, 14)
	require.NoError(t, err)
	require.Len(t, series, len(cl))

	for i, v := range series {
		if i < 14 {
			continue
		}
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestMACD_AlignedLengths(t *testing.T) {
	cl := closes(syntheticCandles(100))
	line, signal, hist, err := MACD(cl, 12, 26, 9)
	require.NoError(t, err)
	assert.Len(t, line, len(cl))
	assert.Len(t, signal, len(cl))
	assert.Len(t, hist, len(cl))

	for i := range line {
		if countLeadingNaN(line) <= i {
			assert.InDelta(t, line[i]-signal[i], hist[i], 1e-9)
		}
	}
}

func TestMACD_InvalidPeriodOrdering(t *testing.T) {
	cl := closes(syntheticCandles(50))
	_, _, _, err := MACD(cl, 26, 12, 9)
	assert.ErrorIs(t, err, ErrParameterInvalid)
}

func TestStochastic_BoundedRange(t *testing.T) {
	candles := syntheticCandles(100)
	k, d, err := Stochastic(highs(candles), lows(candles), closes(candles), 14, 3)
	require.NoError(t, err)
	require.Len(t, k, len(candles))
	require.Len(t, d, len(candles))

	for i, v := range k {
		if i < 13 {
			continue
		}
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestROC_PercentChangeOverPeriod(t *testing.T) {
	cl := []float64{10, 11, 12, 9, 10}
	series, err := ROC(cl, 1)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, series[1], 1e-9)
}

func TestCCI_SteadyStateFinite(t *testing.T) {
	candles := syntheticCandles(60)
	series, err := CCI(highs(candles), lows(candles), closes(candles), 20)
	require.NoError(t, err)
	assert.True(t, allFinite(series, len(series)-10))
}

func TestWilliamsR_BoundedRange(t *testing.T) {
	candles := syntheticCandles(60)
	series, err := WilliamsR(highs(candles), lows(candles), closes(candles), 14)
	require.NoError(t, err)
	for i, v := range series {
		if i < 13 {
			continue
		}
		assert.GreaterOrEqual(t, v, -100.0)
		assert.LessOrEqual(t, v, 0.0)
	}
}
