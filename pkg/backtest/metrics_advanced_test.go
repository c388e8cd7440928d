package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxDrawdownDuration(t *testing.T) {
	now := time.Now()
	curve := []*EquityPoint{
		{Timestamp: now, Equity: 100},
		{Timestamp: now.Add(24 * time.Hour), Equity: 90},
		{Timestamp: now.Add(48 * time.Hour), Equity: 85},
		{Timestamp: now.Add(72 * time.Hour), Equity: 95},
		{Timestamp: now.Add(96 * time.Hour), Equity: 101},
	}

	dur := maxDrawdownDuration(curve)
	assert.Equal(t, 72*time.Hour, dur)
}

func TestMaxDrawdownDuration_NoDrawdown(t *testing.T) {
	now := time.Now()
	curve := []*EquityPoint{
		{Timestamp: now, Equity: 100},
		{Timestamp: now.Add(time.Hour), Equity: 110},
		{Timestamp: now.Add(2 * time.Hour), Equity: 120},
	}
	assert.Equal(t, time.Duration(0), maxDrawdownDuration(curve))
}

func TestCalculateStreaks(t *testing.T) {
	positions := []*ClosedPosition{
		{RealizedPL: 10},
		{RealizedPL: 10},
		{RealizedPL: -5},
		{RealizedPL: -5},
		{RealizedPL: -5},
		{RealizedPL: 10},
	}
	metrics := &Metrics{}
	calculateStreaks(metrics, positions)

	assert.Equal(t, 2, metrics.MaxConsecutiveWins)
	assert.Equal(t, 3, metrics.MaxConsecutiveLosses)
}

func TestTradeConcentration(t *testing.T) {
	positions := []*ClosedPosition{
		{RealizedPL: 100},
		{RealizedPL: 50},
		{RealizedPL: 25},
		{RealizedPL: -10},
	}
	// Gross profit = 175, top 2 = 150
	got := tradeConcentration(positions, 2)
	assert.InDelta(t, 150.0/175.0, got, 0.0001)
}

func TestTradeConcentration_NoWinningTrades(t *testing.T) {
	positions := []*ClosedPosition{{RealizedPL: -10}, {RealizedPL: -20}}
	assert.Equal(t, 0.0, tradeConcentration(positions, 10))
}

func TestCalculateMetricsWithBenchmark(t *testing.T) {
	engine := createTestEngineWithTrades()

	now := engine.EquityCurve[0].Timestamp
	benchmarkCandles := []*Candlestick{
		{Symbol: "BTC", Timestamp: now, Close: 100},
		{Symbol: "BTC", Timestamp: now.AddDate(1, 0, 0), Close: 150},
	}

	metrics, err := CalculateMetricsWithBenchmark(engine, benchmarkCandles)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, metrics.BenchmarkCAGR, 1.0)
	assert.Equal(t, metrics.CAGR-metrics.BenchmarkCAGR, metrics.Alpha)
}

func TestClassifyRegime(t *testing.T) {
	assert.Equal(t, RegimeBullStrong, classifyRegime(110, 100, 30))
	assert.Equal(t, RegimeBullWeak, classifyRegime(110, 100, 20))
	assert.Equal(t, RegimeBearStrong, classifyRegime(90, 100, 30))
	assert.Equal(t, RegimeBearWeak, classifyRegime(90, 100, 20))
	assert.Equal(t, RegimeRange, classifyRegime(100, 100, 10))
}

func TestCalculateRegimeBreakdown(t *testing.T) {
	now := time.Now()
	candles := make([]*Candlestick, 80)
	for i := range candles {
		price := 100.0 + float64(i)*2
		candles[i] = &Candlestick{
			Symbol:    "BTC",
			Timestamp: now.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    10,
		}
	}

	positions := []*ClosedPosition{
		{Symbol: "BTC", EntryTime: candles[70].Timestamp, RealizedPL: 50},
		{Symbol: "BTC", EntryTime: candles[75].Timestamp, RealizedPL: -20},
	}

	breakdown, err := CalculateRegimeBreakdown(candles, positions)
	require.NoError(t, err)
	assert.Len(t, breakdown, 5)

	var totalCount int
	for _, stats := range breakdown {
		totalCount += stats.Count
	}
	assert.Equal(t, 2, totalCount)
}

func TestEvaluateGoNoGo_Go(t *testing.T) {
	metrics := &Metrics{
		MaxDrawdownPct: 10,
		SharpeRatio:    1.5,
		ProfitFactor:   1.8,
		Expectancy:     5,
		TotalTrades:    100,
	}
	result := EvaluateGoNoGo(metrics, DefaultGoNoGoThresholds())
	assert.Equal(t, GoNoGoStatusGo, result.Status)
	assert.Empty(t, result.Reasons)
}

func TestEvaluateGoNoGo_NoGo(t *testing.T) {
	metrics := &Metrics{
		MaxDrawdownPct: 60,
		SharpeRatio:    -1,
		ProfitFactor:   0.5,
		Expectancy:     -10,
		TotalTrades:    2,
	}
	result := EvaluateGoNoGo(metrics, DefaultGoNoGoThresholds())
	assert.Equal(t, GoNoGoStatusNoGo, result.Status)
	assert.NotEmpty(t, result.Reasons)
}

func TestEvaluateGoNoGo_BenchmarkRequirement(t *testing.T) {
	metrics := &Metrics{
		MaxDrawdownPct: 5,
		SharpeRatio:    2,
		ProfitFactor:   2,
		Expectancy:     10,
		TotalTrades:    100,
		Alpha:          -1,
	}
	thresholds := DefaultGoNoGoThresholds()
	thresholds.RequireBeatBenchmark = true

	result := EvaluateGoNoGo(metrics, thresholds)
	assert.Equal(t, GoNoGoStatusNoGo, result.Status)
}
