package refiner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/backtestcore/internal/strategy"
	"github.com/ajitpratap0/backtestcore/pkg/backtest"
)

func thresholdTemplate() *strategy.Template {
	tmpl := strategy.NewDefaultTemplate("threshold")
	tmpl.Indicators = []strategy.IndicatorConfig{}
	tmpl.EntryLogic = "close > 100"
	tmpl.ExitLogic = "close <= 100"
	return tmpl
}

func TestEvaluate_EntersAtMappedFineBar(t *testing.T) {
	daily := []*backtest.Candlestick{
		fineCandle(day(2024, 1, 1), 99),
		fineCandle(day(2024, 1, 2), 101),
		fineCandle(day(2024, 1, 3), 99),
	}
	fine := []*backtest.Candlestick{
		fineCandle(day(2024, 1, 2), 101),
		fineCandle(day(2024, 1, 2).Add(15*time.Minute), 101.2),
		fineCandle(day(2024, 1, 3), 99.5),
		fineCandle(day(2024, 1, 3).Add(15*time.Minute), 99.2),
	}

	cfg := backtest.BacktestConfig{InitialCapital: 10000, PositionSizing: "percent", PositionSize: 0.5, MaxPositions: 1}

	engine, err := Evaluate(context.Background(), "BTCUSDT", thresholdTemplate(), daily, fine, cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, engine.Trades, "the daily entry mapped to a fine bar should have produced a fill")
}

func TestEvaluate_EmptyFineCandlesFallsBackToCoarse(t *testing.T) {
	daily := []*backtest.Candlestick{
		fineCandle(day(2024, 1, 1), 99),
		fineCandle(day(2024, 1, 2), 101),
		fineCandle(day(2024, 1, 3), 99),
	}
	cfg := backtest.BacktestConfig{InitialCapital: 10000, PositionSizing: "percent", PositionSize: 0.5, MaxPositions: 1}

	engine, err := Evaluate(context.Background(), "BTCUSDT", thresholdTemplate(), daily, nil, cfg)
	require.NoError(t, err)
	assert.Len(t, engine.Data["BTCUSDT"], 3)
}

func TestDailyEntryExitMasks_MatchesExpressionOverClose(t *testing.T) {
	daily := []*backtest.Candlestick{
		fineCandle(day(2024, 1, 1), 99),
		fineCandle(day(2024, 1, 2), 101),
	}

	masks, err := dailyEntryExitMasks("BTCUSDT", thresholdTemplate(), daily)
	require.NoError(t, err)
	require.Len(t, masks.entry, 2)
	assert.False(t, masks.entry[0])
	assert.True(t, masks.entry[1])
}
