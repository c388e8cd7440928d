package refiner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/backtestcore/internal/signal"
	"github.com/ajitpratap0/backtestcore/pkg/backtest"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func fineCandle(t time.Time, close float64) *backtest.Candlestick {
	return &backtest.Candlestick{Symbol: "BTCUSDT", Timestamp: t, Open: close, High: close, Low: close, Close: close, Volume: 1}
}

func TestFirstFineIndexPerDay(t *testing.T) {
	fine := []*backtest.Candlestick{
		fineCandle(day(2024, 1, 1).Add(15*time.Minute), 1),
		fineCandle(day(2024, 1, 1).Add(30*time.Minute), 2),
		fineCandle(day(2024, 1, 2), 3),
	}

	index := firstFineIndexPerDay(fine)
	assert.Equal(t, 0, index[day(2024, 1, 1)])
	assert.Equal(t, 2, index[day(2024, 1, 2)])
}

func TestMapSignalsToFineBars_MapsToNextDayOpen(t *testing.T) {
	daily := []*backtest.Candlestick{
		fineCandle(day(2024, 1, 1), 100),
		fineCandle(day(2024, 1, 2), 101),
	}
	fine := []*backtest.Candlestick{
		fineCandle(day(2024, 1, 2), 101),
		fineCandle(day(2024, 1, 2).Add(15*time.Minute), 101.5),
		fineCandle(day(2024, 1, 3), 102),
	}
	masks := &dailyMasks{
		entry: signal.Mask{true, false},
		exit:  signal.Mask{false, true},
	}

	buyAt, sellAt := mapSignalsToFineBars(daily, fine, masks)

	assert.True(t, buyAt[0], "day 0's entry signal should map to the first fine bar of day 1")
	assert.True(t, sellAt[2], "day 1's exit signal should map to the first fine bar of day 2")
	assert.False(t, sellAt[0])
}

func TestMapSignalsToFineBars_NoMatchingFineDayIsSkipped(t *testing.T) {
	daily := []*backtest.Candlestick{fineCandle(day(2024, 1, 1), 100)}
	fine := []*backtest.Candlestick{fineCandle(day(2024, 5, 1), 100)}
	masks := &dailyMasks{entry: signal.Mask{true}, exit: signal.Mask{false}}

	buyAt, sellAt := mapSignalsToFineBars(daily, fine, masks)
	assert.Empty(t, buyAt)
	assert.Empty(t, sellAt)
}

func TestFineSignalStrategy_EmitsBuyAtMappedIndex(t *testing.T) {
	candles := []*backtest.Candlestick{
		fineCandle(day(2024, 1, 1), 100),
		fineCandle(day(2024, 1, 1).Add(15*time.Minute), 101),
		fineCandle(day(2024, 1, 1).Add(30*time.Minute), 102),
	}

	engine := backtest.NewEngine(backtest.BacktestConfig{InitialCapital: 10000, MaxPositions: 1})
	require.NoError(t, engine.LoadHistoricalData("BTCUSDT", candles))

	strat := &fineSignalStrategy{
		symbol: "BTCUSDT",
		buyAt:  map[int]bool{0: true},
		sellAt: map[int]bool{2: true},
	}

	engine.CurrentIndex["BTCUSDT"] = 0
	signals, err := strat.GenerateSignals(engine)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, "BUY", signals[0].Side)
}
