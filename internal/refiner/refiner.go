// Package refiner implements the deep-backtest refiner (spec.md §4.5): it
// resolves same-day ambiguity between a stop-loss touch and a signal-based
// exit — which the daily-resolution backtester cannot order — by replaying
// the day at finer (default 15-minute) resolution.
//
// There is no direct teacher analog; the package is grounded on
// pkg/backtest.Engine's own bar-walking idiom (Step/GetCurrentCandle),
// reused here by feeding the engine synthetic signals precomputed from the
// daily entry/exit masks and letting the engine's existing intra-bar
// stop-loss/take-profit logic run at fine resolution instead of daily.
package refiner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/backtestcore/internal/signal"
	"github.com/ajitpratap0/backtestcore/internal/strategy"
	"github.com/ajitpratap0/backtestcore/pkg/backtest"
)

// Evaluate runs tmpl against dailyCandles at daily resolution to derive
// entry/exit bars, then replays the position at fine (e.g. 15m) resolution
// using fineCandles so same-day stop-vs-signal ordering is resolved
// correctly, per spec.md §4.5. When fineCandles is empty it falls back to
// an ordinary coarse-resolution run with a logged warning.
func Evaluate(ctx context.Context, symbol string, tmpl *strategy.Template, dailyCandles, fineCandles []*backtest.Candlestick, cfg backtest.BacktestConfig) (*backtest.Engine, error) {
	if len(fineCandles) == 0 {
		log.Warn().Str("symbol", symbol).Msg("deep-backtest refiner: finer series unavailable, falling back to coarse")
		return runCoarse(ctx, symbol, tmpl, dailyCandles, cfg)
	}

	dailyMasks, err := dailyEntryExitMasks(symbol, tmpl, dailyCandles)
	if err != nil {
		return nil, fmt.Errorf("refiner: compute daily masks: %w", err)
	}

	buyAt, sellAt := mapSignalsToFineBars(dailyCandles, fineCandles, dailyMasks)

	engine := backtest.NewEngine(cfg)
	if err := engine.LoadHistoricalData(symbol, fineCandles); err != nil {
		return nil, fmt.Errorf("refiner: load fine candles: %w", err)
	}

	strat := &fineSignalStrategy{symbol: symbol, buyAt: buyAt, sellAt: sellAt}
	if err := engine.Run(ctx, strat); err != nil {
		return nil, fmt.Errorf("refiner: run fine-resolution engine: %w", err)
	}

	return engine, nil
}

func runCoarse(ctx context.Context, symbol string, tmpl *strategy.Template, dailyCandles []*backtest.Candlestick, cfg backtest.BacktestConfig) (*backtest.Engine, error) {
	engine := backtest.NewEngine(cfg)
	if err := engine.LoadHistoricalData(symbol, dailyCandles); err != nil {
		return nil, fmt.Errorf("refiner: load daily candles: %w", err)
	}

	strat := signal.NewCompiledStrategy(tmpl)
	if err := engine.Run(ctx, strat); err != nil {
		return nil, fmt.Errorf("refiner: run coarse engine: %w", err)
	}

	return engine, nil
}

type dailyMasks struct {
	entry signal.Mask
	exit  signal.Mask
}

// dailyEntryExitMasks computes the entry/exit boolean series over the daily
// candles using the same compiled-expression machinery the coarse
// backtester uses, without running an actual simulation.
func dailyEntryExitMasks(symbol string, tmpl *strategy.Template, dailyCandles []*backtest.Candlestick) (*dailyMasks, error) {
	compiled := signal.NewCompiledStrategy(tmpl)

	probe := backtest.NewEngine(backtest.BacktestConfig{InitialCapital: 1, MaxPositions: 1})
	if err := probe.LoadHistoricalData(symbol, dailyCandles); err != nil {
		return nil, err
	}
	if err := compiled.Initialize(probe); err != nil {
		return nil, err
	}

	entry, exit, err := compiled.EntryExitMasks(symbol)
	if err != nil {
		return nil, err
	}
	return &dailyMasks{entry: entry, exit: exit}, nil
}
