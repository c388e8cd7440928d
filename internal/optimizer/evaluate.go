package optimizer

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/backtestcore/internal/refiner"
	"github.com/ajitpratap0/backtestcore/internal/signal"
	"github.com/ajitpratap0/backtestcore/internal/strategy"
	"github.com/ajitpratap0/backtestcore/pkg/backtest"
)

// metricsKeySharpe and metricsKeyReturn name the two metrics the composite
// score (spec.md §4.7 step 4) normalizes across a stage's results.
const (
	metricsKeySharpe = "sharpe_ratio"
	metricsKeyReturn = "total_return_pct"
)

// CoarseEvaluator builds a WorkerContext.Evaluate function that runs the
// ordinary daily backtester (pkg/backtest.Engine) against a single symbol's
// candle series. symbol must match the key engine.LoadHistoricalData is
// called with, so position/signal lookups inside CompiledStrategy resolve.
func CoarseEvaluator(symbol string) func(ctx context.Context, tmpl *strategy.Template, candles []*backtest.Candlestick, engineConfig backtest.BacktestConfig) (map[string]float64, error) {
	return func(ctx context.Context, tmpl *strategy.Template, candles []*backtest.Candlestick, engineConfig backtest.BacktestConfig) (map[string]float64, error) {
		engine, err := runCoarseEngine(ctx, symbol, tmpl, candles, engineConfig)
		if err != nil {
			return nil, err
		}

		metrics, err := backtest.CalculateMetrics(engine)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParameterInvalid, err)
		}

		return metricsToMap(metrics), nil
	}
}

// runCoarseEngine builds and runs a coarse daily Engine for tmpl/candles,
// returning the settled engine itself rather than a flattened metrics map.
// Shared by CoarseEvaluator and the top-K heavy-metrics enrichment pass
// (spec.md §4.7 "Final materialization"), both of which need the underlying
// ClosedPositions/EquityCurve, not just the light metric set.
func runCoarseEngine(ctx context.Context, symbol string, tmpl *strategy.Template, candles []*backtest.Candlestick, engineConfig backtest.BacktestConfig) (*backtest.Engine, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: no candles loaded for %s", ErrParameterInvalid, symbol)
	}

	engine := backtest.NewEngine(engineConfig)
	if err := engine.LoadHistoricalData(symbol, candles); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParameterInvalid, err)
	}

	strat := signal.NewCompiledStrategy(tmpl)
	if err := engine.Run(ctx, strat); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParameterInvalid, err)
	}

	return engine, nil
}

// DeepEvaluator builds a WorkerContext.Evaluate function that routes each
// combination through internal/refiner instead of the coarse engine: daily
// signals are computed against dailyCandles, then replayed at fine
// resolution using fineCandles (loaded once per run by the caller, per
// spec.md §4.7 step 3's I/O amortization note, since fineCandles is
// captured once here at construction).
func DeepEvaluator(symbol string, fineCandles []*backtest.Candlestick) func(ctx context.Context, tmpl *strategy.Template, candles []*backtest.Candlestick, engineConfig backtest.BacktestConfig) (map[string]float64, error) {
	return func(ctx context.Context, tmpl *strategy.Template, dailyCandles []*backtest.Candlestick, engineConfig backtest.BacktestConfig) (map[string]float64, error) {
		if len(dailyCandles) == 0 {
			return nil, fmt.Errorf("%w: no daily candles loaded for %s", ErrParameterInvalid, symbol)
		}

		engine, err := refiner.Evaluate(ctx, symbol, tmpl, dailyCandles, fineCandles, engineConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParameterInvalid, err)
		}

		metrics, err := backtest.CalculateMetrics(engine)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParameterInvalid, err)
		}

		return metricsToMap(metrics), nil
	}
}

func metricsToMap(m *backtest.Metrics) map[string]float64 {
	return map[string]float64{
		metricsKeySharpe:       m.SharpeRatio,
		metricsKeyReturn:       m.TotalReturnPct,
		"sortino_ratio":        m.SortinoRatio,
		"calmar_ratio":         m.CalmarRatio,
		"max_drawdown_pct":     m.MaxDrawdownPct,
		"profit_factor":        m.ProfitFactor,
		"expectancy":           m.Expectancy,
		"win_rate":             m.WinRate,
		"total_trades":         float64(m.TotalTrades),
		"trade_concentration":  m.TradeConcentration,
		"max_consecutive_wins": float64(m.MaxConsecutiveWins),
	}
}
