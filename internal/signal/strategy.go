package signal

import (
	"fmt"

	"github.com/ajitpratap0/backtestcore/internal/candlestore"
	"github.com/ajitpratap0/backtestcore/internal/indicators"
	"github.com/ajitpratap0/backtestcore/internal/strategy"
	"github.com/ajitpratap0/backtestcore/pkg/backtest"
)

// CompiledStrategy is the concrete backtest.Strategy built from a
// strategy.Template: it computes the configured indicators once per symbol
// over the full candle range, compiles entry_logic/exit_logic against the
// resulting columns, and emits BUY/SELL signals bar-by-bar by reading the
// precomputed entry/exit masks at the engine's current index.
type CompiledStrategy struct {
	template *strategy.Template

	compiled *Compiled
	masks    map[string]symbolMasks
	holding  map[string]bool
}

type symbolMasks struct {
	entry Mask
	exit  Mask
}

// NewCompiledStrategy builds a CompiledStrategy from a validated template.
// Masks are computed lazily per symbol in Initialize, once engine.Data is
// populated.
func NewCompiledStrategy(tmpl *strategy.Template) *CompiledStrategy {
	return &CompiledStrategy{
		template: tmpl,
		masks:    make(map[string]symbolMasks),
		holding:  make(map[string]bool),
	}
}

// Initialize precomputes indicator columns and compiles/evaluates the
// entry/exit expressions for every symbol loaded into the engine.
func (s *CompiledStrategy) Initialize(engine *backtest.Engine) error {
	specs := s.template.IndicatorSpecs()

	for symbol, candles := range engine.Data {
		columns, resolver, err := buildResolver(candles, specs)
		if err != nil {
			return fmt.Errorf("%s: %w", symbol, err)
		}
		_ = columns

		if s.compiled == nil {
			compiled, err := Compile(s.template.EntryLogic, s.template.ExitLogic, resolver)
			if err != nil {
				return fmt.Errorf("%s: %w", symbol, err)
			}
			s.compiled = compiled
		}

		entryMask, exitMask, err := s.compiled.Run(len(candles), resolver)
		if err != nil {
			return fmt.Errorf("%s: %w", symbol, err)
		}

		s.masks[symbol] = symbolMasks{entry: entryMask, exit: exitMask}
		s.holding[symbol] = false
	}

	return nil
}

// buildResolver computes the template's indicators plus the OHLCV columns
// over candles and returns a Resolver closure over the combined column set.
func buildResolver(candles []*backtest.Candlestick, specs []indicators.Spec) (map[string]indicators.Series, Resolver, error) {
	storeCandles := make([]candlestore.Candle, len(candles))
	for i, c := range candles {
		storeCandles[i] = candlestore.Candle{
			TimestampMS: c.Timestamp.UnixMilli(),
			Open:        c.Open,
			High:        c.High,
			Low:         c.Low,
			Close:       c.Close,
			Volume:      c.Volume,
		}
	}

	columns, err := indicators.Compute(storeCandles, specs)
	if err != nil {
		return nil, nil, err
	}

	binder := indicators.NewBinder(columns, specs)

	ohlcv := map[string][]float64{
		"open":   make([]float64, len(candles)),
		"high":   make([]float64, len(candles)),
		"low":    make([]float64, len(candles)),
		"close":  make([]float64, len(candles)),
		"volume": make([]float64, len(candles)),
	}
	for i, c := range candles {
		ohlcv["open"][i] = c.Open
		ohlcv["high"][i] = c.High
		ohlcv["low"][i] = c.Low
		ohlcv["close"][i] = c.Close
		ohlcv["volume"][i] = c.Volume
	}

	resolver := func(name string) ([]float64, bool) {
		if series, ok := ohlcv[name]; ok {
			return series, true
		}
		if series, ok := binder.Resolve(name); ok {
			return series, true
		}
		return nil, false
	}

	return columns, resolver, nil
}

// GenerateSignals emits a BUY when the entry mask fires for a symbol with no
// open position, and a SELL when the exit mask fires while holding one.
//
// Engine.Step settles the bar at CurrentIndex[symbol] and only then
// increments the index, so by the time Run calls GenerateSignals,
// CurrentIndex[symbol] already points at the next, not-yet-settled bar.
// Reading the mask at that index would compute the signal from a bar's own
// close and let it fill at that same bar's open (spec.md §4.4/§9
// same-bar-look-ahead). Instead this reads the mask at the bar that was
// just settled (CurrentIndex[symbol]-1); the resulting pending intent is
// then filled by the next Step call at the open of the following bar.
func (s *CompiledStrategy) GenerateSignals(engine *backtest.Engine) ([]*backtest.Signal, error) {
	var signals []*backtest.Signal

	for symbol, candles := range engine.Data {
		index := engine.CurrentIndex[symbol] - 1
		if index < 0 || index >= len(candles) {
			continue
		}
		masks, ok := s.masks[symbol]
		if !ok || index >= len(masks.entry) {
			continue
		}
		candle := candles[index]
		_, hasPosition := engine.Positions[symbol]

		if !hasPosition && masks.entry[index] && len(engine.Positions) < engine.MaxPositions {
			signals = append(signals, &backtest.Signal{
				Timestamp: candle.Timestamp,
				Symbol:    symbol,
				Side:      "BUY",
				Reasoning: "entry_logic fired",
				Agent:     "compiled_strategy",
			})
			s.holding[symbol] = true
		} else if hasPosition && masks.exit[index] {
			signals = append(signals, &backtest.Signal{
				Timestamp: candle.Timestamp,
				Symbol:    symbol,
				Side:      "SELL",
				Reasoning: "exit_logic fired",
				Agent:     "compiled_strategy",
			})
			s.holding[symbol] = false
		}
	}

	return signals, nil
}

// Finalize is a no-op: the engine owns force-close/report behavior.
func (s *CompiledStrategy) Finalize(engine *backtest.Engine) error {
	return nil
}

// EntryExitMasks returns the precomputed entry/exit masks for symbol,
// computed during Initialize. Callers that need the raw signal series
// without running a simulation (the deep-backtest refiner, in particular)
// call Initialize followed by this instead of GenerateSignals.
func (s *CompiledStrategy) EntryExitMasks(symbol string) (entry, exit Mask, err error) {
	masks, ok := s.masks[symbol]
	if !ok {
		return nil, nil, fmt.Errorf("signal: no masks computed for symbol %q", symbol)
	}
	return masks.entry, masks.exit, nil
}
