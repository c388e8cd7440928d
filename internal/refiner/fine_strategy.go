package refiner

import (
	"time"

	"github.com/ajitpratap0/backtestcore/pkg/backtest"
)

// mapSignalsToFineBars translates daily entry/exit masks into the fine-bar
// indices where each signal takes effect: the first fine bar of the
// calendar day following the signal's daily bar, matching spec.md §4.5
// ("the exit signal from the prior daily bar takes effect at the first 15m
// bar of that day at its open") and the backtester's next-bar-open
// execution model applied at daily granularity.
func mapSignalsToFineBars(dailyCandles, fineCandles []*backtest.Candlestick, masks *dailyMasks) (buyAt, sellAt map[int]bool) {
	buyAt = make(map[int]bool)
	sellAt = make(map[int]bool)

	dayOpenIndex := firstFineIndexPerDay(fineCandles)

	for d, candle := range dailyCandles {
		nextDay := candle.Timestamp.UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)

		idx, ok := dayOpenIndex[nextDay]
		if !ok {
			continue
		}
		if d < len(masks.entry) && masks.entry[d] {
			buyAt[idx] = true
		}
		if d < len(masks.exit) && masks.exit[d] {
			sellAt[idx] = true
		}
	}

	return buyAt, sellAt
}

func firstFineIndexPerDay(fineCandles []*backtest.Candlestick) map[time.Time]int {
	index := make(map[time.Time]int)
	for i, candle := range fineCandles {
		day := candle.Timestamp.UTC().Truncate(24 * time.Hour)
		if _, seen := index[day]; !seen {
			index[day] = i
		}
	}
	return index
}

// fineSignalStrategy emits a BUY/SELL at exactly the precomputed fine-bar
// indices; all execution timing, fee/slippage math, and intra-bar
// stop-loss/take-profit detection are left entirely to backtest.Engine,
// which already implements them at whatever candle resolution it is
// loaded with.
type fineSignalStrategy struct {
	symbol string
	buyAt  map[int]bool
	sellAt map[int]bool
}

func (s *fineSignalStrategy) Initialize(engine *backtest.Engine) error {
	return nil
}

func (s *fineSignalStrategy) GenerateSignals(engine *backtest.Engine) ([]*backtest.Signal, error) {
	index := engine.CurrentIndex[s.symbol]
	candles := engine.Data[s.symbol]
	if index >= len(candles) {
		return nil, nil
	}
	candle := candles[index]

	_, hasPosition := engine.Positions[s.symbol]

	var signals []*backtest.Signal
	if !hasPosition && s.buyAt[index] && len(engine.Positions) < engine.MaxPositions {
		signals = append(signals, &backtest.Signal{
			Timestamp: candle.Timestamp,
			Symbol:    s.symbol,
			Side:      "BUY",
			Reasoning: "deep-backtest refiner: daily entry_logic fired",
			Agent:     "refiner",
		})
	} else if hasPosition && s.sellAt[index] {
		signals = append(signals, &backtest.Signal{
			Timestamp: candle.Timestamp,
			Symbol:    s.symbol,
			Side:      "SELL",
			Reasoning: "deep-backtest refiner: daily exit_logic fired",
			Agent:     "refiner",
		})
	}

	return signals, nil
}

func (s *fineSignalStrategy) Finalize(engine *backtest.Engine) error {
	return nil
}
