// Package backtest provides a deterministic, next-bar-open backtesting
// engine for single-strategy runs over OHLCV candle series.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ============================================================================
// DATA STRUCTURES
// ============================================================================

// Candlestick represents OHLCV data for a time period.
type Candlestick struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Signal represents a trading intent observed at the close of a bar. Per the
// execution model, a signal takes effect at the open of the following bar,
// never the bar it was observed on.
type Signal struct {
	Timestamp  time.Time              `json:"timestamp"`
	Symbol     string                 `json:"symbol"`
	Side       string                 `json:"side"` // "BUY", "SELL", "HOLD"
	Confidence float64                `json:"confidence"`
	Reasoning  string                 `json:"reasoning"`
	Agent      string                 `json:"agent"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitReasonSignal     ExitReason = "signal"
	ExitReasonStopLoss   ExitReason = "stop_loss"
	ExitReasonTakeProfit ExitReason = "take_profit"
	ExitReasonForceClose ExitReason = "force_close"
)

// Trade represents a single executed fill (one leg of a position's lifecycle).
type Trade struct {
	ID         int       `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"` // "BUY", "SELL"
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	Value      float64   `json:"value"`
	Signal     *Signal   `json:"signal,omitempty"`
}

// Position represents an open, long-only trading position.
type Position struct {
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"` // "LONG"
	EntryTime      time.Time `json:"entry_time"`
	EntryPrice     float64   `json:"entry_price"`
	Quantity       float64   `json:"quantity"`
	CurrentPrice   float64   `json:"current_price"`
	UnrealizedPL   float64   `json:"unrealized_pl"`
	Commission     float64   `json:"commission"`
	StopPrice      float64   `json:"stop_price"`
	TakeProfitPrice float64  `json:"take_profit_price,omitempty"`
	HasTakeProfit  bool      `json:"has_take_profit"`
}

// ClosedPosition is a completed trade lifecycle, matching the canonical
// trade record produced by the execution model: entry/exit timestamps and
// prices, fees, exit reason, and realized P&L in both absolute and fractional
// terms.
type ClosedPosition struct {
	Symbol                string        `json:"symbol"`
	Side                  string        `json:"side"`
	EntryTime             time.Time     `json:"entry_time"`
	ExitTime              time.Time     `json:"exit_time"`
	EntryPrice            float64       `json:"entry_price"`
	ExitPrice             float64       `json:"exit_price"`
	Quantity              float64       `json:"quantity"`
	Fees                  float64       `json:"fees"`
	ExitReason            ExitReason    `json:"exit_reason"`
	RealizedPnLAbsolute   float64       `json:"realized_pnl_absolute"`
	RealizedPnLFraction   float64       `json:"realized_pnl_fraction"`
	HoldingTime           time.Duration `json:"holding_time"`

	// Kept for backward-compatible reporting.
	RealizedPL float64 `json:"realized_pl"`
	ReturnPct  float64 `json:"return_pct"`
	Commission float64 `json:"commission"`
}

// EquityPoint represents portfolio equity at a point in time.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
	Cash      float64   `json:"cash"`
	Holdings  float64   `json:"holdings"`
}

// ============================================================================
// BACKTEST ENGINE
// ============================================================================

// pendingIntent is a signal recorded at the close of bar t, awaiting
// execution at the open of bar t+1.
type pendingIntent struct {
	side   string
	signal *Signal
}

// Engine is the main backtesting engine. One Engine instance runs one
// strategy (compiled from one strategy.Template) across one or more symbols.
type Engine struct {
	// Configuration
	InitialCapital float64 `json:"initial_capital"`
	CommissionRate float64 `json:"commission_rate"` // fee fraction, e.g. 0.00075
	SlippageRate   float64 `json:"slippage_rate"`   // adverse price-move fraction, e.g. 0.0005
	PositionSizing string  `json:"position_sizing"` // "fixed", "percent", "all_in"
	PositionSize   float64 `json:"position_size"`
	MaxPositions   int     `json:"max_positions"`
	StopLoss       float64 `json:"stop_loss"`           // fraction in (0,1)
	StopGain       float64 `json:"stop_gain,omitempty"` // fraction in (0,1); 0 means disabled
	ForceCloseFinalBar bool `json:"force_close_final_bar"`

	// State
	Cash            float64              `json:"cash"`
	Positions       map[string]*Position `json:"positions"`
	Trades          []*Trade             `json:"trades"`
	ClosedPositions []*ClosedPosition    `json:"closed_positions"`
	EquityCurve     []*EquityPoint       `json:"equity_curve"`

	pending map[string]*pendingIntent

	// Historical data
	Data         map[string][]*Candlestick `json:"-"`
	CurrentIndex map[string]int            `json:"-"`

	// Statistics
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	TotalProfit    float64 `json:"total_profit"`
	TotalLoss      float64 `json:"total_loss"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	PeakEquity     float64 `json:"peak_equity"`
}

// NewEngine creates a new backtesting engine.
func NewEngine(config BacktestConfig) *Engine {
	return &Engine{
		InitialCapital:     config.InitialCapital,
		CommissionRate:     config.CommissionRate,
		SlippageRate:       config.SlippageRate,
		PositionSizing:     config.PositionSizing,
		PositionSize:       config.PositionSize,
		MaxPositions:       config.MaxPositions,
		StopLoss:           config.StopLoss,
		StopGain:           config.StopGain,
		ForceCloseFinalBar: config.ForceCloseFinalBar,
		Cash:               config.InitialCapital,
		Positions:          make(map[string]*Position),
		Trades:             []*Trade{},
		ClosedPositions:    []*ClosedPosition{},
		EquityCurve:        []*EquityPoint{},
		pending:            make(map[string]*pendingIntent),
		Data:               make(map[string][]*Candlestick),
		CurrentIndex:       make(map[string]int),
		PeakEquity:         config.InitialCapital,
	}
}

// BacktestConfig holds configuration for a backtest.
type BacktestConfig struct {
	InitialCapital     float64
	CommissionRate     float64
	SlippageRate       float64
	PositionSizing     string
	PositionSize       float64
	MaxPositions       int
	StopLoss           float64
	StopGain           float64
	ForceCloseFinalBar bool
	StartDate          time.Time
	EndDate            time.Time
	Symbols            []string
}

// ============================================================================
// DATA LOADING
// ============================================================================

// LoadHistoricalData loads candlestick data for backtesting.
func (e *Engine) LoadHistoricalData(symbol string, candlesticks []*Candlestick) error {
	if len(candlesticks) == 0 {
		return fmt.Errorf("no candlesticks provided for symbol %s", symbol)
	}

	sort.Slice(candlesticks, func(i, j int) bool {
		return candlesticks[i].Timestamp.Before(candlesticks[j].Timestamp)
	})

	e.Data[symbol] = candlesticks
	e.CurrentIndex[symbol] = 0

	log.Info().
		Str("symbol", symbol).
		Int("candles", len(candlesticks)).
		Time("start", candlesticks[0].Timestamp).
		Time("end", candlesticks[len(candlesticks)-1].Timestamp).
		Msg("Loaded historical data for backtesting")

	return nil
}

// GetCurrentCandle returns the current candlestick for a symbol.
func (e *Engine) GetCurrentCandle(symbol string) (*Candlestick, error) {
	candles, exists := e.Data[symbol]
	if !exists {
		return nil, fmt.Errorf("no data loaded for symbol %s", symbol)
	}

	index := e.CurrentIndex[symbol]
	if index >= len(candles) {
		return nil, fmt.Errorf("no more data for symbol %s", symbol)
	}

	return candles[index], nil
}

// GetHistoricalCandles returns N candlesticks before the current index.
func (e *Engine) GetHistoricalCandles(symbol string, lookback int) ([]*Candlestick, error) {
	candles, exists := e.Data[symbol]
	if !exists {
		return nil, fmt.Errorf("no data loaded for symbol %s", symbol)
	}

	currentIndex := e.CurrentIndex[symbol]
	if currentIndex == 0 {
		return []*Candlestick{}, nil
	}

	startIndex := currentIndex - lookback
	if startIndex < 0 {
		startIndex = 0
	}

	return candles[startIndex:currentIndex], nil
}

// ============================================================================
// TIME-STEP SIMULATION
// ============================================================================

// Step advances the backtest by one time step. It first settles any pending
// signal from the previous bar and checks intra-bar stop/take-profit against
// the new current bar, then marks positions to market at the bar's close.
func (e *Engine) Step(ctx context.Context) (bool, error) {
	hasMore := false
	for symbol := range e.Data {
		if e.CurrentIndex[symbol] < len(e.Data[symbol]) {
			hasMore = true
			break
		}
	}
	if !hasMore {
		return false, nil
	}

	var currentTime time.Time
	for symbol, candles := range e.Data {
		index := e.CurrentIndex[symbol]
		if index < len(candles) {
			candleTime := candles[index].Timestamp
			if currentTime.IsZero() || candleTime.Before(currentTime) {
				currentTime = candleTime
			}
		}
	}

	for symbol, candles := range e.Data {
		index := e.CurrentIndex[symbol]
		if index >= len(candles) || candles[index].Timestamp.After(currentTime) {
			continue
		}
		candle := candles[index]

		if err := e.settleBar(symbol, candle); err != nil {
			return true, fmt.Errorf("settle bar for %s: %w", symbol, err)
		}

		if position, ok := e.Positions[symbol]; ok {
			position.CurrentPrice = candle.Close
			position.UnrealizedPL = e.calculateUnrealizedPL(position)
		}
	}

	e.recordEquityPoint(currentTime)

	for symbol, candles := range e.Data {
		index := e.CurrentIndex[symbol]
		if index < len(candles) && !candles[index].Timestamp.After(currentTime) {
			e.CurrentIndex[symbol]++
		}
	}

	return true, nil
}

// settleBar applies the execution model for one symbol's current bar:
// pending-signal fills at open, then intra-bar stop-loss/take-profit checks,
// in strict priority order (spec.md §4.4).
func (e *Engine) settleBar(symbol string, candle *Candlestick) error {
	intent := e.pending[symbol]
	delete(e.pending, symbol)

	position, hasPosition := e.Positions[symbol]

	if hasPosition && intent != nil && intent.side == "SELL" {
		execPrice := candle.Open * (1 - e.SlippageRate)
		return e.closePosition(symbol, position, execPrice, candle.Timestamp, ExitReasonSignal, intent.signal)
	}

	if !hasPosition && intent != nil && intent.side == "BUY" {
		if len(e.Positions) >= e.MaxPositions {
			log.Debug().Int("max", e.MaxPositions).Msg("Max positions reached, skipping buy")
			return nil
		}
		execPrice := candle.Open * (1 + e.SlippageRate)
		return e.openPosition(symbol, execPrice, candle.Timestamp, intent.signal)
	}

	if hasPosition {
		stopPrice := position.StopPrice
		if candle.Low <= stopPrice {
			fillPrice := stopPrice
			if candle.Open < stopPrice {
				fillPrice = candle.Open
			}
			return e.closePosition(symbol, position, fillPrice, candle.Timestamp, ExitReasonStopLoss, nil)
		}

		if position.HasTakeProfit && candle.High >= position.TakeProfitPrice {
			fillPrice := position.TakeProfitPrice
			if candle.Open > position.TakeProfitPrice {
				fillPrice = candle.Open
			}
			return e.closePosition(symbol, position, fillPrice, candle.Timestamp, ExitReasonTakeProfit, nil)
		}
	}

	return nil
}

// ============================================================================
// SIGNAL INTAKE
// ============================================================================

// ExecuteSignal records a signal observed at the close of the current bar.
// Per the execution model, it does not fill immediately — it becomes the
// pending intent settled at the open of the following bar.
func (e *Engine) ExecuteSignal(signal *Signal) error {
	switch signal.Side {
	case "BUY", "SELL":
		e.pending[signal.Symbol] = &pendingIntent{side: signal.Side, signal: signal}
		return nil
	case "HOLD":
		return nil
	default:
		return fmt.Errorf("unknown signal side: %s", signal.Side)
	}
}

// openPosition fills a long entry at execPrice, charging fees on entry
// notional, and records the resulting Trade.
func (e *Engine) openPosition(symbol string, execPrice float64, timestamp time.Time, signal *Signal) error {
	allocated := e.allocatedCash()
	if allocated <= 0 {
		return nil
	}

	price := decimal.NewFromFloat(execPrice)
	fee := decimal.NewFromFloat(e.CommissionRate)
	cashDec := decimal.NewFromFloat(allocated)

	denom := price.Mul(decimal.NewFromInt(1).Add(fee))
	if denom.IsZero() {
		return fmt.Errorf("invalid execution price: %f", execPrice)
	}
	quantity := cashDec.Div(denom)
	if quantity.Sign() <= 0 {
		return fmt.Errorf("invalid quantity computed for entry")
	}

	value := price.Mul(quantity)
	commission := value.Mul(fee)
	totalCost := value.Add(commission)

	if decimal.NewFromFloat(e.Cash).LessThan(totalCost) {
		log.Debug().Msg("Insufficient cash, skipping buy")
		return nil
	}

	qty, _ := quantity.Float64()
	val, _ := value.Float64()
	comm, _ := commission.Float64()
	cost, _ := totalCost.Float64()

	trade := &Trade{
		ID:         len(e.Trades) + 1,
		Timestamp:  timestamp,
		Symbol:     symbol,
		Side:       "BUY",
		Quantity:   qty,
		Price:      execPrice,
		Commission: comm,
		Value:      val,
		Signal:     signal,
	}

	stopPrice := execPrice * (1 - e.StopLoss)
	position := &Position{
		Symbol:       symbol,
		Side:         "LONG",
		EntryTime:    timestamp,
		EntryPrice:   execPrice,
		Quantity:     qty,
		CurrentPrice: execPrice,
		Commission:   comm,
		StopPrice:    stopPrice,
	}
	if e.StopGain > 0 {
		position.HasTakeProfit = true
		position.TakeProfitPrice = execPrice * (1 + e.StopGain)
	}

	e.Cash -= cost
	e.Positions[symbol] = position
	e.Trades = append(e.Trades, trade)
	e.TotalTrades++

	log.Info().
		Str("symbol", symbol).
		Float64("price", execPrice).
		Float64("quantity", qty).
		Float64("commission", comm).
		Msg("Opened position")

	return nil
}

// closePosition fills an exit at execPrice, charging fees on exit notional,
// and records the completed ClosedPosition with its exit reason and realized
// P&L in both absolute and fractional terms.
func (e *Engine) closePosition(symbol string, position *Position, execPrice float64, timestamp time.Time, reason ExitReason, signal *Signal) error {
	price := decimal.NewFromFloat(execPrice)
	qty := decimal.NewFromFloat(position.Quantity)
	fee := decimal.NewFromFloat(e.CommissionRate)

	value := price.Mul(qty)
	commission := value.Mul(fee)
	proceeds := value.Sub(commission)

	entryValue := decimal.NewFromFloat(position.EntryPrice).Mul(qty)
	totalFees := decimal.NewFromFloat(position.Commission).Add(commission)
	realizedAbs := proceeds.Sub(entryValue).Sub(decimal.NewFromFloat(position.Commission))

	val, _ := value.Float64()
	comm, _ := commission.Float64()
	proc, _ := proceeds.Float64()
	fees, _ := totalFees.Float64()
	realized, _ := realizedAbs.Float64()

	entryValueF, _ := entryValue.Float64()
	var realizedFraction float64
	if entryValueF != 0 {
		// Denominator is entry notional (price*qty), not entry notional plus
		// the entry fee as spec.md §8's illustrative formula expands it;
		// this is the fraction of capital actually committed to the
		// position, excluding fees paid on top of it.
		realizedFraction = realized / entryValueF
	}

	trade := &Trade{
		ID:         len(e.Trades) + 1,
		Timestamp:  timestamp,
		Symbol:     symbol,
		Side:       "SELL",
		Quantity:   position.Quantity,
		Price:      execPrice,
		Commission: comm,
		Value:      val,
		Signal:     signal,
	}

	closed := &ClosedPosition{
		Symbol:              symbol,
		Side:                position.Side,
		EntryTime:           position.EntryTime,
		ExitTime:            timestamp,
		EntryPrice:          position.EntryPrice,
		ExitPrice:           execPrice,
		Quantity:            position.Quantity,
		Fees:                fees,
		ExitReason:          reason,
		RealizedPnLAbsolute: realized,
		RealizedPnLFraction: realizedFraction,
		HoldingTime:         timestamp.Sub(position.EntryTime),
		RealizedPL:          realized,
		ReturnPct:           realizedFraction * 100.0,
		Commission:          fees,
	}

	if realized > 0 {
		e.WinningTrades++
		e.TotalProfit += realized
	} else {
		e.LosingTrades++
		e.TotalLoss += realized
	}

	e.Cash += proc
	delete(e.Positions, symbol)
	e.Trades = append(e.Trades, trade)
	e.ClosedPositions = append(e.ClosedPositions, closed)

	log.Info().
		Str("symbol", symbol).
		Float64("price", execPrice).
		Str("reason", string(reason)).
		Float64("pnl", realized).
		Msg("Closed position")

	return nil
}

// ============================================================================
// POSITION SIZING
// ============================================================================

// allocatedCash returns the cash allocated to a new entry, per the
// configured sizing mode.
func (e *Engine) allocatedCash() float64 {
	switch e.PositionSizing {
	case "fixed":
		return e.PositionSize
	case "percent":
		return e.GetCurrentEquity() * e.PositionSize
	default: // "all_in" and any unrecognized mode
		return e.Cash
	}
}

// ============================================================================
// EQUITY CALCULATIONS
// ============================================================================

// GetCurrentEquity returns current portfolio equity (cash + mark-to-market holdings).
func (e *Engine) GetCurrentEquity() float64 {
	equity := e.Cash
	for _, position := range e.Positions {
		equity += position.CurrentPrice * position.Quantity
	}
	return equity
}

func (e *Engine) calculateUnrealizedPL(position *Position) float64 {
	currentValue := position.CurrentPrice * position.Quantity
	entryValue := position.EntryPrice * position.Quantity
	return currentValue - entryValue - position.Commission
}

func (e *Engine) recordEquityPoint(timestamp time.Time) {
	equity := e.GetCurrentEquity()
	holdings := equity - e.Cash

	point := &EquityPoint{
		Timestamp: timestamp,
		Equity:    equity,
		Cash:      e.Cash,
		Holdings:  holdings,
	}
	e.EquityCurve = append(e.EquityCurve, point)

	if equity > e.PeakEquity {
		e.PeakEquity = equity
	}

	drawdown := e.PeakEquity - equity
	var drawdownPct float64
	if e.PeakEquity != 0 {
		drawdownPct = (drawdown / e.PeakEquity) * 100.0
	}
	if drawdown > e.MaxDrawdown {
		e.MaxDrawdown = drawdown
		e.MaxDrawdownPct = drawdownPct
	}
}

// ============================================================================
// BACKTEST EXECUTION
// ============================================================================

// Run executes the complete backtest. Strategy.GenerateSignals is called
// with the current bar already marked-to-market; any signal it returns
// becomes a pending intent settled at the open of the next bar.
func (e *Engine) Run(ctx context.Context, strategy Strategy) error {
	log.Info().
		Float64("initial_capital", e.InitialCapital).
		Float64("commission_rate", e.CommissionRate*100).
		Float64("slippage_rate", e.SlippageRate*100).
		Float64("stop_loss", e.StopLoss).
		Msg("Starting backtest")

	if err := strategy.Initialize(e); err != nil {
		return fmt.Errorf("failed to initialize strategy: %w", err)
	}

	stepCount := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		hasMore, err := e.Step(ctx)
		if err != nil {
			return fmt.Errorf("step error: %w", err)
		}
		if !hasMore {
			break
		}
		stepCount++

		signals, err := strategy.GenerateSignals(e)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to generate signals")
			continue
		}

		for _, signal := range signals {
			if err := e.ExecuteSignal(signal); err != nil {
				log.Warn().
					Err(err).
					Str("symbol", signal.Symbol).
					Str("side", signal.Side).
					Msg("Failed to record signal")
			}
		}

		if stepCount%1000 == 0 {
			log.Debug().
				Int("step", stepCount).
				Float64("equity", e.GetCurrentEquity()).
				Int("positions", len(e.Positions)).
				Int("trades", e.TotalTrades).
				Msg("Backtest progress")
		}
	}

	if e.ForceCloseFinalBar {
		e.forceCloseAllPositions()
	}

	if err := strategy.Finalize(e); err != nil {
		log.Warn().Err(err).Msg("Failed to finalize strategy")
	}

	log.Info().
		Int("steps", stepCount).
		Int("trades", e.TotalTrades).
		Float64("final_equity", e.GetCurrentEquity()).
		Msg("Backtest complete")

	return nil
}

// forceCloseAllPositions closes all open positions at the last available
// price. Only invoked when ForceCloseFinalBar is explicitly set — by
// default, an open position at the end of the run is left open and simply
// marked to market (spec.md §4.4).
func (e *Engine) forceCloseAllPositions() {
	for symbol, position := range e.Positions {
		candle := e.lastCandle(symbol)
		if candle == nil {
			log.Warn().Str("symbol", symbol).Msg("No candle available to force-close position")
			continue
		}
		if err := e.closePosition(symbol, position, candle.Close, candle.Timestamp, ExitReasonForceClose, nil); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to force-close position")
		}
	}
}

func (e *Engine) lastCandle(symbol string) *Candlestick {
	candles := e.Data[symbol]
	if len(candles) == 0 {
		return nil
	}
	return candles[len(candles)-1]
}

// ============================================================================
// STRATEGY INTERFACE
// ============================================================================

// Strategy is the interface that trading strategies must implement.
type Strategy interface {
	Initialize(engine *Engine) error
	GenerateSignals(engine *Engine) ([]*Signal, error)
	Finalize(engine *Engine) error
}
