// Parameter optimization support shared by the backtester and the
// hybrid optimizer (internal/optimizer). The flat grid-search and genetic
// search implementations this file used to carry are superseded by
// internal/optimizer's correlated-group/singleton stage planner with
// adaptive coarse-to-fine refinement (see DESIGN.md) — this file now keeps
// only the parameter/result vocabulary shared across the module plus
// WalkForwardOptimizer, an optional secondary robustness-check tool.
package backtest

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNoWalkForwardResults is returned when every walk-forward window failed
// to produce an out-of-sample result (e.g. the data range is shorter than
// one in-sample+out-sample window).
var ErrNoWalkForwardResults = errors.New("walk-forward optimization produced no out-of-sample results")

// ============================================================================
// PARAMETER DEFINITION
// ============================================================================

// Parameter represents a tunable parameter for strategy optimization
type Parameter struct {
	Name   string    `json:"name"`
	Type   ParamType `json:"type"`   // int, float, bool, string
	Min    float64   `json:"min"`    // For numeric types
	Max    float64   `json:"max"`    // For numeric types
	Step   float64   `json:"step"`   // Step size for grid search
	Values []string  `json:"values"` // For string/categorical types
}

// ParamType defines the type of parameter
type ParamType string

const (
	ParamTypeInt    ParamType = "int"
	ParamTypeFloat  ParamType = "float"
	ParamTypeBool   ParamType = "bool"
	ParamTypeString ParamType = "string"
)

// ParameterSet represents a set of parameter values
type ParameterSet map[string]interface{}

// Clone creates a deep copy of the parameter set
func (ps ParameterSet) Clone() ParameterSet {
	clone := make(ParameterSet)
	for k, v := range ps {
		clone[k] = v
	}
	return clone
}

// ============================================================================
// OPTIMIZATION RESULT
// ============================================================================

// OptimizationResult represents the result of a parameter optimization
type OptimizationResult struct {
	Parameters    ParameterSet `json:"parameters"`
	Metrics       *Metrics     `json:"metrics"`
	Score         float64      `json:"score"`         // Fitness score
	Rank          int          `json:"rank"`          // Rank among all results
	IsOutOfSample bool         `json:"is_out_sample"` // Walk-forward out-of-sample flag
}

// OptimizationSummary summarizes an optimization run
type OptimizationSummary struct {
	Method          string                `json:"method"` // walk_forward, hybrid (internal/optimizer)
	TotalRuns       int                   `json:"total_runs"`
	Duration        time.Duration         `json:"duration"`
	BestResult      *OptimizationResult   `json:"best_result"`
	TopResults      []*OptimizationResult `json:"top_results"` // Top 10 results
	ParameterRanges []*Parameter          `json:"parameter_ranges"`
	ObjectiveMetric string                `json:"objective_metric"` // What we're optimizing
	StartDate       time.Time             `json:"start_date"`
	EndDate         time.Time             `json:"end_date"`
}

// ============================================================================
// OBJECTIVE FUNCTIONS
// ============================================================================

// ObjectiveFunction calculates a fitness score from backtest metrics
type ObjectiveFunction func(*Metrics) float64

// Predefined objective functions
var (
	// MaximizeSharpeRatio optimizes for risk-adjusted returns
	MaximizeSharpeRatio ObjectiveFunction = func(m *Metrics) float64 {
		return m.SharpeRatio
	}

	// MaximizeSortinoRatio optimizes for downside risk-adjusted returns
	MaximizeSortinoRatio ObjectiveFunction = func(m *Metrics) float64 {
		return m.SortinoRatio
	}

	// MaximizeCalmarRatio optimizes for return/max drawdown
	MaximizeCalmarRatio ObjectiveFunction = func(m *Metrics) float64 {
		return m.CalmarRatio
	}

	// MaximizeTotalReturn optimizes for absolute returns
	MaximizeTotalReturn ObjectiveFunction = func(m *Metrics) float64 {
		return m.TotalReturnPct
	}

	// MaximizeProfitFactor optimizes for profit/loss ratio
	MaximizeProfitFactor ObjectiveFunction = func(m *Metrics) float64 {
		return m.ProfitFactor
	}

	// MinimizeDrawdown optimizes for low drawdown
	MinimizeDrawdown ObjectiveFunction = func(m *Metrics) float64 {
		return -m.MaxDrawdownPct // Negative because we minimize
	}

	// BalancedObjective combines multiple metrics
	BalancedObjective ObjectiveFunction = func(m *Metrics) float64 {
		// Weighted combination: 40% Sharpe, 30% Win Rate, 30% Calmar
		sharpe := math.Max(0, m.SharpeRatio)
		winRate := m.WinRate / 100.0
		calmar := math.Max(0, m.CalmarRatio)
		return 0.4*sharpe + 0.3*winRate + 0.3*calmar
	}
)

// ============================================================================
// STRATEGY FACTORY
// ============================================================================

// StrategyFactory creates a strategy with given parameters
type StrategyFactory func(params ParameterSet) (Strategy, error)

// ============================================================================
// PARAMETER-GRID HELPERS (shared by WalkForwardOptimizer's in-sample pass)
// ============================================================================

// generateParamCombinations returns the exhaustive Cartesian product of a
// parameter list's value ranges. Kept as a package-level helper (rather than
// a method on a dedicated grid-search optimizer type) because the only
// remaining caller is WalkForwardOptimizer's per-window in-sample search;
// internal/optimizer implements its own correlated-group/singleton stage
// planner with adaptive refinement instead of flat exhaustive search.
func generateParamCombinations(params []*Parameter) []ParameterSet {
	if len(params) == 0 {
		return []ParameterSet{{}}
	}
	return generateParamCombinationsRecursive(params, 0, ParameterSet{})
}

func generateParamCombinationsRecursive(params []*Parameter, idx int, current ParameterSet) []ParameterSet {
	if idx >= len(params) {
		return []ParameterSet{current.Clone()}
	}

	param := params[idx]
	var combinations []ParameterSet

	switch param.Type {
	case ParamTypeInt:
		for v := param.Min; v <= param.Max; v += param.Step {
			newSet := current.Clone()
			newSet[param.Name] = int(v)
			combinations = append(combinations, generateParamCombinationsRecursive(params, idx+1, newSet)...)
		}

	case ParamTypeFloat:
		for v := param.Min; v <= param.Max; v += param.Step {
			newSet := current.Clone()
			newSet[param.Name] = v
			combinations = append(combinations, generateParamCombinationsRecursive(params, idx+1, newSet)...)
		}

	case ParamTypeBool:
		for _, v := range []bool{false, true} {
			newSet := current.Clone()
			newSet[param.Name] = v
			combinations = append(combinations, generateParamCombinationsRecursive(params, idx+1, newSet)...)
		}

	case ParamTypeString:
		for _, v := range param.Values {
			newSet := current.Clone()
			newSet[param.Name] = v
			combinations = append(combinations, generateParamCombinationsRecursive(params, idx+1, newSet)...)
		}
	}

	return combinations
}

// ============================================================================
// WALK-FORWARD OPTIMIZER
// ============================================================================

// WalkForwardOptimizer performs walk-forward analysis: for each rolling
// window it grid-searches the in-sample slice for the best parameters, then
// scores those parameters out-of-sample. Per SPEC_FULL.md §12 this is an
// optional secondary robustness check, not the optimizer's driving search
// mode — that is internal/optimizer's single in-sample hybrid search.
type WalkForwardOptimizer struct {
	factory         StrategyFactory
	params          []*Parameter
	objective       ObjectiveFunction
	config          BacktestConfig
	inSamplePeriod  time.Duration // e.g., 180 days
	outSamplePeriod time.Duration // e.g., 30 days
	parallel        int
}

// NewWalkForwardOptimizer creates a new walk-forward optimizer
func NewWalkForwardOptimizer(factory StrategyFactory, params []*Parameter, objective ObjectiveFunction, config BacktestConfig) *WalkForwardOptimizer {
	return &WalkForwardOptimizer{
		factory:         factory,
		params:          params,
		objective:       objective,
		config:          config,
		inSamplePeriod:  180 * 24 * time.Hour, // 6 months in-sample
		outSamplePeriod: 30 * 24 * time.Hour,  // 1 month out-of-sample
		parallel:        4,
	}
}

// SetPeriods sets the in-sample and out-of-sample periods
func (opt *WalkForwardOptimizer) SetPeriods(inSample, outSample time.Duration) {
	opt.inSamplePeriod = inSample
	opt.outSamplePeriod = outSample
}

// SetParallelism sets the number of parallel workers used for the in-sample grid search.
func (opt *WalkForwardOptimizer) SetParallelism(n int) {
	opt.parallel = n
}

// Optimize performs walk-forward optimization
func (opt *WalkForwardOptimizer) Optimize(ctx context.Context, data map[string][]*Candlestick) (*OptimizationSummary, error) {
	startTime := time.Now()

	log.Info().
		Dur("in_sample", opt.inSamplePeriod).
		Dur("out_sample", opt.outSamplePeriod).
		Msg("Starting walk-forward optimization")

	// Get time range from data
	startDate, endDate := opt.getDataTimeRange(data)
	log.Info().
		Time("start", startDate).
		Time("end", endDate).
		Msg("Data time range")

	// Generate walk-forward windows
	windows := opt.generateWindows(startDate, endDate)
	log.Info().
		Int("windows", len(windows)).
		Msg("Generated walk-forward windows")

	var allResults []*OptimizationResult

	// For each window: optimize on in-sample, test on out-of-sample
	for i, window := range windows {
		log.Info().
			Int("window", i+1).
			Int("total", len(windows)).
			Time("train_start", window.InSampleStart).
			Time("train_end", window.InSampleEnd).
			Time("test_start", window.OutSampleStart).
			Time("test_end", window.OutSampleEnd).
			Msg("Processing walk-forward window")

		// Split data into in-sample and out-of-sample
		inSampleData := opt.filterDataByTime(data, window.InSampleStart, window.InSampleEnd)
		outSampleData := opt.filterDataByTime(data, window.OutSampleStart, window.OutSampleEnd)

		// Exhaustively grid-search the in-sample slice.
		inSampleResults := opt.runGrid(ctx, inSampleData)
		if len(inSampleResults) == 0 {
			log.Warn().Int("window", i+1).Msg("In-sample optimization produced no results")
			continue
		}
		sort.Slice(inSampleResults, func(a, b int) bool {
			return inSampleResults[a].Score > inSampleResults[b].Score
		})
		bestParams := inSampleResults[0].Parameters

		// Test on out-of-sample data
		outResult := opt.runBacktest(ctx, bestParams, outSampleData)
		if outResult != nil {
			outResult.IsOutOfSample = true
			allResults = append(allResults, outResult)

			log.Info().
				Int("window", i+1).
				Float64("in_sample_score", inSampleResults[0].Score).
				Float64("out_sample_score", outResult.Score).
				Msg("Walk-forward window complete")
		}
	}

	if len(allResults) == 0 {
		return nil, ErrNoWalkForwardResults
	}

	// Sort by out-of-sample score
	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].Score > allResults[j].Score
	})

	for i, result := range allResults {
		result.Rank = i + 1
	}

	summary := &OptimizationSummary{
		Method:          "walk_forward",
		TotalRuns:       len(allResults),
		Duration:        time.Since(startTime),
		ParameterRanges: opt.params,
		BestResult:      allResults[0],
		StartDate:       startDate,
		EndDate:         endDate,
	}

	topN := 10
	if len(allResults) < topN {
		topN = len(allResults)
	}
	summary.TopResults = allResults[:topN]

	log.Info().
		Int("windows", len(windows)).
		Float64("best_score", summary.BestResult.Score).
		Dur("duration", summary.Duration).
		Msg("Walk-forward optimization complete")

	return summary, nil
}

// WalkForwardWindow represents a training/testing window
type WalkForwardWindow struct {
	InSampleStart  time.Time
	InSampleEnd    time.Time
	OutSampleStart time.Time
	OutSampleEnd   time.Time
}

// generateWindows creates overlapping walk-forward windows
func (opt *WalkForwardOptimizer) generateWindows(start, end time.Time) []WalkForwardWindow {
	var windows []WalkForwardWindow

	currentStart := start
	for {
		inSampleEnd := currentStart.Add(opt.inSamplePeriod)
		outSampleStart := inSampleEnd
		outSampleEnd := outSampleStart.Add(opt.outSamplePeriod)

		if outSampleEnd.After(end) {
			break
		}

		windows = append(windows, WalkForwardWindow{
			InSampleStart:  currentStart,
			InSampleEnd:    inSampleEnd,
			OutSampleStart: outSampleStart,
			OutSampleEnd:   outSampleEnd,
		})

		// Move window forward by out-of-sample period (rolling walk-forward:
		// the in-sample start advances too)
		currentStart = currentStart.Add(opt.outSamplePeriod)
	}

	return windows
}

// getDataTimeRange extracts start and end times from data
func (opt *WalkForwardOptimizer) getDataTimeRange(data map[string][]*Candlestick) (time.Time, time.Time) {
	var start, end time.Time

	for _, candles := range data {
		if len(candles) == 0 {
			continue
		}

		if start.IsZero() || candles[0].Timestamp.Before(start) {
			start = candles[0].Timestamp
		}

		if end.IsZero() || candles[len(candles)-1].Timestamp.After(end) {
			end = candles[len(candles)-1].Timestamp
		}
	}

	return start, end
}

// filterDataByTime filters candlesticks by time range
func (opt *WalkForwardOptimizer) filterDataByTime(data map[string][]*Candlestick, start, end time.Time) map[string][]*Candlestick {
	filtered := make(map[string][]*Candlestick)

	for symbol, candles := range data {
		var filteredCandles []*Candlestick
		for _, candle := range candles {
			if !candle.Timestamp.Before(start) && !candle.Timestamp.After(end) {
				filteredCandles = append(filteredCandles, candle)
			}
		}
		if len(filteredCandles) > 0 {
			filtered[symbol] = filteredCandles
		}
	}

	return filtered
}

// runGrid exhaustively backtests every parameter combination in parallel,
// bounded by opt.parallel, matching the semaphore+WaitGroup dispatch idiom
// the teacher used throughout its optimization pool code.
func (opt *WalkForwardOptimizer) runGrid(ctx context.Context, data map[string][]*Candlestick) []*OptimizationResult {
	combinations := generateParamCombinations(opt.params)

	parallel := opt.parallel
	if parallel <= 0 {
		parallel = 1
	}

	resultsChan := make(chan *OptimizationResult, len(combinations))
	semaphore := make(chan struct{}, parallel)
	var wg sync.WaitGroup

	for _, paramSet := range combinations {
		wg.Add(1)
		go func(ps ParameterSet) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if result := opt.runBacktest(ctx, ps, data); result != nil {
				resultsChan <- result
			}
		}(paramSet)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]*OptimizationResult, 0, len(combinations))
	for result := range resultsChan {
		results = append(results, result)
	}
	return results
}

// runBacktest runs a single backtest
func (opt *WalkForwardOptimizer) runBacktest(ctx context.Context, params ParameterSet, data map[string][]*Candlestick) *OptimizationResult {
	strategy, err := opt.factory(params)
	if err != nil {
		return nil
	}

	engine := NewEngine(opt.config)
	for symbol, candles := range data {
		_ = engine.LoadHistoricalData(symbol, candles) // Optimization run - error logged elsewhere
	}

	if err := engine.Run(ctx, strategy); err != nil {
		return nil
	}

	metrics, err := CalculateMetrics(engine)
	if err != nil {
		return nil
	}

	return &OptimizationResult{
		Parameters: params,
		Metrics:    metrics,
		Score:      opt.objective(metrics),
	}
}
