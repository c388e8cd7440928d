package optimizer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/backtestcore/internal/candlestore"
	"github.com/ajitpratap0/backtestcore/internal/refiner"
	"github.com/ajitpratap0/backtestcore/internal/strategy"
	"github.com/ajitpratap0/backtestcore/pkg/backtest"
)

// FineTimeframe is the deep-backtest refiner's default secondary candle
// resolution (spec.md §4.5).
const FineTimeframe = "15m"

// Orchestrator wires the stage planner, worker pool, checkpoint store, and
// results store into the control surface spec.md §6 requires:
// run_optimization/pause/resume/list_incomplete/cancel. It runs on one
// control goroutine per job; worker parallelism is bounded within Pool.
type Orchestrator struct {
	store    *candlestore.Store
	exchange string

	checkpoints *CheckpointStore
	results     *ResultsStore

	batchSize        int
	workers          int
	checkpointEveryN int
	topK             int
	warnCap          int

	mu      sync.Mutex
	paused  map[string]bool
	ctrl    map[string]context.CancelFunc
}

// Config bundles the Orchestrator's resource knobs, mirroring
// internal/config.OptimizerConfig so cmd/optimize can wire it directly
// without this package importing the config package.
type Config struct {
	BatchSize        int
	WorkerCount      int
	CheckpointEveryN int
	TopK             int
	GridSizeWarnCap  int
}

// NewOrchestrator builds an Orchestrator. store fetches candle data;
// checkpoints and results own the job's durable state.
func NewOrchestrator(store *candlestore.Store, exchange string, checkpoints *CheckpointStore, results *ResultsStore, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:            store,
		exchange:         exchange,
		checkpoints:      checkpoints,
		results:          results,
		batchSize:        cfg.BatchSize,
		workers:          cfg.WorkerCount,
		checkpointEveryN: cfg.CheckpointEveryN,
		topK:             cfg.TopK,
		warnCap:          cfg.GridSizeWarnCap,
		paused:           make(map[string]bool),
		ctrl:             make(map[string]context.CancelFunc),
	}
}

// RunOptimization executes a fresh optimization job end to end (spec.md §4.7).
func (o *Orchestrator) RunOptimization(ctx context.Context, req OptimizationRequest) (*OptimizationResponse, error) {
	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	req.JobID = jobID

	return o.run(ctx, req, nil)
}

// Resume continues a paused or interrupted job from its last checkpoint.
func (o *Orchestrator) Resume(ctx context.Context, jobID string) (*OptimizationResponse, error) {
	cp, err := o.checkpoints.Load(jobID)
	if err != nil {
		return nil, err
	}

	return nil, fmt.Errorf("optimizer: resume requires the original OptimizationRequest; call ResumeWithRequest instead (checkpoint status=%s, stage=%d)", cp.Status, cp.StageIndex)
}

// ResumeWithRequest continues job jobID using the checkpoint found for it
// plus the original request (the template and date range are not part of
// the checkpoint and must be supplied again, since the checkpoint only
// carries search progress per spec.md §3).
func (o *Orchestrator) ResumeWithRequest(ctx context.Context, req OptimizationRequest) (*OptimizationResponse, error) {
	cp, err := o.checkpoints.Load(req.JobID)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	delete(o.paused, req.JobID)
	o.mu.Unlock()

	return o.run(ctx, req, cp)
}

// Pause requests that the named job stop after its current batch finishes.
// It is observed between batches, never mid-batch (spec.md §4.7
// "Pause/resume").
func (o *Orchestrator) Pause(jobID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused[jobID] = true
	return nil
}

// Cancel aborts a running job's context; in-flight batches finish, no new
// ones are dispatched.
func (o *Orchestrator) Cancel(jobID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	cancel, ok := o.ctrl[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	cancel()
	return nil
}

// ListIncomplete lists every checkpointed job that is paused or still
// in_progress.
func (o *Orchestrator) ListIncomplete(ctx context.Context) ([]Checkpoint, error) {
	return o.checkpoints.ListIncomplete()
}

func (o *Orchestrator) isPaused(jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused[jobID]
}

func (o *Orchestrator) register(jobID string, cancel context.CancelFunc) {
	o.mu.Lock()
	o.ctrl[jobID] = cancel
	o.mu.Unlock()
}

func (o *Orchestrator) unregister(jobID string) {
	o.mu.Lock()
	delete(o.ctrl, jobID)
	delete(o.paused, jobID)
	o.mu.Unlock()
}

// run is the shared engine behind RunOptimization and ResumeWithRequest.
// resume is nil for a fresh run.
func (o *Orchestrator) run(ctx context.Context, req OptimizationRequest, resume *Checkpoint) (*OptimizationResponse, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.register(req.JobID, cancel)
	defer o.unregister(req.JobID)

	weights := req.Weights
	if weights == (ScoreWeights{}) {
		weights = DefaultScoreWeights()
	}

	dailyCandles, err := o.fetchCandles(ctx, req.Symbol, req.Timeframe, req.StartDate, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("optimizer: fetch candles: %w", err)
	}

	var evaluate = CoarseEvaluator(req.Symbol)
	var fineCandles []*backtest.Candlestick
	if req.DeepBacktest {
		fc, err := o.fetchCandles(ctx, req.Symbol, FineTimeframe, req.StartDate, req.EndDate)
		if err != nil {
			log.Warn().Err(err).Str("job_id", req.JobID).Msg("optimizer: failed to fetch fine candles, deep-backtest mode will fall back to coarse")
		} else {
			fineCandles = fc
		}
		evaluate = DeepEvaluator(req.Symbol, fineCandles)
	}

	schema := effectiveSchema(req.Template, req.CustomRanges)
	stages, err := planStages(schema, o.warnCap)
	if err != nil {
		return nil, fmt.Errorf("optimizer: plan stages: %w", err)
	}

	engineConfig := engineConfigFromTemplate(req.Template)
	wctx := &WorkerContext{
		Template:     req.Template,
		EngineConfig: engineConfig,
		Candles:      dailyCandles,
		Symbol:       req.Symbol,
		Weights:      weights,
		Evaluate:     evaluate,
	}
	pool := NewPool(o.workers, wctx)

	bestParams := map[string]float64{}
	var bestMetrics map[string]float64
	startStageIndex := 0
	if resume != nil {
		for k, v := range resume.BestSoFar {
			bestParams[k] = v
		}
		bestMetrics = resume.BestMetrics
		startStageIndex = resume.StageIndex
	}

	resultIndex := 0
	var allResults []Result
	maxRounds := maxRoundsFor(stages, true)

	paused := false
roundLoop:
	for round := 0; round < maxRounds; round++ {
		roundStartParams := cloneParams(bestParams)

		for stageIdx := startStageIndex; stageIdx < len(stages); stageIdx++ {
			stage := stages[stageIdx]
			combos := stageCombinations(stage)
			batches := chunkCombinations(combos, o.batchSize)

			var stageResults []Result
			for batchIdx, batch := range batches {
				if o.isPaused(req.JobID) {
					paused = true
					o.saveCheckpoint(req, JobPaused, stageIdx, len(stageResults), len(combos), bestParams, bestMetrics)
					break roundLoop
				}
				select {
				case <-ctx.Done():
					o.saveCheckpoint(req, JobPaused, stageIdx, len(stageResults), len(combos), bestParams, bestMetrics)
					return nil, ctx.Err()
				default:
				}

				results := pool.RunBatch(ctx, batch, bestParams, resultIndex)
				resultIndex += len(results)
				stageResults = append(stageResults, results...)
				allResults = append(allResults, results...)

				if err := o.results.SaveBatch(ctx, req.JobID, results); err != nil {
					log.Warn().Err(err).Str("job_id", req.JobID).Msg("optimizer: failed to flush results batch")
				}

				if o.checkpointEveryN <= 0 || (batchIdx+1)%o.checkpointEveryN == 0 {
					o.saveCheckpoint(req, JobInProgress, stageIdx, len(stageResults), len(combos), bestParams, bestMetrics)
				}
			}

			if best, ok := rankResults(stageResults, weights); ok {
				for k, v := range best.Parameters {
					bestParams[k] = v
				}
				bestMetrics = best.Metrics
			}
		}
		startStageIndex = 0

		if paramsEqual(bestParams, roundStartParams) {
			break
		}
		for _, stage := range stages {
			refineStage(stage, bestParams)
		}
	}

	if paused {
		return o.responseFor(ctx, req, stages, bestParams, bestMetrics, allResults, JobPaused, nil, nil), nil
	}

	finalMetrics, err := o.materializeFinal(ctx, req, evaluate, bestParams)
	if err != nil {
		log.Warn().Err(err).Str("job_id", req.JobID).Msg("optimizer: final materialization failed, returning best-seen metrics")
	} else {
		bestMetrics = finalMetrics
	}

	o.saveCheckpoint(req, JobCompleted, len(stages), 0, 0, bestParams, bestMetrics)

	// Final materialization's second half (spec.md §4.7): heavier metrics
	// (ATR/ADX averages, regime breakdown, alpha) for the top-K results only,
	// not every result, to bound total cost.
	return o.responseFor(ctx, req, stages, bestParams, bestMetrics, allResults, JobCompleted, dailyCandles, fineCandles), nil
}

func (o *Orchestrator) fetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]*backtest.Candlestick, error) {
	candles, err := o.store.Fetch(ctx, o.exchange, symbol, timeframe, start.UnixMilli(), end.UnixMilli(), candlestore.Options{})
	if err != nil {
		return nil, err
	}

	sticks := make([]*backtest.Candlestick, len(candles))
	for i, c := range candles {
		sticks[i] = &backtest.Candlestick{
			Symbol:    symbol,
			Timestamp: time.UnixMilli(c.TimestampMS).UTC(),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
	}
	return sticks, nil
}

// materializeFinal re-runs the winning parameter set over the full candle
// range with the job's evaluator (coarse or deep) and returns its metrics
// map; no trades, equity curve or indicator series are returned.
func (o *Orchestrator) materializeFinal(ctx context.Context, req OptimizationRequest, evaluate func(context.Context, *strategy.Template, []*backtest.Candlestick, backtest.BacktestConfig) (map[string]float64, error), bestParams map[string]float64) (map[string]float64, error) {
	tmpl, err := strategy.ApplyParameters(req.Template, bestParams)
	if err != nil {
		return nil, err
	}

	dailyCandles, err := o.fetchCandles(ctx, req.Symbol, req.Timeframe, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	return evaluate(ctx, tmpl, dailyCandles, engineConfigFromTemplate(tmpl))
}

// enrichTopK computes the heavier metrics spec.md §4.7 reserves for the
// top-K results rather than every result: ATR/ADX averages, regime
// breakdown, and a buy-and-hold benchmark/alpha comparison. Each result is
// re-simulated with its own parameter set (coarse, or deep when the job
// requested it and a fine candle series is available) purely to recover the
// Engine's ClosedPositions/EquityCurve; a failure to enrich any one result
// is logged and skipped rather than failing the whole response.
func (o *Orchestrator) enrichTopK(ctx context.Context, req OptimizationRequest, dailyCandles, fineCandles []*backtest.Candlestick, top []Result) {
	for i := range top {
		if top[i].Error != "" || top[i].Metrics == nil {
			continue
		}

		tmpl, err := strategy.ApplyParameters(req.Template, top[i].Parameters)
		if err != nil {
			log.Warn().Err(err).Str("job_id", req.JobID).Msg("optimizer: enrichTopK: apply parameters failed")
			continue
		}
		engineConfig := engineConfigFromTemplate(tmpl)

		var engine *backtest.Engine
		if req.DeepBacktest && len(fineCandles) > 0 {
			engine, err = refiner.Evaluate(ctx, req.Symbol, tmpl, dailyCandles, fineCandles, engineConfig)
		} else {
			engine, err = runCoarseEngine(ctx, req.Symbol, tmpl, dailyCandles, engineConfig)
		}
		if err != nil {
			log.Warn().Err(err).Str("job_id", req.JobID).Msg("optimizer: enrichTopK: re-simulation failed")
			continue
		}

		if withBenchmark, err := backtest.CalculateMetricsWithBenchmark(engine, dailyCandles); err == nil {
			top[i].Metrics["benchmark_cagr"] = withBenchmark.BenchmarkCAGR
			top[i].Metrics["alpha"] = withBenchmark.Alpha
		}

		if breakdown, err := backtest.CalculateRegimeBreakdown(dailyCandles, engine.ClosedPositions); err == nil {
			for regime, stats := range breakdown {
				top[i].Metrics["regime_"+regime+"_count"] = float64(stats.Count)
				top[i].Metrics["regime_"+regime+"_win_rate"] = stats.WinRate
				top[i].Metrics["regime_"+regime+"_total_pl"] = stats.TotalPL
			}
		}

		if avgATR, avgADX, err := backtest.AverageATRADX(dailyCandles, regimeAverageATRPeriod, regimeAverageADXPeriod); err == nil {
			top[i].Metrics["avg_atr"] = avgATR
			top[i].Metrics["avg_adx"] = avgADX
		}
	}
}

const (
	regimeAverageATRPeriod = 14
	regimeAverageADXPeriod = 14
)

func (o *Orchestrator) saveCheckpoint(req OptimizationRequest, status JobStatus, stageIndex, completed, total int, bestParams, bestMetrics map[string]float64) {
	cp := &Checkpoint{
		JobID:                 req.JobID,
		Symbol:                req.Symbol,
		Strategy:              req.TemplateName,
		StageIndex:            stageIndex,
		TestsCompletedInStage: completed,
		TotalTestsInStage:     total,
		LockedParams:          cloneParams(bestParams),
		BestSoFar:             cloneParams(bestParams),
		BestMetrics:           bestMetrics,
		Status:                status,
	}
	if err := o.checkpoints.Save(cp); err != nil {
		log.Warn().Err(err).Str("job_id", req.JobID).Msg("optimizer: checkpoint save failed")
	}
}

// responseFor assembles the OptimizationResponse. When dailyCandles is
// non-nil (i.e. the run completed rather than paused), it also enriches the
// top-K results with the heavier metrics spec.md §4.7's final-materialization
// step calls for: ATR/ADX averages, regime breakdown, and benchmark/alpha.
func (o *Orchestrator) responseFor(ctx context.Context, req OptimizationRequest, stages []*Stage, bestParams, bestMetrics map[string]float64, allResults []Result, status JobStatus, dailyCandles, fineCandles []*backtest.Candlestick) *OptimizationResponse {
	sort.Slice(allResults, func(i, j int) bool { return allResults[i].Score > allResults[j].Score })
	top := allResults
	if len(top) > o.topK && o.topK > 0 {
		top = top[:o.topK]
	}

	if len(dailyCandles) > 0 {
		o.enrichTopK(ctx, req, dailyCandles, fineCandles, top)
	}

	return &OptimizationResponse{
		JobID:          req.JobID,
		TemplateName:   req.TemplateName,
		Symbol:         req.Symbol,
		Timeframe:      req.Timeframe,
		Stages:         stages,
		TotalStages:    len(stages),
		BestParameters: bestParams,
		BestMetrics:    bestMetrics,
		TopResults:     top,
		Status:         status,
		CompletedAt:    time.Now(),
	}
}

func engineConfigFromTemplate(tmpl *strategy.Template) backtest.BacktestConfig {
	cfg := backtest.BacktestConfig{
		InitialCapital: 10000,
		CommissionRate: 0.001,
		PositionSizing: "percent",
		PositionSize:   0.1,
		MaxPositions:   1,
		StopLoss:       tmpl.StopLoss,
	}
	if tmpl.StopGain != nil {
		cfg.StopGain = *tmpl.StopGain
	}
	return cfg
}

func cloneParams(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func paramsEqual(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
