package optimizer

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/backtestcore/internal/strategy"
	"github.com/ajitpratap0/backtestcore/pkg/backtest"
)

// DefaultBatchSize matches spec.md §4.7 step 3's reference batch size.
const DefaultBatchSize = 200

// WorkerContext is constructed once per RunOptimization call and shared
// read-only across every worker: the candle frames are passed by reference
// at pool construction so batches never re-read cache files mid-run
// (spec.md §5 "initialized once with the set of candle frames ... passed by
// copy at pool construction").
type WorkerContext struct {
	Template     *strategy.Template
	EngineConfig backtest.BacktestConfig
	Candles      []*backtest.Candlestick
	Symbol       string
	Weights      ScoreWeights

	// Evaluate runs one parameter combination to completion and returns its
	// metrics. It is swapped out by tests and by deep-backtest mode, which
	// routes through internal/refiner instead of the coarse engine.
	Evaluate func(ctx context.Context, tmpl *strategy.Template, candles []*backtest.Candlestick, engineConfig backtest.BacktestConfig) (map[string]float64, error)
}

// Pool bounds concurrent combination evaluation within a single batch to
// roughly CPU count minus one, leaving a core free for the orchestrator and
// results-store I/O.
type Pool struct {
	workers int
	wctx    *WorkerContext
}

// NewPool builds a worker pool. workers <= 0 defaults to runtime.NumCPU()-1
// (minimum 1).
func NewPool(workers int, wctx *WorkerContext) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU() - 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers, wctx: wctx}
}

// RunBatch evaluates every combination in a batch, merged with lockedParams
// from prior stages, bounding concurrency to the pool's worker count. A
// panic in any single combination is recovered and reported as
// ErrWorkerCrash for the whole batch, matching spec.md §7 category 5 — the
// remaining combinations in other batches are unaffected.
func (p *Pool) RunBatch(ctx context.Context, batch []map[string]float64, lockedParams map[string]float64, startIndex int) []Result {
	results := make([]Result, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, params := range batch {
		i, params := i, params
		g.Go(func() error {
			results[i] = p.evaluateOne(gctx, startIndex+i, mergeParams(lockedParams, params))
			return nil
		})
	}

	// Errors are carried per-result, not via the group: g.Wait only
	// surfaces the (never-returned) worker-function error or ctx
	// cancellation, so a canceled run simply stops filling in results.
	_ = g.Wait()

	// A panic in any one combination fails the whole batch.
	for i := range results {
		if crash := results[i].Error; strings.Contains(crash, ErrWorkerCrash.Error()) {
			for j := range results {
				results[j] = Result{ResultIndex: startIndex + j, Parameters: mergeParams(lockedParams, batch[j]), Error: crash}
			}
			break
		}
	}

	return results
}

func (p *Pool) evaluateOne(ctx context.Context, index int, params map[string]float64) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				ResultIndex: index,
				Parameters:  params,
				Error:       fmt.Errorf("%w: %v", ErrWorkerCrash, r).Error(),
			}
		}
	}()

	tmpl, err := strategy.ApplyParameters(p.wctx.Template, params)
	if err != nil {
		return Result{ResultIndex: index, Parameters: params, Error: err.Error()}
	}

	metrics, err := p.wctx.Evaluate(ctx, tmpl, p.wctx.Candles, p.wctx.EngineConfig)
	if err != nil {
		return Result{ResultIndex: index, Parameters: params, Error: err.Error()}
	}

	return Result{ResultIndex: index, Parameters: params, Metrics: metrics}
}

func mergeParams(locked, fresh map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(locked)+len(fresh))
	for k, v := range locked {
		out[k] = v
	}
	for k, v := range fresh {
		out[k] = v
	}
	return out
}

// chunkCombinations groups combos into fixed-size batches, the last one
// possibly shorter.
func chunkCombinations(combos []map[string]float64, batchSize int) [][]map[string]float64 {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var batches [][]map[string]float64
	for start := 0; start < len(combos); start += batchSize {
		end := start + batchSize
		if end > len(combos) {
			end = len(combos)
		}
		batches = append(batches, combos[start:end])
	}
	return batches
}
