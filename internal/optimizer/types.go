// Package optimizer implements the hybrid coarse-to-fine parameter search
// described in spec.md §4.7: correlated parameters are searched jointly over
// a Cartesian grid, independent parameters are searched as singleton stages,
// and every stage is refined round over round until the best parameter set
// stops moving. Work is dispatched to a bounded worker pool, progress is
// checkpointed atomically between batches, and every completed batch is
// flushed to a durable results store so a crash loses at most one batch.
package optimizer

import (
	"time"

	"github.com/ajitpratap0/backtestcore/internal/strategy"
)

// ScoreWeights parameterizes the composite ranking score (spec.md §4.7 step
// 4): score = Sharpe*normalized_sharpe + Return*normalized_return. The
// teacher's BalancedObjective hardcodes 0.6/0.25/0.15 across three metrics;
// here the weights are config-driven per spec.md §9 rather than baked in.
type ScoreWeights struct {
	Sharpe float64
	Return float64
}

// DefaultScoreWeights matches spec.md §4.7's reference composite score.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Sharpe: 0.7, Return: 0.3}
}

// OptimizationRequest is the input to RunOptimization (spec.md §6).
type OptimizationRequest struct {
	JobID        string
	TemplateName string
	Template     *strategy.Template
	Symbol       string
	Timeframe    string
	StartDate    time.Time
	EndDate      time.Time

	// CustomRanges overrides the template's declared optimization schema
	// for the named parameters only; parameters not present here use the
	// template's own ParamRange.
	CustomRanges map[string]strategy.ParamRange

	// DeepBacktest switches per-combination evaluation to the 15m refiner
	// (internal/refiner) instead of the coarse daily backtester.
	DeepBacktest bool

	Weights ScoreWeights
}

// OptimizationResponse is the output of RunOptimization/Resume (spec.md §6).
type OptimizationResponse struct {
	JobID        string
	TemplateName string
	Symbol       string
	Timeframe    string

	Stages      []*Stage
	TotalStages int

	BestParameters map[string]float64
	BestMetrics    map[string]float64

	// Trades is not populated by the orchestrator: the final materialization
	// pass re-runs the winning parameter set over the full range and keeps
	// only its metrics (BestMetrics). No candle or indicator series are
	// returned.
	Trades        []Result
	TopResults    []Result
	Status        JobStatus
	CompletedAt   time.Time
	ElapsedRounds int
}

// Result is one completed (or failed) combination evaluation.
type Result struct {
	ResultIndex int                `json:"result_index"`
	Parameters  map[string]float64 `json:"parameters"`
	Metrics     map[string]float64 `json:"metrics"`
	Score       float64            `json:"score"`
	Error       string             `json:"error,omitempty"`
}

// JobStatus tracks an optimization run's lifecycle (spec.md §3 Checkpoint).
type JobStatus string

const (
	JobInProgress JobStatus = "in_progress"
	JobPaused     JobStatus = "paused"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)
