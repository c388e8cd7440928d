package optimizer

import (
	"math"

	"github.com/ajitpratap0/backtestcore/internal/strategy"
)

// MaxAdaptiveRounds bounds coarse-to-fine refinement when at least one
// stage carries a Cartesian grid (spec.md §4.7 "Round execution").
const MaxAdaptiveRounds = 4

// MaxSingletonRounds bounds refinement when every stage is a singleton
// sweep (no correlated groups at all).
const MaxSingletonRounds = 5

// maxRoundsFor picks the round budget for a planned set of stages.
func maxRoundsFor(stages []*Stage, adaptive bool) int {
	if !adaptive {
		return 1
	}
	for _, stage := range stages {
		if stage.GridMode {
			return MaxAdaptiveRounds
		}
	}
	return MaxSingletonRounds
}

// stageCombinations materializes the concrete parameter sets for one stage
// (spec.md §4.7 step 1): the Cartesian product for a grid stage, or each
// value individually for a singleton stage.
func stageCombinations(stage *Stage) []map[string]float64 {
	if stage.GridMode {
		rows := cartesianProduct(stage.ValueGrids)
		combos := make([]map[string]float64, len(rows))
		for i, row := range rows {
			combo := make(map[string]float64, len(stage.ParameterName))
			for j, name := range stage.ParameterName {
				combo[name] = row[j]
			}
			combos[i] = combo
		}
		return combos
	}

	name := stage.ParameterName[0]
	values := stage.ValueGrids[0]
	combos := make([]map[string]float64, len(values))
	for i, v := range values {
		combos[i] = map[string]float64{name: v}
	}
	return combos
}

// rankResults computes each valid result's composite score (spec.md §4.7
// step 4: normalize Sharpe and total return across the stage to [0,1],
// score = weights.Sharpe*norm_sharpe + weights.Return*norm_return) and
// returns the winner. Results with a non-empty Error are excluded from
// scoring and ranking entirely (spec.md §7 category 4).
func rankResults(results []Result, weights ScoreWeights) (best *Result, ok bool) {
	var valid []*Result
	for i := range results {
		if results[i].Error == "" && results[i].Metrics != nil {
			valid = append(valid, &results[i])
		}
	}
	if len(valid) == 0 {
		return nil, false
	}

	minSharpe, maxSharpe := minMax(valid, metricsKeySharpe)
	minReturn, maxReturn := minMax(valid, metricsKeyReturn)

	for _, r := range valid {
		normSharpe := normalize(r.Metrics[metricsKeySharpe], minSharpe, maxSharpe)
		normReturn := normalize(r.Metrics[metricsKeyReturn], minReturn, maxReturn)
		r.Score = weights.Sharpe*normSharpe + weights.Return*normReturn
	}

	best = valid[0]
	for _, r := range valid[1:] {
		if r.Score > best.Score || (r.Score == best.Score && r.Metrics[metricsKeySharpe] > best.Metrics[metricsKeySharpe]) {
			best = r
		}
	}

	return best, true
}

func minMax(results []*Result, key string) (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, r := range results {
		v := r.Metrics[key]
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func normalize(v, min, max float64) float64 {
	if max-min < 1e-12 {
		return 0.5
	}
	return (v - min) / (max - min)
}

// refineStage narrows a stage's value grids around the winning parameter
// set (spec.md §4.7 "refinement"): new range is [best-old_step, best+old_step]
// clamped to schema bounds, new step halves (never below target_step or
// below 1 for integers), values regenerated/deduped/sorted. Returns false
// when nothing changed — e.g. every parameter is already at its target
// step — signaling convergence.
func refineStage(stage *Stage, bestParams map[string]float64) bool {
	changed := false

	for i, name := range stage.ParameterName {
		meta := stage.AdaptiveMeta[name]
		best, ok := bestParams[name]
		if !ok {
			continue
		}

		newStep := meta.CurrentStep / 2
		if meta.IsInteger {
			newStep = math.Max(1, math.Floor(meta.CurrentStep/2))
			if newStep < meta.TargetStep {
				newStep = meta.TargetStep
			}
		} else if newStep < meta.TargetStep {
			newStep = meta.TargetStep
		}

		lo := math.Max(meta.Lo, best-meta.CurrentStep)
		hi := math.Min(meta.Hi, best+meta.CurrentStep)
		if hi <= lo {
			hi = lo + newStep
		}

		r := strategy.ParamRange{Min: lo, Max: hi, Step: newStep, IsInteger: meta.IsInteger}
		stage.ValueGrids[i] = valuesForRange(r, newStep)

		if newStep < meta.CurrentStep || lo != meta.Lo || hi != meta.Hi {
			changed = true
		}

		meta.CurrentStep = newStep
		meta.Lo = lo
		meta.Hi = hi
		stage.AdaptiveMeta[name] = meta
	}

	return changed
}
