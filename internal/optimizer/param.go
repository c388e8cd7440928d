package optimizer

import (
	"math"
	"sort"

	"github.com/ajitpratap0/backtestcore/internal/strategy"
)

// AdaptiveMeta tracks one parameter's refinement state across rounds
// (spec.md §3 Optimizer Stage: "adaptive_meta: map<name, {target_step,
// current_step, lo, hi}>").
type AdaptiveMeta struct {
	TargetStep  float64
	CurrentStep float64
	Lo          float64
	Hi          float64
	IsInteger   bool
}

// Stage is one planned unit of search: either a joint Cartesian grid over a
// correlated group, or a singleton sweep of one parameter (spec.md §3).
type Stage struct {
	StageID       string
	ParameterName []string
	ValueGrids    [][]float64
	GridMode      bool
	AdaptiveMeta  map[string]AdaptiveMeta
}

// effectiveSchema applies CustomRanges overrides on top of the template's
// declared schema, falling back to DeriveOptimizationSchema when the
// template declares no optimization schema at all.
func effectiveSchema(tmpl *strategy.Template, custom map[string]strategy.ParamRange) *strategy.OptimizationSchema {
	schema := tmpl.Optimization
	if len(schema.Parameters) == 0 {
		derived := strategy.DeriveOptimizationSchema(tmpl)
		schema = *derived
	} else {
		// Copy so overrides never mutate the template's own schema map.
		params := make(map[string]strategy.ParamRange, len(schema.Parameters))
		for k, v := range schema.Parameters {
			params[k] = v
		}
		schema.Parameters = params
	}

	for name, override := range custom {
		schema.Parameters[name] = override
	}

	return &schema
}

// coarseStep computes round-1's coarse sampling step for a parameter, per
// spec.md §4.7 step 3: the grid should cover the full range in roughly 4-6
// samples per dimension.
func coarseStep(r strategy.ParamRange) float64 {
	rng := r.Max - r.Min
	if r.IsInteger {
		step := math.Max(1, math.Floor(rng/4))
		return step
	}
	return math.Max(r.Step*5, rng/4)
}

// valuesForRange enumerates the concrete grid values for one parameter at a
// given step, inclusive of both bounds, deduplicated and sorted ascending.
func valuesForRange(r strategy.ParamRange, step float64) []float64 {
	if step <= 0 {
		step = r.Step
	}
	if step <= 0 {
		return []float64{r.Default}
	}

	var values []float64
	for v := r.Min; v < r.Max-1e-9; v += step {
		values = append(values, roundIfInteger(v, r.IsInteger))
	}
	values = append(values, roundIfInteger(r.Max, r.IsInteger))

	return dedupSorted(values)
}

func roundIfInteger(v float64, isInteger bool) float64 {
	if isInteger {
		return math.Round(v)
	}
	return v
}

func dedupSorted(values []float64) []float64 {
	sort.Float64s(values)
	out := values[:0]
	for i, v := range values {
		if i == 0 || math.Abs(v-out[len(out)-1]) > 1e-9 {
			out = append(out, v)
		}
	}
	return out
}

// cartesianProduct returns every combination of one value per input slice,
// in row-major order: the last parameter varies fastest.
func cartesianProduct(grids [][]float64) [][]float64 {
	if len(grids) == 0 {
		return nil
	}

	combos := [][]float64{{}}
	for _, values := range grids {
		var next [][]float64
		for _, combo := range combos {
			for _, v := range values {
				extended := make([]float64, len(combo)+1)
				copy(extended, combo)
				extended[len(combo)] = v
				next = append(next, extended)
			}
		}
		combos = next
	}
	return combos
}
