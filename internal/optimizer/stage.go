package optimizer

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/backtestcore/internal/strategy"
)

// GridSizeWarnCap is the advisory (non-enforced) cap on the product of
// per-stage grid sizes, per spec.md §4.7 step 4. The orchestrator overrides
// this from config.OptimizerConfig.GridSizeWarnCap.
const GridSizeWarnCap = 1000

// planStages builds one joint-grid stage per correlated group and one
// singleton stage per remaining parameter (spec.md §4.7 steps 1-2), each
// carrying adaptive_meta for round-1 coarse refinement.
func planStages(schema *strategy.OptimizationSchema, warnCap int) ([]*Stage, error) {
	if warnCap <= 0 {
		warnCap = GridSizeWarnCap
	}

	grouped := make(map[string]bool)
	var stages []*Stage

	for i, group := range schema.CorrelatedGroups {
		stage, err := buildGridStage(fmt.Sprintf("group-%d", i), group, schema)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
		for _, name := range group {
			grouped[name] = true
		}
	}

	// Deterministic order for singleton stages: schema.Parameters is a map,
	// so sort names to keep planning reproducible across runs.
	var singles []string
	for name := range schema.Parameters {
		if !grouped[name] {
			singles = append(singles, name)
		}
	}
	sort.Strings(singles)

	for _, name := range singles {
		stage, err := buildSingletonStage(name, schema.Parameters[name])
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}

	warnIfOverCap(stages, warnCap)

	return stages, nil
}

func buildGridStage(id string, group []string, schema *strategy.OptimizationSchema) (*Stage, error) {
	stage := &Stage{
		StageID:       id,
		ParameterName: group,
		GridMode:      true,
		AdaptiveMeta:  make(map[string]AdaptiveMeta),
	}

	for _, name := range group {
		r, ok := schema.Parameters[name]
		if !ok {
			return nil, fmt.Errorf("%w: correlated group references undeclared parameter %q", ErrParameterInvalid, name)
		}
		step := coarseStep(r)
		stage.ValueGrids = append(stage.ValueGrids, valuesForRange(r, step))
		stage.AdaptiveMeta[name] = AdaptiveMeta{
			TargetStep:  r.Step,
			CurrentStep: step,
			Lo:          r.Min,
			Hi:          r.Max,
			IsInteger:   r.IsInteger,
		}
	}

	return stage, nil
}

func buildSingletonStage(name string, r strategy.ParamRange) (*Stage, error) {
	step := coarseStep(r)
	return &Stage{
		StageID:       name,
		ParameterName: []string{name},
		GridMode:      false,
		ValueGrids:    [][]float64{valuesForRange(r, step)},
		AdaptiveMeta: map[string]AdaptiveMeta{
			name: {
				TargetStep:  r.Step,
				CurrentStep: step,
				Lo:          r.Min,
				Hi:          r.Max,
				IsInteger:   r.IsInteger,
			},
		},
	}, nil
}

func warnIfOverCap(stages []*Stage, warnCap int) {
	for _, stage := range stages {
		size := 1
		for _, values := range stage.ValueGrids {
			size *= len(values)
		}
		if size > warnCap {
			log.Warn().
				Str("stage_id", stage.StageID).
				Int("grid_size", size).
				Int("cap", warnCap).
				Msg("optimizer: stage grid size exceeds advisory cap")
		}
	}
}
