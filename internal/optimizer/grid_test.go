package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageCombinations_GridMode(t *testing.T) {
	stage := &Stage{
		GridMode:      true,
		ParameterName: []string{"a", "b"},
		ValueGrids:    [][]float64{{1, 2}, {10, 20}},
	}

	combos := stageCombinations(stage)
	require.Len(t, combos, 4)
	assert.Equal(t, map[string]float64{"a": 1, "b": 10}, combos[0])
	assert.Equal(t, map[string]float64{"a": 2, "b": 20}, combos[3])
}

func TestStageCombinations_Singleton(t *testing.T) {
	stage := &Stage{
		GridMode:      false,
		ParameterName: []string{"a"},
		ValueGrids:    [][]float64{{1, 2, 3}},
	}

	combos := stageCombinations(stage)
	require.Len(t, combos, 3)
	assert.Equal(t, map[string]float64{"a": 2}, combos[1])
}

func TestRankResults_ExcludesErroredAndPicksHighestComposite(t *testing.T) {
	results := []Result{
		{ResultIndex: 0, Parameters: map[string]float64{"x": 1}, Metrics: map[string]float64{metricsKeySharpe: 1.0, metricsKeyReturn: 10}},
		{ResultIndex: 1, Parameters: map[string]float64{"x": 2}, Metrics: map[string]float64{metricsKeySharpe: 2.0, metricsKeyReturn: 20}},
		{ResultIndex: 2, Parameters: map[string]float64{"x": 3}, Error: "worker_error"},
	}

	best, ok := rankResults(results, DefaultScoreWeights())
	require.True(t, ok)
	assert.Equal(t, float64(2), best.Parameters["x"])
	assert.Equal(t, 1.0, best.Score)
}

func TestRankResults_AllInvalid(t *testing.T) {
	results := []Result{{Error: "worker_error"}, {Error: "worker_error"}}
	_, ok := rankResults(results, DefaultScoreWeights())
	assert.False(t, ok)
}

func TestRankResults_TieBreaksOnRawSharpe(t *testing.T) {
	results := []Result{
		{ResultIndex: 0, Parameters: map[string]float64{"x": 1}, Metrics: map[string]float64{metricsKeySharpe: 1.0, metricsKeyReturn: 10}},
		{ResultIndex: 1, Parameters: map[string]float64{"x": 2}, Metrics: map[string]float64{metricsKeySharpe: 1.0, metricsKeyReturn: 10}},
	}
	// identical metrics -> identical scores; tie-break keeps the first at
	// equal raw sharpe (neither strictly greater), so result stays at index 0.
	best, ok := rankResults(results, DefaultScoreWeights())
	require.True(t, ok)
	assert.Equal(t, float64(1), best.Parameters["x"])
}

func TestRefineStage_NarrowsAroundBestAndHalvesStep(t *testing.T) {
	stage := &Stage{
		ParameterName: []string{"period"},
		ValueGrids:    [][]float64{{2, 6, 10, 14, 18}},
		AdaptiveMeta: map[string]AdaptiveMeta{
			"period": {TargetStep: 1, CurrentStep: 4, Lo: 2, Hi: 18, IsInteger: true},
		},
	}

	changed := refineStage(stage, map[string]float64{"period": 10})
	assert.True(t, changed)

	meta := stage.AdaptiveMeta["period"]
	assert.Equal(t, float64(2), meta.CurrentStep)
	assert.Equal(t, float64(6), meta.Lo)
	assert.Equal(t, float64(14), meta.Hi)

	values := stage.ValueGrids[0]
	assert.Equal(t, float64(6), values[0])
	assert.Equal(t, float64(14), values[len(values)-1])
}

func TestRefineStage_ConvergesAtTargetStep(t *testing.T) {
	stage := &Stage{
		ParameterName: []string{"period"},
		ValueGrids:    [][]float64{{9, 10, 11}},
		AdaptiveMeta: map[string]AdaptiveMeta{
			"period": {TargetStep: 1, CurrentStep: 1, Lo: 9, Hi: 11, IsInteger: true},
		},
	}

	changed := refineStage(stage, map[string]float64{"period": 10})
	assert.False(t, changed)
}

func TestMaxRoundsFor(t *testing.T) {
	gridStages := []*Stage{{GridMode: true}}
	singletonStages := []*Stage{{GridMode: false}}

	assert.Equal(t, MaxAdaptiveRounds, maxRoundsFor(gridStages, true))
	assert.Equal(t, MaxSingletonRounds, maxRoundsFor(singletonStages, true))
	assert.Equal(t, 1, maxRoundsFor(gridStages, false))
}
