package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/backtestcore/internal/indicators"
)

func TestApplyParameters_StopFields(t *testing.T) {
	tmpl := NewDefaultTemplate("x")

	out, err := ApplyParameters(tmpl, map[string]float64{"stop_loss": 0.05, "stop_gain": 0.1})
	require.NoError(t, err)
	assert.Equal(t, 0.05, out.StopLoss)
	require.NotNil(t, out.StopGain)
	assert.Equal(t, 0.1, *out.StopGain)

	// original is untouched
	assert.Equal(t, 0.02, tmpl.StopLoss)
	assert.Nil(t, tmpl.StopGain)
}

func TestApplyParameters_QualifiedAlias(t *testing.T) {
	tmpl := NewDefaultTemplate("x")

	out, err := ApplyParameters(tmpl, map[string]float64{"ema_fast.period": 12})
	require.NoError(t, err)
	assert.Equal(t, float64(12), out.Indicators[0].Params["period"])
	assert.Equal(t, float64(21), out.Indicators[1].Params["period"])
}

func TestApplyParameters_QualifiedAliasUnknown(t *testing.T) {
	tmpl := NewDefaultTemplate("x")

	_, err := ApplyParameters(tmpl, map[string]float64{"ema_nope.period": 12})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParameterUnbound)
}

func TestApplyParameters_BareNameAmbiguous(t *testing.T) {
	tmpl := NewDefaultTemplate("x")

	_, err := ApplyParameters(tmpl, map[string]float64{"period": 12})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParameterUnbound)
}

func TestApplyParameters_BareNameUnique(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	tmpl.Indicators = append(tmpl.Indicators, IndicatorConfig{
		Kind:   indicators.KindRSI,
		Alias:  "rsi",
		Params: map[string]float64{"overbought": 70},
	})

	out, err := ApplyParameters(tmpl, map[string]float64{"overbought": 80})
	require.NoError(t, err)
	assert.Equal(t, float64(80), out.Indicators[2].Params["overbought"])
}

func TestApplyParameters_BareNameNoMatch(t *testing.T) {
	tmpl := NewDefaultTemplate("x")

	_, err := ApplyParameters(tmpl, map[string]float64{"nonexistent": 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParameterUnbound)
}

func TestDeriveOptimizationSchema_QualifiesSharedParamNames(t *testing.T) {
	tmpl := NewDefaultTemplate("x")

	schema := DeriveOptimizationSchema(tmpl)

	_, hasBare := schema.Parameters["period"]
	assert.False(t, hasBare, "shared param name must be qualified, not bare")

	fast, ok := schema.Parameters["ema_fast.period"]
	require.True(t, ok)
	assert.True(t, fast.IsInteger)
	assert.Equal(t, float64(9), fast.Default)
	assert.InDelta(t, 4.5, fast.Min, 1e-9)
	assert.InDelta(t, 18, fast.Max, 1e-9)

	slow, ok := schema.Parameters["ema_slow.period"]
	require.True(t, ok)
	assert.Equal(t, float64(21), slow.Default)
}

func TestDeriveOptimizationSchema_BareNameWhenUnique(t *testing.T) {
	tmpl := &Template{
		Indicators: []IndicatorConfig{
			{Kind: indicators.KindRSI, Alias: "rsi", Params: map[string]float64{"overbought": 70}},
		},
	}

	schema := DeriveOptimizationSchema(tmpl)

	r, ok := schema.Parameters["overbought"]
	require.True(t, ok)
	assert.Equal(t, float64(70), r.Default)
	assert.False(t, r.IsInteger)
}

func TestDerivedRange_IntegerFloor(t *testing.T) {
	r := derivedRange(1, true)
	assert.Equal(t, float64(1), r.Min)
	assert.GreaterOrEqual(t, r.Max, r.Min+1)
	assert.Equal(t, float64(1), r.Step)
}
