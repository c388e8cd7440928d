package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/backtestcore/internal/indicators"
)

func TestNewDefaultTemplate_IsValid(t *testing.T) {
	tmpl := NewDefaultTemplate("ema-crossover")
	require.NoError(t, tmpl.Validate())
	assert.Equal(t, "ema-crossover", tmpl.Metadata.Name)
	assert.NotEmpty(t, tmpl.Metadata.ID)
	assert.Equal(t, SchemaVersion, tmpl.Metadata.SchemaVersion)
}

func TestValidate_MissingName(t *testing.T) {
	tmpl := NewDefaultTemplate("")
	tmpl.Metadata.Name = ""
	err := tmpl.Validate()
	require.Error(t, err)
	verrs, ok := err.(ValidationErrors)
	require.True(t, ok)
	found := false
	for _, v := range verrs {
		if v.Field == "metadata.name" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidate_UnsupportedSchemaVersion(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	tmpl.Metadata.SchemaVersion = "9.9"
	err := tmpl.Validate()
	require.Error(t, err)
}

func TestValidate_NoIndicators(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	tmpl.Indicators = nil
	err := tmpl.Validate()
	require.Error(t, err)
	verrs := err.(ValidationErrors)
	found := false
	for _, v := range verrs {
		if v.Field == "indicators" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidate_UnrecognizedIndicatorKind(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	tmpl.Indicators = []IndicatorConfig{{Kind: indicators.Kind("not_a_kind")}}
	err := tmpl.Validate()
	require.Error(t, err)
}

func TestValidate_DuplicateAlias(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	tmpl.Indicators = []IndicatorConfig{
		{Kind: indicators.KindEMA, Alias: "dup", Params: map[string]float64{"period": 9}},
		{Kind: indicators.KindSMA, Alias: "dup", Params: map[string]float64{"period": 20}},
	}
	err := tmpl.Validate()
	require.Error(t, err)
}

func TestValidate_UnboundIdentifierInLogic(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	tmpl.EntryLogic = "crossover(ema_fast, not_bound)"
	err := tmpl.Validate()
	require.Error(t, err)
}

func TestValidate_StopLossOutOfRange(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	tmpl.StopLoss = 1.5
	err := tmpl.Validate()
	require.Error(t, err)
}

func TestValidate_StopGainOutOfRange(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	bad := -0.1
	tmpl.StopGain = &bad
	err := tmpl.Validate()
	require.Error(t, err)
}

func TestValidate_OptimizationParameterBounds(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	tmpl.Optimization = OptimizationSchema{
		Parameters: map[string]ParamRange{
			"ema_fast_period": {Min: 20, Max: 5, Step: 1, Default: 9},
		},
	}
	err := tmpl.Validate()
	require.Error(t, err)
}

func TestValidate_CorrelatedGroupReferencesUndeclaredParameter(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	tmpl.Optimization = OptimizationSchema{
		Parameters: map[string]ParamRange{
			"ema_fast_period": {Min: 5, Max: 20, Step: 1, Default: 9},
		},
		CorrelatedGroups: [][]string{{"ema_fast_period", "ema_slow_period"}},
	}
	err := tmpl.Validate()
	require.Error(t, err)
}

func TestValidate_CorrelatedGroupDuplicateMembership(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	tmpl.Optimization = OptimizationSchema{
		Parameters: map[string]ParamRange{
			"a": {Min: 1, Max: 10, Step: 1, Default: 5},
			"b": {Min: 1, Max: 10, Step: 1, Default: 5},
			"c": {Min: 1, Max: 10, Step: 1, Default: 5},
		},
		CorrelatedGroups: [][]string{{"a", "b"}, {"b", "c"}},
	}
	err := tmpl.Validate()
	require.Error(t, err)
}

func TestDeepCopy_IsIndependent(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	clone := tmpl.DeepCopy()
	require.NotNil(t, clone)

	clone.Metadata.Name = "changed"
	clone.Indicators[0].Alias = "changed_alias"

	assert.Equal(t, "x", tmpl.Metadata.Name)
	assert.Equal(t, "ema_fast", tmpl.Indicators[0].Alias)
}

func TestIndicatorSpecs_AdaptsToIndicatorPackage(t *testing.T) {
	tmpl := NewDefaultTemplate("x")
	specs := tmpl.IndicatorSpecs()
	require.Len(t, specs, 2)
	assert.Equal(t, indicators.KindEMA, specs[0].Kind)
	assert.Equal(t, "ema_fast", specs[0].Alias)
}

func TestExportImport_RoundTripYAML(t *testing.T) {
	tmpl := NewDefaultTemplate("roundtrip")
	data, err := Export(tmpl, DefaultExportOptions())
	require.NoError(t, err)

	imported, err := Import(data, ImportOptions{ValidateStrict: true, GenerateNewID: false})
	require.NoError(t, err)
	assert.Equal(t, tmpl.Metadata.Name, imported.Metadata.Name)
	assert.Equal(t, tmpl.EntryLogic, imported.EntryLogic)
	assert.Len(t, imported.Indicators, 2)
}

func TestExportImport_RoundTripJSON(t *testing.T) {
	tmpl := NewDefaultTemplate("roundtrip-json")
	opts := DefaultExportOptions()
	opts.Format = FormatJSON
	data, err := Export(tmpl, opts)
	require.NoError(t, err)

	imported, err := Import(data, ImportOptions{ValidateStrict: true})
	require.NoError(t, err)
	assert.Equal(t, tmpl.Metadata.Name, imported.Metadata.Name)
}

func TestClone_GeneratesNewIdentity(t *testing.T) {
	tmpl := NewDefaultTemplate("clone-me")
	clone, err := Clone(tmpl)
	require.NoError(t, err)
	assert.NotEqual(t, tmpl.Metadata.ID, clone.Metadata.ID)
	assert.Equal(t, "clone", clone.Metadata.Source)
}

func TestMerge_OverridesNonZeroFields(t *testing.T) {
	base := NewDefaultTemplate("base")
	override := &Template{
		Metadata:   Metadata{Name: "overridden"},
		EntryLogic: "crossover(ema_fast, ema_slow) AND NOT above(ema_fast, ema_slow, 5)",
	}

	merged, err := Merge(base, override)
	require.NoError(t, err)
	assert.Equal(t, "overridden", merged.Metadata.Name)
	assert.Equal(t, override.EntryLogic, merged.EntryLogic)
	assert.Equal(t, base.ExitLogic, merged.ExitLogic)
}

func TestMerge_NilOverrideReturnsClone(t *testing.T) {
	base := NewDefaultTemplate("base")
	merged, err := Merge(base, nil)
	require.NoError(t, err)
	assert.Equal(t, base.Metadata.Name, merged.Metadata.Name)
	assert.NotEqual(t, base.Metadata.ID, merged.Metadata.ID)
}
