// Package strategy provides strategy template configuration, validation,
// schema versioning, and import/export — the declarative description the
// signal engine and optimizer both consume (spec.md §3 "Strategy Template"
// and "Optimization Schema").
package strategy

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/backtestcore/internal/indicators"
)

// SchemaVersion is the current strategy schema version.
const SchemaVersion = "1.0"

// Template is an exportable, optimizable strategy definition.
type Template struct {
	Metadata     Metadata           `yaml:"metadata" json:"metadata"`
	Indicators   []IndicatorConfig  `yaml:"indicators" json:"indicators"`
	EntryLogic   string             `yaml:"entry_logic" json:"entry_logic"`
	ExitLogic    string             `yaml:"exit_logic" json:"exit_logic"`
	StopLoss     float64            `yaml:"stop_loss" json:"stop_loss"`
	StopGain     *float64           `yaml:"stop_gain,omitempty" json:"stop_gain,omitempty"`
	Optimization OptimizationSchema `yaml:"optimization,omitempty" json:"optimization,omitempty"`
}

// Metadata identifies and describes a Template.
type Metadata struct {
	SchemaVersion string    `yaml:"schema_version" json:"schema_version"`
	ID            string    `yaml:"id,omitempty" json:"id,omitempty"`
	Name          string    `yaml:"name" json:"name"`
	Description   string    `yaml:"description,omitempty" json:"description,omitempty"`
	Author        string    `yaml:"author,omitempty" json:"author,omitempty"`
	Version       string    `yaml:"version,omitempty" json:"version,omitempty"`
	Tags          []string  `yaml:"tags,omitempty" json:"tags,omitempty"`
	CreatedAt     time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt     time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
	Source        string    `yaml:"source,omitempty" json:"source,omitempty"`
}

// IndicatorConfig is one configured indicator instance (spec.md §3:
// "indicators: list of { kind, alias?, params: map }").
type IndicatorConfig struct {
	Kind   indicators.Kind    `yaml:"kind" json:"kind"`
	Alias  string             `yaml:"alias,omitempty" json:"alias,omitempty"`
	Params map[string]float64 `yaml:"params,omitempty" json:"params,omitempty"`
}

// ToSpec adapts an IndicatorConfig to the indicators package's Spec type.
func (c IndicatorConfig) ToSpec() indicators.Spec {
	return indicators.Spec{Kind: c.Kind, Alias: c.Alias, Params: c.Params}
}

// IndicatorSpecs adapts a Template's full indicator list to indicators.Spec.
func (t *Template) IndicatorSpecs() []indicators.Spec {
	specs := make([]indicators.Spec, len(t.Indicators))
	for i, c := range t.Indicators {
		specs[i] = c.ToSpec()
	}
	return specs
}

// ParamRange describes one optimizable parameter's search bounds (spec.md
// §3: "parameters: map<name, { min, max, step, default }>").
type ParamRange struct {
	Min     float64 `yaml:"min" json:"min"`
	Max     float64 `yaml:"max" json:"max"`
	Step    float64 `yaml:"step" json:"step"`
	Default float64 `yaml:"default" json:"default"`
	// IsInteger marks a parameter that must only take integer values (e.g.
	// an indicator period), so the optimizer rounds coarse steps and
	// refinement bounds instead of treating it as continuous.
	IsInteger bool `yaml:"is_integer,omitempty" json:"is_integer,omitempty"`
}

// OptimizationSchema describes the parameter space and correlated search
// groups a Template exposes to the optimizer.
type OptimizationSchema struct {
	Parameters       map[string]ParamRange `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	CorrelatedGroups [][]string            `yaml:"correlated_groups,omitempty" json:"correlated_groups,omitempty"`
}

// NewDefaultTemplate creates a minimal, valid starting-point template: a
// single EMA crossover with a 2% stop loss and no declared optimization schema.
func NewDefaultTemplate(name string) *Template {
	now := time.Now()
	return &Template{
		Metadata: Metadata{
			SchemaVersion: SchemaVersion,
			ID:            uuid.New().String(),
			Name:          name,
			CreatedAt:     now,
			UpdatedAt:     now,
			Source:        "user",
		},
		Indicators: []IndicatorConfig{
			{Kind: indicators.KindEMA, Alias: "ema_fast", Params: map[string]float64{"period": 9}},
			{Kind: indicators.KindEMA, Alias: "ema_slow", Params: map[string]float64{"period": 21}},
		},
		EntryLogic: "crossover(ema_fast, ema_slow)",
		ExitLogic:  "crossunder(ema_fast, ema_slow)",
		StopLoss:   0.02,
	}
}

// DeepCopy creates a complete independent copy of the template via JSON
// round-trip, so nested slices/maps/pointers all clone without manual
// field-by-field copying.
func (t *Template) DeepCopy() *Template {
	if t == nil {
		return nil
	}

	data, err := json.Marshal(t)
	if err != nil {
		log.Error().Err(err).Str("template_name", t.Metadata.Name).Msg("DeepCopy: failed to marshal template")
		return nil
	}

	var copied Template
	if err := json.Unmarshal(data, &copied); err != nil {
		log.Error().Err(err).Str("template_name", t.Metadata.Name).Msg("DeepCopy: failed to unmarshal template")
		return nil
	}

	return &copied
}
