package strategy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrParameterUnbound is returned by ApplyParameters when a bare parameter
// name matches no configured indicator, or matches more than one and the
// caller did not disambiguate with an "alias.param" name.
var ErrParameterUnbound = errors.New("optimizer parameter does not bind to a unique template field")

// periodParamKeys lists the indicator parameter names that are always
// integer-valued bar counts, used by DeriveOptimizationSchema to decide
// IsInteger and a sane search range when a template does not already carry
// an optimization schema.
var periodParamKeys = map[string]bool{
	"period":        true,
	"fast_period":   true,
	"slow_period":   true,
	"signal_period": true,
	"k_period":      true,
	"d_period":      true,
}

// ApplyParameters returns a copy of tmpl with each named parameter bound to
// its given value. Names are resolved in this order:
//
//   - "stop_loss" / "stop_gain" bind directly to the Template's risk fields.
//   - "<alias>.<param>" binds to that indicator's Params[param] by alias.
//   - a bare "<param>" binds to Params[param] on whichever single indicator
//     configured on the template declares that key; it is an error if zero
//     or more than one indicator declares it, since the bind would be
//     ambiguous.
func ApplyParameters(tmpl *Template, params map[string]float64) (*Template, error) {
	out := tmpl.DeepCopy()
	if out == nil {
		return nil, fmt.Errorf("apply parameters: failed to copy template")
	}

	for name, value := range params {
		switch name {
		case "stop_loss":
			out.StopLoss = value
			continue
		case "stop_gain":
			v := value
			out.StopGain = &v
			continue
		}

		if alias, param, ok := strings.Cut(name, "."); ok {
			idx := indexOfAlias(out.Indicators, alias)
			if idx < 0 {
				return nil, fmt.Errorf("%w: %q references unknown indicator alias %q", ErrParameterUnbound, name, alias)
			}
			if out.Indicators[idx].Params == nil {
				out.Indicators[idx].Params = make(map[string]float64)
			}
			out.Indicators[idx].Params[param] = value
			continue
		}

		matches := indicesWithParam(out.Indicators, name)
		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("%w: %q matches no configured indicator parameter", ErrParameterUnbound, name)
		case 1:
			out.Indicators[matches[0]].Params[name] = value
		default:
			return nil, fmt.Errorf("%w: %q matches %d indicators, qualify with alias.param", ErrParameterUnbound, name, len(matches))
		}
	}

	return out, nil
}

func indexOfAlias(indicators []IndicatorConfig, alias string) int {
	for i, ind := range indicators {
		if ind.Alias == alias {
			return i
		}
	}
	return -1
}

func indicesWithParam(indicators []IndicatorConfig, param string) []int {
	var matches []int
	for i, ind := range indicators {
		if _, ok := ind.Params[param]; ok {
			matches = append(matches, i)
		}
	}
	return matches
}

// DeriveOptimizationSchema builds an OptimizationSchema from a template's
// configured indicator parameters when the template does not already
// declare one. Every numeric indicator parameter becomes a singleton
// ParamRange centered on its configured value (half to double, clamped to
// at least 1 for integer periods); nothing is grouped as correlated since
// the template carries no information about which parameters move
// together.
func DeriveOptimizationSchema(tmpl *Template) *OptimizationSchema {
	schema := &OptimizationSchema{Parameters: make(map[string]ParamRange)}

	for _, ind := range tmpl.Indicators {
		for param, value := range ind.Params {
			name := param
			if countParamUsers(tmpl.Indicators, param) > 1 {
				name = fmt.Sprintf("%s.%s", ind.Alias, param)
			}

			isInteger := periodParamKeys[param]
			schema.Parameters[name] = derivedRange(value, isInteger)
		}
	}

	return schema
}

func countParamUsers(indicators []IndicatorConfig, param string) int {
	n := 0
	for _, ind := range indicators {
		if _, ok := ind.Params[param]; ok {
			n++
		}
	}
	return n
}

func derivedRange(value float64, isInteger bool) ParamRange {
	min := value / 2
	max := value * 2
	if isInteger {
		if min < 1 {
			min = 1
		}
		if max < min+1 {
			max = min + 1
		}
		return ParamRange{Min: min, Max: max, Step: 1, Default: value, IsInteger: true}
	}

	if max <= min {
		max = min + 1
	}
	step := (max - min) / 10
	if step <= 0 {
		step = 0.1
	}
	return ParamRange{Min: min, Max: max, Step: step, Default: value}
}
