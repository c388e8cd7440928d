package indicators

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ajitpratap0/backtestcore/internal/candlestore"
)

// Compute evaluates every configured indicator Spec against a candle series
// and returns the resulting named columns, keyed per the deterministic
// binding rules (spec.md §4.2):
//   - single-output, aliased: column is the alias.
//   - single-output, unaliased: column is "<KIND>_<primary_length>".
//   - multi-output, aliased "a": columns are "a_<subfield>".
//   - multi-output, unaliased: columns are "<KIND>_<subfield>_<params>".
func Compute(candles []candlestore.Candle, specs []Spec) (map[string]Series, error) {
	cl, hi, lo, vol := closes(candles), highs(candles), lows(candles), volumes(candles)

	columns := make(map[string]Series, len(specs))
	for _, spec := range specs {
		outputs, subfields, err := computeSpec(spec, cl, hi, lo, vol)
		if err != nil {
			return nil, fmt.Errorf("indicators: %s: %w", spec.Kind, err)
		}
		for i, series := range outputs {
			name := columnName(spec, subfields[i])
			columns[name] = series
		}
	}
	return columns, nil
}

// Outputs returns the subfield names a Kind produces, without requiring any
// candle data: "" for single-output kinds, or the ordered subfield list for
// multi-output kinds. Used for preflight column-name derivation (e.g.
// validating a strategy template before any candles have been fetched).
func Outputs(kind Kind) ([]string, error) {
	switch kind {
	case KindStoch:
		return []string{"k", "d"}, nil
	case KindMACD:
		return []string{"line", "signal", "histogram"}, nil
	case KindBBands:
		return []string{"upper", "middle", "lower"}, nil
	case KindEMA, KindSMA, KindWMA, KindDEMA, KindTEMA, KindHMA, KindRSI, KindATR, KindNATR,
		KindADX, KindROC, KindCCI, KindWillR, KindMFI, KindOBV, KindCMF, KindVWAP, KindVolumeSMA:
		return []string{""}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized kind %q", ErrParameterInvalid, kind)
	}
}

// ColumnNames derives the bound column names a set of Specs will produce,
// without evaluating any of them — the same naming rules Compute uses.
func ColumnNames(specs []Spec) ([]string, error) {
	var names []string
	for _, spec := range specs {
		subfields, err := Outputs(spec.Kind)
		if err != nil {
			return nil, fmt.Errorf("indicators: %s: %w", spec.Kind, err)
		}
		for _, sf := range subfields {
			names = append(names, columnName(spec, sf))
		}
	}
	return names, nil
}

// columnName derives the bound column name for one output of a Spec.
func columnName(spec Spec, subfield string) string {
	switch {
	case subfield == "" && spec.Alias != "":
		return spec.Alias
	case subfield == "" && spec.Alias == "":
		return fmt.Sprintf("%s_%d", strings.ToUpper(string(spec.Kind)), primaryLength(spec))
	case subfield != "" && spec.Alias != "":
		return fmt.Sprintf("%s_%s", spec.Alias, subfield)
	default:
		return fmt.Sprintf("%s_%s_%s", strings.ToUpper(string(spec.Kind)), subfield, paramSuffix(spec))
	}
}

// primaryLength returns the conventional "main" period for single-output,
// unaliased naming (e.g. the 14 in RSI_14).
func primaryLength(spec Spec) int {
	switch spec.Kind {
	case KindMACD:
		return intParam(spec.Params, "fast_period", 12)
	case KindStoch:
		return intParam(spec.Params, "k_period", 14)
	case KindVWAP:
		return intParam(spec.Params, "period", 0)
	default:
		return intParam(spec.Params, "period", defaultPeriod(spec.Kind))
	}
}

// paramSuffix renders the conventional, ordered parameter tuple for
// multi-output unaliased names (e.g. the "12_26_9" in MACD_12_26_9).
func paramSuffix(spec Spec) string {
	switch spec.Kind {
	case KindMACD:
		return fmt.Sprintf("%d_%d_%d",
			intParam(spec.Params, "fast_period", 12),
			intParam(spec.Params, "slow_period", 26),
			intParam(spec.Params, "signal_period", 9))
	case KindBBands:
		return fmt.Sprintf("%d_%s",
			intParam(spec.Params, "period", 20),
			formatFloat(floatParam(spec.Params, "std_dev", 2.0)))
	case KindStoch:
		return fmt.Sprintf("%d_%d",
			intParam(spec.Params, "k_period", 14),
			intParam(spec.Params, "d_period", 3))
	default:
		return strconv.Itoa(intParam(spec.Params, "period", defaultPeriod(spec.Kind)))
	}
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	return strings.ReplaceAll(s, ".", "_")
}

func defaultPeriod(kind Kind) int {
	switch kind {
	case KindEMA, KindSMA, KindWMA, KindDEMA, KindTEMA, KindHMA, KindRSI, KindATR, KindNATR, KindROC, KindCCI, KindWillR, KindVolumeSMA:
		return 14
	case KindADX:
		return 14
	case KindMFI, KindCMF:
		return 20
	default:
		return 14
	}
}

// computeSpec dispatches one configured indicator to its implementation and
// returns its outputs alongside the subfield name for each (empty string for
// single-output indicators).
func computeSpec(spec Spec, cl, hi, lo, vol []float64) (outputs []Series, subfields []string, err error) {
	p := spec.Params
	switch spec.Kind {
	case KindEMA:
		s, e := EMA(cl, intParam(p, "period", 14))
		return []Series{s}, []string{""}, e
	case KindSMA:
		s, e := SMA(cl, intParam(p, "period", 14))
		return []Series{s}, []string{""}, e
	case KindWMA:
		s, e := WMA(cl, intParam(p, "period", 14))
		return []Series{s}, []string{""}, e
	case KindDEMA:
		s, e := DEMA(cl, intParam(p, "period", 14))
		return []Series{s}, []string{""}, e
	case KindTEMA:
		s, e := TEMA(cl, intParam(p, "period", 14))
		return []Series{s}, []string{""}, e
	case KindHMA:
		s, e := HMA(cl, intParam(p, "period", 14))
		return []Series{s}, []string{""}, e
	case KindRSI:
		s, e := RSI(cl, intParam(p, "period", 14))
		return []Series{s}, []string{""}, e
	case KindATR:
		s, e := ATR(hi, lo, cl, intParam(p, "period", 14))
		return []Series{s}, []string{""}, e
	case KindNATR:
		s, e := NATR(hi, lo, cl, intParam(p, "period", 14))
		return []Series{s}, []string{""}, e
	case KindADX:
		s, e := ADX(hi, lo, cl, intParam(p, "period", 14))
		return []Series{s}, []string{""}, e
	case KindROC:
		s, e := ROC(cl, intParam(p, "period", 14))
		return []Series{s}, []string{""}, e
	case KindCCI:
		s, e := CCI(hi, lo, cl, intParam(p, "period", 14))
		return []Series{s}, []string{""}, e
	case KindWillR:
		s, e := WilliamsR(hi, lo, cl, intParam(p, "period", 14))
		return []Series{s}, []string{""}, e
	case KindMFI:
		s, e := MFI(hi, lo, cl, vol, intParam(p, "period", 14))
		return []Series{s}, []string{""}, e
	case KindOBV:
		s, e := OBV(cl, vol)
		return []Series{s}, []string{""}, e
	case KindCMF:
		s, e := CMF(hi, lo, cl, vol, intParam(p, "period", 20))
		return []Series{s}, []string{""}, e
	case KindVWAP:
		s, e := VWAP(hi, lo, cl, vol, intParam(p, "period", 0))
		return []Series{s}, []string{""}, e
	case KindVolumeSMA:
		s, e := VolumeSMA(vol, intParam(p, "period", 14))
		return []Series{s}, []string{""}, e
	case KindStoch:
		k, d, e := Stochastic(hi, lo, cl, intParam(p, "k_period", 14), intParam(p, "d_period", 3))
		return []Series{k, d}, []string{"k", "d"}, e
	case KindMACD:
		line, signal, hist, e := MACD(cl,
			intParam(p, "fast_period", 12),
			intParam(p, "slow_period", 26),
			intParam(p, "signal_period", 9))
		return []Series{line, signal, hist}, []string{"line", "signal", "histogram"}, e
	case KindBBands:
		upper, middle, lower, e := Bollinger(cl, intParam(p, "period", 20), floatParam(p, "std_dev", 2.0))
		return []Series{upper, middle, lower}, []string{"upper", "middle", "lower"}, e
	default:
		return nil, nil, fmt.Errorf("%w: unrecognized kind %q", ErrParameterInvalid, spec.Kind)
	}
}
