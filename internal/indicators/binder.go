package indicators

import (
	"strconv"
	"strings"
)

// Binder resolves a signal-expression identifier to a computed column,
// transparently redirecting conventional names (e.g. "RSI_14") to the
// actual bound column when the configured period differs but the kind is
// unambiguous (spec.md §4.2, §9 "Column naming and indicator binding").
type Binder struct {
	columns map[string]Series
	specs   []Spec
}

// NewBinder pairs a set of computed columns with the Specs that produced
// them, so conventional-name lookups can be redirected.
func NewBinder(columns map[string]Series, specs []Spec) *Binder {
	return &Binder{columns: columns, specs: specs}
}

// Resolve looks up name, first as a literal column, then as a conventional
// name ("<KIND>_<period>") redirected to the unambiguous indicator of that
// kind. Redirection only fires for single-output kinds: multi-output
// columns are always addressed through their alias or subfield name.
func (b *Binder) Resolve(name string) (Series, bool) {
	if s, ok := b.columns[name]; ok {
		return s, true
	}

	kind, period, ok := parseConventionalName(name)
	if !ok {
		return nil, false
	}

	var matches []Spec
	for _, spec := range b.specs {
		if spec.Kind == kind {
			matches = append(matches, spec)
		}
	}
	if len(matches) == 0 {
		return nil, false
	}

	if len(matches) == 1 {
		s, ok := b.columns[columnName(matches[0], "")]
		return s, ok
	}

	// Ambiguous kind: only an exact primary-length match binds.
	for _, spec := range matches {
		if primaryLength(spec) == period {
			if s, ok := b.columns[columnName(spec, "")]; ok {
				return s, true
			}
		}
	}
	return nil, false
}

// parseConventionalName splits "RSI_14" into (KindRSI, 14). Returns ok=false
// for anything that doesn't match "<alpha>_<digits>".
func parseConventionalName(name string) (kind Kind, period int, ok bool) {
	idx := strings.LastIndex(name, "_")
	if idx <= 0 || idx == len(name)-1 {
		return "", 0, false
	}
	prefix, suffix := name[:idx], name[idx+1:]
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return "", 0, false
	}
	return Kind(strings.ToLower(prefix)), n, true
}
