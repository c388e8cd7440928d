package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ajitpratap0/backtestcore/internal/indicators"
	"github.com/ajitpratap0/backtestcore/internal/signal"
)

// ValidationError contains details about one validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// ErrInvalidSchema is returned when the schema version is not supported.
var ErrInvalidSchema = errors.New("invalid or unsupported schema version")

// ErrMissingRequiredField is returned when a required field is missing.
var ErrMissingRequiredField = errors.New("missing required field")

// SupportedSchemaVersions lists all supported schema versions.
var SupportedSchemaVersions = []string{"1.0"}

// Validate performs comprehensive validation on a strategy template.
// Returns nil if valid, or ValidationErrors with every issue found.
func (t *Template) Validate() error {
	var errs ValidationErrors

	errs = append(errs, t.validateMetadata()...)
	errs = append(errs, t.validateIndicators()...)
	errs = append(errs, t.validateLogic()...)
	errs = append(errs, t.validateStops()...)
	errs = append(errs, t.validateOptimization()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (t *Template) validateMetadata() ValidationErrors {
	var errs ValidationErrors

	if t.Metadata.SchemaVersion == "" {
		errs = append(errs, ValidationError{Field: "metadata.schema_version", Message: "schema version is required"})
	} else if !IsVersionSupported(t.Metadata.SchemaVersion) {
		errs = append(errs, ValidationError{
			Field:   "metadata.schema_version",
			Message: fmt.Sprintf("unsupported schema version %s, supported: %v", t.Metadata.SchemaVersion, SupportedSchemaVersions),
		})
	}

	if t.Metadata.Name == "" {
		errs = append(errs, ValidationError{Field: "metadata.name", Message: "strategy name is required"})
	} else if len(t.Metadata.Name) > 100 {
		errs = append(errs, ValidationError{Field: "metadata.name", Message: "strategy name must be 100 characters or less"})
	}

	if len(t.Metadata.Description) > 2000 {
		errs = append(errs, ValidationError{Field: "metadata.description", Message: "description must be 2000 characters or less"})
	}

	return errs
}

func (t *Template) validateIndicators() ValidationErrors {
	var errs ValidationErrors

	if len(t.Indicators) == 0 {
		errs = append(errs, ValidationError{Field: "indicators", Message: "at least one indicator is required"})
		return errs
	}

	seenAlias := make(map[string]bool)
	for i, ind := range t.Indicators {
		field := fmt.Sprintf("indicators[%d]", i)
		if ind.Kind == "" {
			errs = append(errs, ValidationError{Field: field + ".kind", Message: "kind is required"})
			continue
		}
		if _, err := indicators.Outputs(ind.Kind); err != nil {
			errs = append(errs, ValidationError{Field: field + ".kind", Message: fmt.Sprintf("unrecognized indicator kind %q", ind.Kind)})
		}
		if ind.Alias != "" {
			if seenAlias[ind.Alias] {
				errs = append(errs, ValidationError{Field: field + ".alias", Message: fmt.Sprintf("duplicate alias %q", ind.Alias)})
			}
			seenAlias[ind.Alias] = true
		}
	}

	return errs
}

// validateLogic parses entry/exit logic against the columns the configured
// indicators (plus OHLCV) will produce, catching unbound identifiers before
// a single candle is ever fetched (spec.md §4.3's preflight requirement).
func (t *Template) validateLogic() ValidationErrors {
	var errs ValidationErrors

	if t.EntryLogic == "" {
		errs = append(errs, ValidationError{Field: "entry_logic", Message: "entry_logic is required"})
	}
	if t.ExitLogic == "" {
		errs = append(errs, ValidationError{Field: "exit_logic", Message: "exit_logic is required"})
	}
	if t.EntryLogic == "" || t.ExitLogic == "" {
		return errs
	}

	columnNames, err := indicators.ColumnNames(t.IndicatorSpecs())
	if err != nil {
		errs = append(errs, ValidationError{Field: "indicators", Message: err.Error()})
		return errs
	}

	resolve := preflightResolver(columnNames)

	if _, err := signal.Compile(t.EntryLogic, t.ExitLogic, resolve); err != nil {
		errs = append(errs, ValidationError{Field: "entry_logic/exit_logic", Message: err.Error()})
	}

	return errs
}

// preflightResolver reports every OHLCV column and bound indicator column as
// resolvable without any actual series data — Validate only needs to know
// that a name exists, not its values.
func preflightResolver(columnNames []string) signal.Resolver {
	known := map[string]bool{"open": true, "high": true, "low": true, "close": true, "volume": true}
	for _, name := range columnNames {
		known[name] = true
	}
	return func(name string) ([]float64, bool) {
		if known[name] {
			return []float64{}, true
		}
		return nil, false
	}
}

func (t *Template) validateStops() ValidationErrors {
	var errs ValidationErrors

	if t.StopLoss <= 0 || t.StopLoss >= 1 {
		errs = append(errs, ValidationError{Field: "stop_loss", Message: "stop_loss must be a fraction strictly between 0 and 1"})
	}
	if t.StopGain != nil && (*t.StopGain <= 0 || *t.StopGain >= 1) {
		errs = append(errs, ValidationError{Field: "stop_gain", Message: "stop_gain must be a fraction strictly between 0 and 1"})
	}

	return errs
}

func (t *Template) validateOptimization() ValidationErrors {
	var errs ValidationErrors
	opt := t.Optimization

	for name, pr := range opt.Parameters {
		field := fmt.Sprintf("optimization.parameters[%s]", name)
		if pr.Min > pr.Max {
			errs = append(errs, ValidationError{Field: field, Message: "min must not exceed max"})
		}
		if pr.Step <= 0 {
			errs = append(errs, ValidationError{Field: field, Message: "step must be positive"})
		}
		if pr.Default < pr.Min || pr.Default > pr.Max {
			errs = append(errs, ValidationError{Field: field, Message: "default must fall within [min, max]"})
		}
	}

	seen := make(map[string]bool)
	for gi, group := range opt.CorrelatedGroups {
		field := fmt.Sprintf("optimization.correlated_groups[%d]", gi)
		if len(group) < 2 {
			errs = append(errs, ValidationError{Field: field, Message: "a correlated group must name at least two parameters"})
		}
		for _, name := range group {
			if _, ok := opt.Parameters[name]; !ok {
				errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("references undeclared parameter %q", name)})
				continue
			}
			if seen[name] {
				errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("parameter %q appears in more than one correlated group", name)})
			}
			seen[name] = true
		}
	}

	return errs
}

// ValidateQuick performs minimal validation for fast rejection of obviously
// broken templates (e.g. when listing candidates before a full parse).
func (t *Template) ValidateQuick() error {
	if t.Metadata.SchemaVersion == "" {
		return fmt.Errorf("%w: metadata.schema_version", ErrMissingRequiredField)
	}
	if !IsVersionSupported(t.Metadata.SchemaVersion) {
		return ErrInvalidSchema
	}
	if t.Metadata.Name == "" {
		return fmt.Errorf("%w: metadata.name", ErrMissingRequiredField)
	}
	return nil
}
