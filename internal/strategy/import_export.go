package strategy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ExportFormat specifies the output format for a template export.
type ExportFormat string

const (
	FormatYAML ExportFormat = "yaml"
	FormatJSON ExportFormat = "json"
)

// ExportOptions configures template export behavior.
type ExportOptions struct {
	Format          ExportFormat
	IncludeMetadata bool
	PrettyPrint     bool
	AddComments     bool
}

// DefaultExportOptions returns the default export options.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Format:          FormatYAML,
		IncludeMetadata: true,
		PrettyPrint:     true,
		AddComments:     true,
	}
}

// ImportOptions configures template import behavior.
type ImportOptions struct {
	ValidateStrict   bool
	GenerateNewID    bool
	OverrideMetadata *Metadata
}

// DefaultImportOptions returns the default import options.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		ValidateStrict: true,
		GenerateNewID:  true,
	}
}

// Export serializes a strategy template to the requested format.
func Export(t *Template, opts ExportOptions) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("template cannot be nil")
	}

	exportTemplate := *t

	if opts.IncludeMetadata {
		exportTemplate.Metadata.UpdatedAt = time.Now()
		if exportTemplate.Metadata.ID == "" {
			exportTemplate.Metadata.ID = uuid.New().String()
		}
		if exportTemplate.Metadata.SchemaVersion == "" {
			exportTemplate.Metadata.SchemaVersion = SchemaVersion
		}
		if exportTemplate.Metadata.Source == "" {
			exportTemplate.Metadata.Source = "export"
		}
	}

	switch opts.Format {
	case FormatYAML:
		return exportToYAML(&exportTemplate, opts)
	case FormatJSON:
		return exportToJSON(&exportTemplate, opts)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", opts.Format)
	}
}

func exportToYAML(t *Template, opts ExportOptions) ([]byte, error) {
	var buf bytes.Buffer

	if opts.AddComments {
		buf.WriteString("# Backtest Strategy Template\n")
		buf.WriteString(fmt.Sprintf("# Schema Version: %s\n", t.Metadata.SchemaVersion))
		buf.WriteString(fmt.Sprintf("# Exported: %s\n", time.Now().Format(time.RFC3339)))
		buf.WriteString("\n")
	}

	encoder := yaml.NewEncoder(&buf)
	if opts.PrettyPrint {
		encoder.SetIndent(2)
	}

	if err := encoder.Encode(t); err != nil {
		return nil, fmt.Errorf("failed to encode template to YAML: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to close YAML encoder: %w", err)
	}

	return buf.Bytes(), nil
}

func exportToJSON(t *Template, opts ExportOptions) ([]byte, error) {
	var data []byte
	var err error

	if opts.PrettyPrint {
		data, err = json.MarshalIndent(t, "", "  ")
	} else {
		data, err = json.Marshal(t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode template to JSON: %w", err)
	}

	return data, nil
}

// ExportToFile exports a template to a file, inferring format from extension
// when unset.
func ExportToFile(t *Template, path string, opts ExportOptions) error {
	if opts.Format == "" {
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			opts.Format = FormatYAML
		case ".json":
			opts.Format = FormatJSON
		default:
			opts.Format = FormatYAML
		}
	}

	data, err := Export(t, opts)
	if err != nil {
		return fmt.Errorf("failed to export template: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write template file: %w", err)
	}

	return nil
}

// Import deserializes a strategy template from bytes, auto-detecting YAML vs JSON.
func Import(data []byte, opts ImportOptions) (*Template, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty template data")
	}

	var t Template
	var parseErr error

	isJSON := false
	for _, b := range data {
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		isJSON = b == '{' || b == '['
		break
	}

	if isJSON {
		if err := json.Unmarshal(data, &t); err != nil {
			if yamlErr := yaml.Unmarshal(data, &t); yamlErr != nil {
				parseErr = fmt.Errorf("failed to parse as JSON (%v) or YAML (%v)", err, yamlErr)
			}
		}
	} else {
		if err := yaml.Unmarshal(data, &t); err != nil {
			if jsonErr := json.Unmarshal(data, &t); jsonErr != nil {
				parseErr = fmt.Errorf("failed to parse as YAML (%v) or JSON (%v)", err, jsonErr)
			}
		}
	}

	if parseErr != nil {
		return nil, parseErr
	}

	if opts.GenerateNewID {
		t.Metadata.ID = uuid.New().String()
	}

	if opts.OverrideMetadata != nil {
		if opts.OverrideMetadata.Name != "" {
			t.Metadata.Name = opts.OverrideMetadata.Name
		}
		if opts.OverrideMetadata.Description != "" {
			t.Metadata.Description = opts.OverrideMetadata.Description
		}
		if opts.OverrideMetadata.Author != "" {
			t.Metadata.Author = opts.OverrideMetadata.Author
		}
		if len(opts.OverrideMetadata.Tags) > 0 {
			t.Metadata.Tags = opts.OverrideMetadata.Tags
		}
	}

	t.Metadata.UpdatedAt = time.Now()
	if t.Metadata.Source == "" {
		t.Metadata.Source = "import"
	}

	if opts.ValidateStrict {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("template validation failed: %w", err)
		}
	} else {
		if err := t.ValidateQuick(); err != nil {
			return nil, fmt.Errorf("template validation failed: %w", err)
		}
	}

	return &t, nil
}

// ImportFromFile imports a template from a file.
func ImportFromFile(path string, opts ImportOptions) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	t, err := Import(data, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to import template from %s: %w", path, err)
	}

	return t, nil
}

// ImportFromReader imports a template from an io.Reader.
func ImportFromReader(r io.Reader, opts ImportOptions) (*Template, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read template data: %w", err)
	}

	return Import(data, opts)
}

// Clone creates a deep copy of a template with a freshly generated identity.
func Clone(t *Template) (*Template, error) {
	if t == nil {
		return nil, fmt.Errorf("template cannot be nil")
	}

	copied := t.DeepCopy()
	if copied == nil {
		return nil, fmt.Errorf("failed to deep copy template")
	}

	copied.Metadata.ID = uuid.New().String()
	copied.Metadata.CreatedAt = time.Now()
	copied.Metadata.UpdatedAt = time.Now()
	copied.Metadata.Source = "clone"

	return copied, nil
}

// Merge merges two templates, with override's fields taking precedence for
// any field that is non-zero/non-empty.
//
// IMPORTANT: because Go zero values are indistinguishable from "not
// specified", an override field left at its zero value never overrides the
// base. Construct override from a complete template (e.g. via Import) when a
// field genuinely needs to be reset to zero.
func Merge(base, override *Template) (*Template, error) {
	if base == nil {
		return nil, fmt.Errorf("base template cannot be nil")
	}

	result, err := Clone(base)
	if err != nil {
		return nil, fmt.Errorf("failed to clone base template: %w", err)
	}

	if override == nil {
		return result, nil
	}

	if override.Metadata.Name != "" {
		result.Metadata.Name = override.Metadata.Name
	}
	if override.Metadata.Description != "" {
		result.Metadata.Description = override.Metadata.Description
	}
	if len(override.Metadata.Tags) > 0 {
		result.Metadata.Tags = override.Metadata.Tags
	}

	if len(override.Indicators) > 0 {
		result.Indicators = override.Indicators
	}
	if override.EntryLogic != "" {
		result.EntryLogic = override.EntryLogic
	}
	if override.ExitLogic != "" {
		result.ExitLogic = override.ExitLogic
	}
	if override.StopLoss > 0 {
		result.StopLoss = override.StopLoss
	}
	if override.StopGain != nil {
		result.StopGain = override.StopGain
	}

	mergeOptimization(&result.Optimization, &override.Optimization)

	result.Metadata.UpdatedAt = time.Now()
	result.Metadata.Source = "merge"

	return result, nil
}

func mergeOptimization(base, override *OptimizationSchema) {
	if len(override.Parameters) > 0 {
		if base.Parameters == nil {
			base.Parameters = make(map[string]ParamRange, len(override.Parameters))
		}
		for name, pr := range override.Parameters {
			base.Parameters[name] = pr
		}
	}
	if len(override.CorrelatedGroups) > 0 {
		base.CorrelatedGroups = override.CorrelatedGroups
	}
}
