package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Validate performs comprehensive configuration validation.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateExchange()...)
	errors = append(errors, c.validateOptimizer()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{Field: "app.name", Message: "application name is required"})
	}

	validEnvs := []string{"development", "staging", "production"}
	if !contains(validEnvs, c.App.Environment) {
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: fmt.Sprintf("invalid environment %q, must be one of: %v", c.App.Environment, validEnvs),
		})
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, strings.ToLower(c.App.LogLevel)) {
		errors = append(errors, ValidationError{
			Field:   "app.log_level",
			Message: fmt.Sprintf("invalid log level %q, must be one of: %v", c.App.LogLevel, validLevels),
		})
	}

	return errors
}

func (c *Config) validateStore() ValidationErrors {
	var errors ValidationErrors

	if c.Store.RootDir == "" {
		errors = append(errors, ValidationError{Field: "store.root_dir", Message: "candle store root directory is required"})
	}
	if c.Store.InceptionTimestamp < 0 {
		errors = append(errors, ValidationError{Field: "store.inception_timestamp_ms", Message: "inception timestamp must be non-negative"})
	}
	if c.Store.MaxIntradayBackfillDays <= 0 {
		errors = append(errors, ValidationError{Field: "store.max_intraday_backfill_days", Message: "must be positive"})
	}

	return errors
}

func (c *Config) validateExchange() ValidationErrors {
	var errors ValidationErrors

	if c.Exchange.Name == "" {
		errors = append(errors, ValidationError{Field: "exchange.name", Message: "exchange name is required"})
	}
	if c.Exchange.FetchLimit <= 0 {
		errors = append(errors, ValidationError{Field: "exchange.fetch_limit", Message: "must be positive"})
	}
	if c.Exchange.RateLimitMS < 0 {
		errors = append(errors, ValidationError{Field: "exchange.rate_limit_ms", Message: "must be non-negative"})
	}

	return errors
}

func (c *Config) validateOptimizer() ValidationErrors {
	var errors ValidationErrors

	if c.Optimizer.CheckpointDir == "" {
		errors = append(errors, ValidationError{Field: "optimizer.checkpoint_dir", Message: "checkpoint directory is required"})
	}
	if c.Optimizer.ResultsDBPath == "" {
		errors = append(errors, ValidationError{Field: "optimizer.results_db_path", Message: "results database path is required"})
	}
	if c.Optimizer.BatchSize <= 0 {
		errors = append(errors, ValidationError{Field: "optimizer.batch_size", Message: "must be positive"})
	}
	if c.Optimizer.WorkerCount < 0 {
		errors = append(errors, ValidationError{Field: "optimizer.worker_count", Message: "must be non-negative (0 = auto)"})
	}
	if w := c.Optimizer.ScoreWeightSharpe + c.Optimizer.ScoreWeightReturn; w <= 0 {
		errors = append(errors, ValidationError{Field: "optimizer.score_weight_*", Message: "composite score weights must sum to a positive value"})
	}
	if c.Optimizer.TopKForRichMetrics <= 0 {
		errors = append(errors, ValidationError{Field: "optimizer.top_k_for_rich_metrics", Message: "must be positive"})
	}

	return errors
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
