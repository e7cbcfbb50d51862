package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "execution.max_concurrent")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateAPI()...)
	errors = append(errors, c.validateQuestions()...)
	errors = append(errors, c.validateExecution()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateTUI()...)

	return errors
}

// validateAPI validates the APIConfig
func (c *Config) validateAPI() []ValidationError {
	var errors []ValidationError

	u, err := url.Parse(c.API.BaseURL)
	if c.API.BaseURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "api.base_url",
			Value:   c.API.BaseURL,
			Message: "must be an absolute http(s) URL",
		})
	}

	if c.API.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "api.timeout",
			Value:   c.API.Timeout,
			Message: "must be positive",
		})
	}

	if c.API.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "api.rate_limit",
			Value:   c.API.RateLimit,
			Message: "must be non-negative (0 disables limiting)",
		})
	}

	if c.API.RateLimit > 0 && c.API.Burst < 1 {
		errors = append(errors, ValidationError{
			Field:   "api.burst",
			Value:   c.API.Burst,
			Message: "must be at least 1 when rate limiting is enabled",
		})
	}

	return errors
}

// validateQuestions validates the QuestionsConfig
func (c *Config) validateQuestions() []ValidationError {
	var errors []ValidationError
	q := c.Questions

	if q.Min < 1 {
		errors = append(errors, ValidationError{
			Field:   "questions.min",
			Value:   q.Min,
			Message: "must be at least 1",
		})
	}

	if q.Max < q.Min {
		errors = append(errors, ValidationError{
			Field:   "questions.max",
			Value:   q.Max,
			Message: fmt.Sprintf("must be >= questions.min (%d)", q.Min),
		})
	}

	if !slices.Contains(ValidRevealPolicies(), q.RevealPolicy) {
		errors = append(errors, ValidationError{
			Field:   "questions.reveal_policy",
			Value:   q.RevealPolicy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidRevealPolicies(), ", ")),
		})
	}

	delays := []struct {
		field string
		value time.Duration
	}{
		{"questions.initial_delay", q.InitialDelay},
		{"questions.batch_interval", q.BatchInterval},
		{"questions.step_interval", q.StepInterval},
		{"questions.final_delay", q.FinalDelay},
	}
	for _, d := range delays {
		if d.value < 0 {
			errors = append(errors, ValidationError{
				Field:   d.field,
				Value:   d.value,
				Message: "must be non-negative",
			})
		}
	}

	return errors
}

// validateExecution validates the ExecutionConfig
func (c *Config) validateExecution() []ValidationError {
	var errors []ValidationError
	e := c.Execution

	if e.MaxConcurrent < 1 || e.MaxConcurrent > MaxConcurrentLimit {
		errors = append(errors, ValidationError{
			Field:   "execution.max_concurrent",
			Value:   e.MaxConcurrent,
			Message: fmt.Sprintf("must be between 1 and %d", MaxConcurrentLimit),
		})
	}

	if e.StepDelayMin < 0 {
		errors = append(errors, ValidationError{
			Field:   "execution.step_delay_min",
			Value:   e.StepDelayMin,
			Message: "must be non-negative",
		})
	}

	if e.StepDelayMax < e.StepDelayMin {
		errors = append(errors, ValidationError{
			Field:   "execution.step_delay_max",
			Value:   e.StepDelayMax,
			Message: fmt.Sprintf("must be >= execution.step_delay_min (%s)", e.StepDelayMin),
		})
	}

	if e.CompletionDelay < 0 {
		errors = append(errors, ValidationError{
			Field:   "execution.completion_delay",
			Value:   e.CompletionDelay,
			Message: "must be non-negative",
		})
	}

	if e.BatchDelay < 0 {
		errors = append(errors, ValidationError{
			Field:   "execution.batch_delay",
			Value:   e.BatchDelay,
			Message: "must be non-negative",
		})
	}

	if e.StartupDelay < 0 {
		errors = append(errors, ValidationError{
			Field:   "execution.startup_delay",
			Value:   e.StartupDelay,
			Message: "must be non-negative",
		})
	}

	if e.PollInterval < 0 {
		errors = append(errors, ValidationError{
			Field:   "execution.poll_interval",
			Value:   e.PollInterval,
			Message: "must be non-negative (0 disables polling)",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

// validateTUI validates the TUIConfig
func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	if c.TUI.MaxLogLines < 10 {
		errors = append(errors, ValidationError{
			Field:   "tui.max_log_lines",
			Value:   c.TUI.MaxLogLines,
			Message: "must be at least 10",
		})
	}

	return errors
}
