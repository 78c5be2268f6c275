package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "tick.rate_hz")
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

const (
	maxRateHz    = 1000.0
	maxLogSizeMB = 1000
)

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateTick()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateCamera()...)
	errors = append(errors, c.validateTrace()...)
	errors = append(errors, c.validateSim()...)
	errors = append(errors, c.validateMonitor()...)

	return errors
}

func (c *Config) validateTick() []ValidationError {
	var errors []ValidationError

	if c.Tick.RateHz <= 0 || c.Tick.RateHz > maxRateHz {
		errors = append(errors, ValidationError{
			Field:   "tick.rate_hz",
			Value:   c.Tick.RateHz,
			Message: fmt.Sprintf("must be in (0, %g]", maxRateHz),
		})
	}
	if c.Tick.MaxTicks < 0 {
		errors = append(errors, ValidationError{
			Field:   "tick.max_ticks",
			Value:   c.Tick.MaxTicks,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	} else if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateCamera() []ValidationError {
	var errors []ValidationError

	if c.Camera.Width <= 0 {
		errors = append(errors, ValidationError{
			Field: "camera.width", Value: c.Camera.Width, Message: "must be positive",
		})
	}
	if c.Camera.Height <= 0 {
		errors = append(errors, ValidationError{
			Field: "camera.height", Value: c.Camera.Height, Message: "must be positive",
		})
	}
	if c.Camera.HorizontalFOVDeg <= 0 || c.Camera.HorizontalFOVDeg >= 180 {
		errors = append(errors, ValidationError{
			Field: "camera.horizontal_fov_deg", Value: c.Camera.HorizontalFOVDeg, Message: "must be in (0, 180)",
		})
	}
	if c.Camera.VerticalFOVDeg <= 0 || c.Camera.VerticalFOVDeg >= 180 {
		errors = append(errors, ValidationError{
			Field: "camera.vertical_fov_deg", Value: c.Camera.VerticalFOVDeg, Message: "must be in (0, 180)",
		})
	}

	return errors
}

func (c *Config) validateTrace() []ValidationError {
	var errors []ValidationError

	if c.Trace.Capacity <= 0 {
		errors = append(errors, ValidationError{
			Field:   "trace.capacity",
			Value:   c.Trace.Capacity,
			Message: "must be positive",
		})
	}

	errors = append(errors, validatePatterns("trace.include", c.Trace.Include)...)
	errors = append(errors, validatePatterns("trace.exclude", c.Trace.Exclude)...)

	return errors
}

func validatePatterns(field string, patterns []string) []ValidationError {
	var errors []ValidationError
	for i, p := range patterns {
		if _, err := glob.Compile(p); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Value:   p,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}
	return errors
}

func (c *Config) validateSim() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidScenarios(), c.Sim.Scenario) {
		errors = append(errors, ValidationError{
			Field:   "sim.scenario",
			Value:   c.Sim.Scenario,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidScenarios(), ", ")),
		})
	}
	if c.Sim.ScriptDurationMs < 0 {
		errors = append(errors, ValidationError{
			Field: "sim.script_duration_ms", Value: c.Sim.ScriptDurationMs, Message: "must be non-negative",
		})
	}
	if c.Sim.WalkStopDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field: "sim.walk_stop_delay_ms", Value: c.Sim.WalkStopDelayMs, Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateMonitor() []ValidationError {
	var errors []ValidationError

	if c.Monitor.RefreshMs <= 0 {
		errors = append(errors, ValidationError{
			Field: "monitor.refresh_ms", Value: c.Monitor.RefreshMs, Message: "must be positive",
		})
	}
	if c.Monitor.HistoryLines < 0 {
		errors = append(errors, ValidationError{
			Field: "monitor.history_lines", Value: c.Monitor.HistoryLines, Message: "must be non-negative",
		})
	}

	return errors
}
