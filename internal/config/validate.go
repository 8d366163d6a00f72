package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	// A shell is required to run anything
	if strings.TrimSpace(cfg.Shell) == "" {
		errs = append(errs, ValidationError{
			Field:   "shell",
			Message: "must not be empty",
		})
	}

	// Output history must hold at least one line
	if cfg.MaxOutputLines < 1 {
		errs = append(errs, ValidationError{
			Field:   "max_output_lines",
			Message: "must be at least 1",
		})
	}

	// Durations may be zero but never negative
	durations := []struct {
		field string
		value time.Duration
	}{
		{"grace_period", cfg.GracePeriod},
		{"signal_settle", cfg.SignalSettle},
		{"drain_timeout", cfg.DrainTimeout},
		{"shutdown_timeout", cfg.ShutdownTimeout},
		{"startup_jitter", cfg.StartupJitter},
	}
	for _, d := range durations {
		if d.value < 0 {
			errs = append(errs, ValidationError{
				Field:   d.field,
				Message: fmt.Sprintf("must not be negative (got %v)", d.value),
			})
		}
	}

	// Startup rate of 0 launches everything at once
	if cfg.StartupRate < 0 {
		errs = append(errs, ValidationError{
			Field:   "startup_rate",
			Message: "must not be negative",
		})
	}

	// Every startup process needs a command; explicit ids must be unique
	seen := make(map[string]int)
	for i, spec := range cfg.Launch {
		field := fmt.Sprintf("launch[%d]", i)
		if strings.TrimSpace(spec.Command) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".command",
				Message: "must not be empty",
			})
		}
		if spec.MaxOutputLines < 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".max_output_lines",
				Message: "must not be negative",
			})
		}
		if spec.ID == "" {
			continue
		}
		if prev, ok := seen[spec.ID]; ok {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("duplicates launch[%d] (%q)", prev, spec.ID),
			})
			continue
		}
		seen[spec.ID] = i
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	// Log level must be valid
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be one of: debug, info, warn, error (got %q)", cfg.LogLevel),
		})
	}

	// At least one way to drive the supervisor
	if cfg.ListenAddr == "" && !cfg.TUIEnabled && len(cfg.Launch) == 0 {
		errs = append(errs, ValidationError{
			Field:   "listen",
			Message: "API disabled with no dashboard and no startup processes; nothing to supervise",
		})
	}

	// Return combined errors
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
