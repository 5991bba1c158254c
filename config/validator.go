package config

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/unixpickle/dist-gd/logging"
	"github.com/unixpickle/dist-gd/pgd"
	"github.com/unixpickle/dist-gd/points"
)

// ValidationError represents a single invalid setting.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every invalid setting of a
// Config. It matches pgd.ErrConfiguration with errors.Is.
type ValidationErrors []ValidationError

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

func (e ValidationErrors) Is(target error) bool {
	return target == pgd.ErrConfiguration
}

// ValidInputFormats returns the accepted values of
// input_format.
func ValidInputFormats() []string {
	return []string{points.FormatText, points.FormatBinary}
}

// ValidNetworkKinds returns the accepted values of
// network.kind.
func ValidNetworkKinds() []string {
	return []string{NetworkOrdered, NetworkRandom}
}

// Validate checks the Config and returns every problem it
// finds.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.validateRun()...)
	errs = append(errs, c.validateNetwork()...)
	errs = append(errs, c.validateLogging()...)
	return errs
}

func (c *Config) validateRun() []ValidationError {
	var errs []ValidationError
	if c.Input == "" {
		errs = append(errs, ValidationError{
			Field:   "input",
			Value:   c.Input,
			Message: "an input file is required",
		})
	}
	if !slices.Contains(ValidInputFormats(), strings.ToLower(c.InputFormat)) {
		errs = append(errs, ValidationError{
			Field:   "input_format",
			Value:   c.InputFormat,
			Message: fmt.Sprintf("must be one of %v", ValidInputFormats()),
		})
	}
	if c.Workers < 1 {
		errs = append(errs, ValidationError{
			Field:   "workers",
			Value:   c.Workers,
			Message: "must be positive",
		})
	}
	if !(c.Convergence > 0) || math.IsInf(c.Convergence, 0) {
		errs = append(errs, ValidationError{
			Field:   "convergence",
			Value:   c.Convergence,
			Message: "must be a positive number",
		})
	}
	if c.Timeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "timeout",
			Value:   c.Timeout,
			Message: "must not be negative",
		})
	}
	if c.FlopTime < 0 {
		errs = append(errs, ValidationError{
			Field:   "flop_time",
			Value:   c.FlopTime,
			Message: "must not be negative",
		})
	}
	return errs
}

func (c *Config) validateNetwork() []ValidationError {
	var errs []ValidationError
	if !slices.Contains(ValidNetworkKinds(), c.Network.Kind) {
		errs = append(errs, ValidationError{
			Field:   "network.kind",
			Value:   c.Network.Kind,
			Message: fmt.Sprintf("must be one of %v", ValidNetworkKinds()),
		})
	}
	if c.Network.Kind == NetworkOrdered && !(c.Network.Rate > 0) {
		errs = append(errs, ValidationError{
			Field:   "network.rate",
			Value:   c.Network.Rate,
			Message: "must be positive",
		})
	}
	if c.Network.Latency < 0 {
		errs = append(errs, ValidationError{
			Field:   "network.latency",
			Value:   c.Network.Latency,
			Message: "must not be negative",
		})
	}
	return errs
}

func (c *Config) validateLogging() []ValidationError {
	var errs []ValidationError
	if !slices.Contains(logging.ValidLevels(), strings.ToUpper(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of %v", logging.ValidLevels()),
		})
	}
	return errs
}
