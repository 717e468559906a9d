package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors that can occur during attribution calculations.
var (
	// ErrEmptyJourney indicates a journey with no touchpoints was supplied.
	ErrEmptyJourney = errors.New("journey contains no touchpoints")

	// ErrZeroWeightSum indicates a weight distribution with no mass to
	// normalize, e.g. when no touchpoint channel carries a configured weight.
	ErrZeroWeightSum = errors.New("weight distribution sums to zero")

	// ErrNoValidResults indicates a calculation succeeded but no result met
	// the confidence floor.
	ErrNoValidResults = errors.New("no results met the confidence floor")

	// ErrUnknownModelType indicates a model type outside the closed set.
	ErrUnknownModelType = errors.New("unknown model type")
)

// FieldError pinpoints a single invalid configuration or data field.
type FieldError struct {
	// Field is the dotted path of the offending field.
	Field string `json:"field"`

	// Message describes the violated invariant.
	Message string `json:"message"`
}

// String renders the field error as "field: message".
func (fe FieldError) String() string { return fe.Field + ": " + fe.Message }

// ConfigurationError reports that a ModelConfiguration failed one or more
// invariants. It is always surfaced before any calculation starts, and the
// configuration is rejected as a whole. Retrying with the same input yields
// the same failure.
type ConfigurationError struct {
	// Errors lists every invariant violation found.
	Errors []FieldError
}

// NewConfigurationError creates an empty ConfigurationError ready to
// accumulate field errors.
func NewConfigurationError() *ConfigurationError {
	return &ConfigurationError{Errors: make([]FieldError, 0)}
}

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.String()
	}
	return fmt.Sprintf("invalid model configuration: %s", strings.Join(msgs, "; "))
}

// Add records a new field error.
func (e *ConfigurationError) Add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any invariant violation was recorded.
func (e *ConfigurationError) HasErrors() bool { return len(e.Errors) > 0 }

// ValidationError reports structurally invalid journey or touchpoint data:
// missing fields, duplicate ids, future timestamps, or an empty journey.
// It indicates a data-quality problem upstream, not a transient condition.
type ValidationError struct {
	// Entity names the entity that failed validation (e.g. "journey").
	Entity string

	// Errors lists the structural violations found.
	Errors []FieldError
}

// NewValidationError creates an empty ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{Entity: entity, Errors: make([]FieldError, 0)}
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.String()
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(msgs, "; "))
}

// Add records a new field error.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any structural violation was recorded.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// CalculationError reports that an otherwise valid configuration and journey
// combination produced a degenerate result, such as a zero-sum
// renormalization. The condition is deterministic given the same inputs, so
// it is never retried.
type CalculationError struct {
	// Model is the model type whose calculation degenerated.
	Model ModelType

	// Reason describes the degenerate condition.
	Reason string

	// Err is the underlying sentinel, if any.
	Err error
}

// Error implements the error interface for CalculationError.
func (e *CalculationError) Error() string {
	return fmt.Sprintf("calculation error: model=%s, reason=%s", e.Model, e.Reason)
}

// Unwrap returns the underlying error, supporting errors.Is matching.
func (e *CalculationError) Unwrap() error { return e.Err }

// NoValidResultsError reports that a calculation succeeded but filtering by
// the confidence floor emptied the result set. It is distinct from
// CalculationError because the computation itself did not fail; callers may
// retry with a lower floor or treat it as "insufficient data". Downstream
// consumers must never interpret it as "zero credit".
type NoValidResultsError struct {
	// Floor is the confidence floor the results were filtered against.
	Floor float64

	// Evaluated is the number of results produced before filtering.
	Evaluated int
}

// Error implements the error interface for NoValidResultsError.
func (e *NoValidResultsError) Error() string {
	return fmt.Sprintf("no valid results: %d results evaluated, none met confidence floor %.2f",
		e.Evaluated, e.Floor)
}

// Unwrap returns ErrNoValidResults so callers can match with errors.Is.
func (e *NoValidResultsError) Unwrap() error { return ErrNoValidResults }
