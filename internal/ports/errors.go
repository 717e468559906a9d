package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors surfaced by configuration loading.
var (
	// ErrConfigNotFound indicates that a requested configuration source
	// does not exist.
	ErrConfigNotFound = errors.New("configuration not found")
)

// ConfigError represents an error from configuration loading operations.
// It carries the source (file path or reader description) that failed.
type ConfigError struct {
	// Source identifies the configuration source involved in the failure.
	Source string

	// Err is the underlying error that caused the operation to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: source=%s, err=%v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(source string, err error) *ConfigError {
	return &ConfigError{Source: source, Err: err}
}
