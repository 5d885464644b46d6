package config

import (
	"errors"
	"fmt"
)

// ErrMissingRequiredField indicates a required environment variable was unset.
var ErrMissingRequiredField = errors.New("missing required configuration value")

// ValidationError wraps a single configuration field failure with enough
// context for a startup log line to point straight at the offending
// environment variable.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new configuration validation error.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}
