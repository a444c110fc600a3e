// Package errs defines the error kinds surfaced by a ranking run. Callers match
// them with errors.Is; concrete errors wrap one of these sentinels.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigMissing indicates that a required setting (the API key) is absent.
	ErrConfigMissing = errors.New("config missing")
	// ErrUpstreamRequest indicates a transport failure or a non-2xx response from the API.
	ErrUpstreamRequest = errors.New("upstream request failed")
	// ErrMalformedResponse indicates a response body that is not JSON or lacks a required field.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrValidation indicates an invalid caller-supplied parameter.
	ErrValidation = errors.New("validation error")
)

// Validation returns an error wrapping ErrValidation.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Malformed returns an error wrapping ErrMalformedResponse. cause may be nil.
func Malformed(op string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrMalformedResponse, op)
	}
	return fmt.Errorf("%w: %s: %w", ErrMalformedResponse, op, cause)
}
