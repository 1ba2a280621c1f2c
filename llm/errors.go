package llm

import (
	"errors"
	"fmt"
)

// Error classification for completion calls. The pipeline never retries, but
// callers still distinguish transient failures (network, 5xx, rate limits)
// from fatal ones (auth, bad request) for logging and fail-fast decisions.

// TransientError wraps an error that might succeed if the call were repeated.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }

// Unwrap returns the wrapped error.
func (e *TransientError) Unwrap() error { return e.err }

// NewTransientError wraps err as transient.
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError wraps an error that no amount of retrying would fix.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string { return e.err.Error() }

// Unwrap returns the wrapped error.
func (e *FatalError) Unwrap() error { return e.err }

// NewFatalError wraps err as fatal.
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient reports whether err is classified transient.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal reports whether err is classified fatal.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// APIError is a non-success response from the completion service, carrying
// the human-readable message the service reported. Providers fill Message
// from their error body shape, substituting "unknown API error" when the
// body carries none.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion API error (status %d): %s", e.StatusCode, e.Message)
}

// AsAPIError unwraps an APIError from err if present.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
