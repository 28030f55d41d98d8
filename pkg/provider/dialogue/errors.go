package dialogue

import (
	"errors"
	"fmt"
)

// StatusError is an error carrying the backend's HTTP-style status code.
// Providers wrap transport-level failures in it so callers can distinguish
// retryable server-class errors from everything else.
type StatusError struct {
	// Code is the HTTP-style status code (e.g. 500, 503).
	Code int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("dialogue: status %d: %v", e.Code, e.Err)
}

// Unwrap returns the underlying error.
func (e *StatusError) Unwrap() error { return e.Err }

// IsServerError reports whether err is a StatusError with a 5xx code.
// Only these are worth an automatic retry; client-class errors (bad request,
// auth) will fail identically on a second attempt.
func IsServerError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 500
}
