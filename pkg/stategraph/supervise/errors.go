package supervise

import (
	"errors"
	"fmt"
	"time"
)

// RetryError is returned by a Retry node whose attempts are exhausted or
// whose error was not retryable.
type RetryError struct {
	// Err is the error of the last attempt.
	Err error

	// Attempts is the number of attempts made.
	Attempts int

	// Duration is the total time spent, including backoff.
	Duration time.Duration
}

// Error implements the error interface.
func (e *RetryError) Error() string {
	return fmt.Sprintf("%s (attempts: %d)", e.Err, e.Attempts)
}

// Unwrap returns the underlying error.
func (e *RetryError) Unwrap() error {
	return e.Err
}

// permanentError marks an error that retrying will not fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Retry gives up immediately.
// It returns nil for a nil err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or any error it wraps, was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
