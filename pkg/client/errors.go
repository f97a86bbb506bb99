package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during a request or backoff.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrDecode is returned when a response body is not the expected JSON document.
	ErrDecode = errors.New("decode response")
)

// StatusError represents a non-2xx response from the upstream API.
type StatusError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registry %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("registry %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is the kind of failure the caller should
// treat as "skip this item": retries ran out, the status was an error, or the
// body could not be decoded. Context cancellation is not transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrContextCancelled) {
		return false
	}
	var statusErr *StatusError
	return errors.Is(err, ErrRetryExhausted) || errors.Is(err, ErrDecode) || errors.As(err, &statusErr)
}

// retryableError marks a failed attempt as eligible for another try.
type retryableError struct {
	err   error
	class ErrorClass
	// after overrides the computed backoff when the server sent Retry-After.
	after durationHint
}

func (e *retryableError) Error() string { return e.err.Error() }

func (e *retryableError) Unwrap() error { return e.err }
