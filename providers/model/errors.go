package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRetryExhausted is returned by the retry middleware when every attempt
// failed. It is joined with the last underlying error so callers can inspect
// the root cause with [errors.Is] / [errors.As].
var ErrRetryExhausted = errors.New("stategraph: all retry attempts exhausted")

// ErrInvalidTarget is returned when an extraction target is not a non-nil pointer.
var ErrInvalidTarget = errors.New("extraction target must be a non-nil pointer")

// StatusError carries the HTTP status returned by a model backend.
type StatusError struct {
	StatusCode int
	Err        error
}

func (statusError *StatusError) Error() string {
	return fmt.Sprintf("model backend returned status %d: %v", statusError.StatusCode, statusError.Err)
}

func (statusError *StatusError) Unwrap() error {
	return statusError.Err
}

// Temporary reports whether the status is worth retrying.
func (statusError *StatusError) Temporary() bool {
	switch statusError.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout, 529:
		return true
	}
	return false
}
