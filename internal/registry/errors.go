package registry

import (
	"errors"
	"fmt"
)

// RejectedRequestError is a 4xx answer from the registry. It is never retried.
type RejectedRequestError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *RejectedRequestError) Error() string {
	return fmt.Sprintf("%s %s rejected with status %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Body)
}

// TransientBackendError is a 5xx answer or a connection-level failure.
// StatusCode is zero when no response was received.
type TransientBackendError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransientBackendError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s failed: %v", e.Method, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Body)
}

func (e *TransientBackendError) Unwrap() error {
	return e.Err
}

// IsRejected reports whether err contains a RejectedRequestError.
func IsRejected(err error) bool {
	var rejected *RejectedRequestError
	return errors.As(err, &rejected)
}

// ResponseDetails extracts the backend status code and body from err, if the
// failure carried a response.
func ResponseDetails(err error) (int, string, bool) {
	var rejected *RejectedRequestError
	if errors.As(err, &rejected) {
		return rejected.StatusCode, rejected.Body, true
	}
	var transient *TransientBackendError
	if errors.As(err, &transient) && transient.StatusCode != 0 {
		return transient.StatusCode, transient.Body, true
	}
	return 0, "", false
}
