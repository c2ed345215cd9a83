package client

import (
	"fmt"
	"strings"
	"time"
)

// NetworkError is a connection-level failure: DNS, refused connection,
// reset, TLS.
type NetworkError struct {
	URL     string
	Message string
	Cause   error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %s", e.URL, e.Message)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// TimeoutError is returned when a call does not finish within the configured
// timeout
type TimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out after %s", e.URL, e.Timeout)
}

// APIError is a non-2xx answer from the platform. Errors and Warnings hold
// the validation messages extracted from the response body.
type APIError struct {
	URL        string
	StatusCode int
	Status     string
	Errors     []ValidationMessage
	Warnings   []ValidationMessage
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s returned %d %s", e.URL, e.StatusCode, e.Status)
	if len(e.Errors) == 0 {
		return msg
	}
	parts := make([]string, 0, len(e.Errors))
	for _, m := range e.Errors {
		parts = append(parts, m.String())
	}
	return msg + ": " + strings.Join(parts, "; ")
}

// Temporary reports whether the call may succeed when retried
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
