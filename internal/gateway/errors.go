package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth is returned when the gateway rejects a login.
	ErrAuth = errors.New("login rejected")
	// ErrBadRequest is returned when the gateway reports a missing or invalid token (HTTP 400).
	ErrBadRequest = errors.New("missing or invalid token")
	// ErrUnauthorized is returned when the gateway rejects the token (HTTP 401).
	ErrUnauthorized = errors.New("token rejected")
	// ErrUnknown covers network failures, timeouts, malformed bodies and
	// unclassified status codes.
	ErrUnknown = errors.New("unknown gateway failure")
)

// SubmissionError is returned by timer mutations. Its message is the raw
// failure description and is shown to the user verbatim.
type SubmissionError struct {
	Op  string
	Err error
}

func (e *SubmissionError) Error() string {
	return e.Err.Error()
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// StatusError describes a non-2xx reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("Request failed with status code %d", e.StatusCode)
	}
	return fmt.Sprintf("Request failed with status code %d: %s", e.StatusCode, e.Body)
}
