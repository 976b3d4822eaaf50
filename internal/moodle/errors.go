package moodle

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned before any remote call when the base URL,
// username or token is missing.
var ErrNotConfigured = errors.New("moodle connection settings not configured")

// TransportError wraps a failure to reach the remote host.
type TransportError struct {
	Function string
	Err      error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError reports a non-2xx status or a body that is not valid JSON.
type DecodeError struct {
	Function   string
	StatusCode int
	Body       string
	Err        error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid response from %s (HTTP %d): %v", e.Function, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("invalid response from %s (HTTP %d): %s", e.Function, e.StatusCode, e.Body)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// RemoteServiceError is the exception envelope returned by the webservice.
// Error returns the upstream message verbatim.
type RemoteServiceError struct {
	Function  string
	Exception string
	ErrorCode string
	Message   string
}

func (e *RemoteServiceError) Error() string {
	return e.Message
}
