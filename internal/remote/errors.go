package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrOperationFailed matches every remote failure via errors.Is.
	ErrOperationFailed = errors.New("remote operation failed")
	// ErrNoToken is returned before any I/O when no bearer token is available.
	ErrNoToken = errors.New("no auth token available")
)

// NetworkError means no usable response was received. It is the only retryable kind.
type NetworkError struct {
	Op    string
	URL   string
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Op, e.URL, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

func (e *NetworkError) Is(target error) bool { return target == ErrOperationFailed }

// HTTPError is a response the server rejected.
type HTTPError struct {
	Op         string
	URL        string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: server returned %d: %s", e.Op, e.URL, e.StatusCode, e.Message)
}

func (e *HTTPError) Is(target error) bool { return target == ErrOperationFailed }

// MalformedResponseError is a successful status with a body that could not be understood.
type MalformedResponseError struct {
	Op      string
	URL     string
	Message string
	Cause   error
}

func (e *MalformedResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: malformed response: %s: %v", e.Op, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s: malformed response: %s", e.Op, e.URL, e.Message)
}

func (e *MalformedResponseError) Unwrap() error { return e.Cause }

func (e *MalformedResponseError) Is(target error) bool { return target == ErrOperationFailed }

// IsRetryable reports whether err may succeed when retried later.
func IsRetryable(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
