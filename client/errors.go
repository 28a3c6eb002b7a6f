package sdk

import (
	"errors"
	"fmt"
	"net/http"
)

// Common SDK errors that clients can check for specific error handling.
var (
	// ErrInvalidConfig indicates the client configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid client configuration")

	// ErrNoBaseURLs indicates no operator URLs were provided.
	ErrNoBaseURLs = errors.New("no base URLs provided for operator")

	// ErrAllInstancesFailed indicates every operator instance was unreachable.
	ErrAllInstancesFailed = errors.New("all operator instances failed")

	// ErrUnauthorized indicates the admin token was missing or rejected.
	ErrUnauthorized = errors.New("unauthorized: invalid credentials")

	// ErrForbidden indicates an approval token was rejected.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrRateLimited indicates the request was rate limited by the server.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrServerError indicates an internal server error occurred.
	ErrServerError = errors.New("internal server error")

	// ErrBadRequest indicates the request was malformed or invalid.
	ErrBadRequest = errors.New("bad request")

	// ErrOutcomeUnknown indicates a task mutation may have reached the server
	// but no answer came back. It is not resent; check the task status first.
	ErrOutcomeUnknown = errors.New("request outcome unknown")

	// ErrConflict indicates the request conflicts with existing state.
	ErrConflict = errors.New("conflict with existing resource")

	// ErrMissingAuth indicates an admin call was made without an admin token.
	ErrMissingAuth = errors.New("missing authentication credentials")
)

// APIError is a non-2xx response from the operator. It unwraps to the
// sentinel for its status code.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string

	// RetryAfter is the Retry-After header in seconds on 429 responses
	RetryAfter int
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error %d (%s)", e.StatusCode, e.Code)
}

func (e *APIError) Unwrap() error {
	return sentinelForStatus(e.StatusCode)
}

// sentinelForStatus maps an HTTP status to its sentinel error.
func sentinelForStatus(status int) error {
	switch {
	case status == http.StatusBadRequest:
		return ErrBadRequest
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return ErrServerError
	}
	return nil
}
