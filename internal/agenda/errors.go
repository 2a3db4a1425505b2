package agenda

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	// ErrRunInFlight is returned when a run or a state change is requested
	// while another run is still fetching or reducing.
	ErrRunInFlight = errors.New("an aggregation run is already in flight")

	// ErrSessionExpired is returned when a run ends the session.
	ErrSessionExpired = errors.New("session expired")
)

// ErrorKind tags a run-level failure.
type ErrorKind string

const (
	KindSessionExpired ErrorKind = "SESSION_EXPIRED"
	KindLoadError      ErrorKind = "LOAD_ERROR"
	KindAPIError       ErrorKind = "API_ERROR"
	KindAuthError      ErrorKind = "AUTH_ERROR"
)

// RunError is the last failure surfaced to observers.
type RunError struct {
	Kind      ErrorKind `json:"type"`
	Message   string    `json:"message"`
	Status    int       `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Err error `json:"-"`
}

// Error implements error.
func (e *RunError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError builds a RunError of kind from err, picking up an HTTP status
// when err carries one.
func NewRunError(kind ErrorKind, err error, at time.Time) *RunError {
	re := &RunError{Kind: kind, Timestamp: at, Err: err}
	if err != nil {
		re.Message = err.Error()
		re.Status = statusOf(err)
	}
	return re
}

var authFailurePattern = regexp.MustCompile(`(?i)\b(401|403)\b|unauthenticated|unauthorized|invalid credentials|token expired|session expired`)

// IsAuthFailure reports whether err looks like an authentication or session
// problem rather than a transient load failure. An HTTP status decides on its
// own; the message pattern only applies to the innermost cause of errors
// without one, so wrapping context such as calendar IDs never matches.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSessionExpired) {
		return true
	}
	if status := statusOf(err); status != 0 {
		return status == 401 || status == 403
	}
	return authFailurePattern.MatchString(rootCause(err).Error())
}

// rootCause follows the single-error Unwrap chain to its end.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// statusOf extracts an HTTP status from errors that expose StatusCode.
func statusOf(err error) int {
	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		return coded.StatusCode()
	}
	return 0
}
