package api

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the gateway answers 404.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable wraps connection-level failures (refused, timeout, reset).
	ErrUnavailable = errors.New("gateway unavailable")
)

// APIError is a non-2xx gateway response.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("gateway returned %d", e.Status)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Detail)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == 404
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == 429 || e.Status >= 500
}

// IsTransient reports whether err is a connection failure or a retryable
// gateway response.
func IsTransient(err error) bool {
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}
