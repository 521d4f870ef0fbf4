package lrclib

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when LRCLIB has no record for a lookup.
var ErrNotFound = errors.New("lrclib: not found")

// Error represents a non-success response from the API.
type Error struct {
	StatusCode int    // HTTP status code
	Name       string // Error name from the response body, if any
	Message    string // Error message from the response body, if any
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("lrclib: %d %s: %s", e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("lrclib: unexpected status %d", e.StatusCode)
}

// Temporary returns true if the request should be retried.
//
// Rate limiting (429) and server errors (5xx) are considered temporary.
func (e *Error) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
