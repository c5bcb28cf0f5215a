package casedock

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx answer from the Casedock API.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Code is the machine-readable error code from the response envelope,
	// e.g. "case_not_found". Empty when the server sent no envelope.
	Code string
	// Message is the human-readable message from the envelope, or the raw
	// body when the envelope was absent.
	Message string
	// RequestID is the X-Request-Id the failing request carried, for
	// correlation with server-side logs.
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("casedock: %s (%s, status %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("casedock: %s (status %d)", e.Message, e.StatusCode)
}

// IsNotFound reports whether the error is a 404 from the API.
func (e *APIError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// AsAPIError unwraps err to an *APIError if one is present.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
