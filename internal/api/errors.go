package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a failed response converted to a Go error for callers outside
// the client, such as the CLI.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// AuthError represents a session that could not be established or renewed.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication error: %s", e.Reason)
}

// NetworkError is a request that produced no response.
type NetworkError struct {
	Detail string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s", e.Detail)
}

// ResultError returns nil for a successful result and a typed error otherwise:
// *NetworkError when no response arrived, *AuthError for an unauthorized
// outcome, *APIError for everything else.
func ResultError[T any](r Result[T]) error {
	if r.OK() {
		return nil
	}
	switch {
	case r.StatusCode == 0:
		return &NetworkError{Detail: r.Detail}
	case r.StatusCode == http.StatusUnauthorized:
		return &AuthError{Reason: r.Detail}
	default:
		return &APIError{StatusCode: r.StatusCode, Body: r.Detail}
	}
}

// IsAuthError checks if the error is an authentication error.
func IsAuthError(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

// IsNetworkError checks if the error is a missing-response error.
func IsNetworkError(err error) bool {
	var e *NetworkError
	return errors.As(err, &e)
}

// IsNotFoundError checks if the error indicates a resource was not found.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound ||
			strings.Contains(strings.ToLower(apiErr.Body), "not found")
	}
	return false
}
