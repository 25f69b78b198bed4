package cloud

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound        = errors.New("profile not found")
	ErrVersionNotFound = errors.New("profile version not found")
	ErrAlreadyExists   = errors.New("profile already exists")
	ErrInvalidProfile  = errors.New("invalid profile data")
	ErrUnauthorized    = errors.New("unauthorized")
)

// APIError is a non-2xx response from the REST gateway
type APIError struct {
	StatusCode int
	Message    string
}

// Error formats the status code and the server message
func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is match API errors against the package sentinels
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrAlreadyExists:
		return e.StatusCode == http.StatusConflict
	case ErrInvalidProfile:
		return e.StatusCode == http.StatusBadRequest
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// statusFor maps store errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrVersionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidProfile):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return http.StatusInternalServerError
}
