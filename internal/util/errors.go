// Package util provides utility functions and types for the API Gateway.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrNotFound.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., BadRequestError, UpstreamError). Each type
//     implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
//
// All custom error types must implement:
//
//	Error() string           – human-readable message
//	Unwrap() error           – if the type wraps another error
//	Is(target error) bool    – for errors.Is() compatibility
package util

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUpstreamUnavail = errors.New("upstream unavailable")
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrBodyTooLarge    = errors.New("request body too large")
)

// BadRequestError represents a caller-input failure: missing or invalid
// credentials, an unroutable path, or a service with no live instances.
// It always surfaces to the caller as a 400 response and is never retried.
type BadRequestError struct {
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *BadRequestError) Error() string {
	return e.Reason
}

// Unwrap returns the underlying error.
func (e *BadRequestError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *BadRequestError) Is(target error) bool {
	if target == ErrInvalidInput {
		return true
	}
	_, ok := target.(*BadRequestError)
	return ok || errors.Is(e.Cause, target)
}

// NewBadRequestError creates a new BadRequestError.
func NewBadRequestError(reason string) *BadRequestError {
	return &BadRequestError{Reason: reason}
}

// NewBadRequestErrorWithCause creates a new BadRequestError with a cause.
func NewBadRequestErrorWithCause(reason string, cause error) *BadRequestError {
	return &BadRequestError{Reason: reason, Cause: cause}
}

// RouteNotFoundError represents a path that matches no configured route prefix.
type RouteNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("Endpoint route not found: %s", e.Path)
}

// Is checks if the error matches the target.
func (e *RouteNotFoundError) Is(target error) bool {
	if target == ErrNotFound || target == ErrInvalidInput {
		return true
	}
	_, ok := target.(*RouteNotFoundError)
	return ok
}

// NewRouteNotFoundError creates a new RouteNotFoundError.
func NewRouteNotFoundError(path string) *RouteNotFoundError {
	return &RouteNotFoundError{Path: path}
}

// UpstreamError represents a transport-level failure reaching a resolved
// backend instance: connection refused, timeout, DNS failure. The backend
// never produced an HTTP status, so this is a hard failure distinct from
// caller-input errors.
type UpstreamError struct {
	Service string
	Cause   error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream %s unreachable: %v", e.Service, e.Cause)
	}
	return fmt.Sprintf("upstream %s unreachable", e.Service)
}

// Unwrap returns the underlying error.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *UpstreamError) Is(target error) bool {
	if target == ErrUpstreamUnavail {
		return true
	}
	_, ok := target.(*UpstreamError)
	return ok || errors.Is(e.Cause, target)
}

// NewUpstreamError creates a new UpstreamError.
func NewUpstreamError(service string, cause error) *UpstreamError {
	return &UpstreamError{Service: service, Cause: cause}
}

// ConfigError represents a configuration-related error.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsClientError returns true if the error is a client error (4xx).
func IsClientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInvalidInput) {
		return true
	}

	return errors.Is(err, ErrNotFound)
}

// IsServerError returns true if the error is a server error (5xx).
func IsServerError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrUpstreamUnavail)
}
