// Package errors provides the error taxonomy for librarian.
// Remote failures, stale state conflicts and configuration problems are
// typed so callers can branch with errors.Is / errors.As instead of
// matching message text.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// New, Is, As and Join are re-exported so callers only import one errors
// package.
var (
	New  = errors.New
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

// Common sentinel errors.
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates the remote service rate limited the request
	ErrRateLimited = errors.New("rate limited")

	// ErrTransient indicates a rate-limit or server-side failure that
	// persisted through every retry attempt.
	ErrTransient = errors.New("transient service error")

	// ErrRequestFailed indicates a non-success response from the remote service
	ErrRequestFailed = errors.New("request failed")

	// ErrConflict indicates remote state changed between read and write
	// (for example a name collision under the new parent).
	ErrConflict = errors.New("stale state conflict")

	// ErrNoContent indicates an empty response body where a payload was expected
	ErrNoContent = errors.New("no content")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// RequestFailedError is returned by the remote client for any non-success
// outcome. Snippet holds a bounded, single-line excerpt of the response body.
type RequestFailedError struct {
	Method     string
	Path       string
	StatusCode int // 0 when no response was received
	Snippet    string
	Attempts   int
	Err        error
}

// Error implements the error interface
func (e *RequestFailedError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Method, e.Path)
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	switch {
	case e.StatusCode != 0 && e.Snippet != "":
		return fmt.Sprintf("%s: %d %s", msg, e.StatusCode, e.Snippet)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %d", msg, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap implements errors.Unwrap
func (e *RequestFailedError) Unwrap() error {
	return e.Err
}

// Is maps the status code onto the sentinel taxonomy.
func (e *RequestFailedError) Is(target error) bool {
	switch target {
	case ErrRequestFailed:
		return true
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrTransient:
		return e.Retryable()
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict || e.StatusCode == http.StatusUnprocessableEntity
	}
	return false
}

// Retryable reports whether the status is one the client retries on.
func (e *RequestFailedError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// NewRequestFailedError creates a new RequestFailedError
func NewRequestFailedError(method, path string, statusCode int, snippet string) *RequestFailedError {
	return &RequestFailedError{
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
		Snippet:    snippet,
		Attempts:   1,
	}
}

// StaleStateError represents a write rejected because the remote state moved
// underneath the caller.
type StaleStateError struct {
	Operation string
	Resource  string
	ID        string
	Err       error
}

// Error implements the error interface
func (e *StaleStateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stale state during %s of %s %s: %v", e.Operation, e.Resource, e.ID, e.Err)
	}
	return fmt.Sprintf("stale state during %s of %s %s", e.Operation, e.Resource, e.ID)
}

// Unwrap implements errors.Unwrap
func (e *StaleStateError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *StaleStateError) Is(target error) bool {
	return target == ErrConflict
}

// NewStaleStateError creates a new StaleStateError
func NewStaleStateError(operation, resource, id string, err error) *StaleStateError {
	return &StaleStateError{Operation: operation, Resource: resource, ID: id, Err: err}
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", "html"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s parse error in %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{Format: format, File: file, Message: message, Err: err}
}

// IOError represents an error during local I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "open"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{Operation: operation, Path: path, Message: message, Err: err}
}

// ResourceError represents a failed operation on a library resource
type ResourceError struct {
	Operation string // "create", "move", "relocate", "delete", "fetch"
	Resource  string // "collection", "sub-collection", "document", "grouping"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ResourceError{Operation: operation, Resource: resource, ID: id, Message: message, Err: err}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTransient checks if an error is a transient service error
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsConflict checks if an error is a stale state conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsRequestFailed checks if an error came back from the remote service
func IsRequestFailed(err error) bool {
	return errors.Is(err, ErrRequestFailed)
}

// StatusCode extracts the HTTP status from a RequestFailedError chain, or 0.
func StatusCode(err error) int {
	var rf *RequestFailedError
	if errors.As(err, &rf) {
		return rf.StatusCode
	}
	return 0
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}
