// Package errors provides the typed errors used across mirrorsync.
// Callers check them with errors.Is / errors.As instead of matching strings.
package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// New is errors.New, re-exported so callers only import one errors package.
var New = errors.New

// Is is errors.Is.
var Is = errors.Is

// As is errors.As.
var As = errors.As

// Sentinel errors.
var (
	// ErrNotFound indicates that a requested item was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAPIKeyRequired indicates that a registry credential is missing.
	ErrAPIKeyRequired = errors.New("API key required")

	// ErrAPIKeyInvalid indicates that a registry or bearer credential was rejected.
	ErrAPIKeyInvalid = errors.New("API key invalid")

	// ErrSourceUnavailable indicates that an external registry is temporarily unavailable.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrRateLimited indicates that a registry answered 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrFetch indicates that one of the three reads of a sync pass failed.
	ErrFetch = errors.New("fetch failed")

	// ErrWrite indicates that a single store write failed.
	ErrWrite = errors.New("write failed")

	// ErrSyncInProgress indicates that a pass for the same origin is already running.
	ErrSyncInProgress = errors.New("sync in progress")
)

// NotFoundError represents an error when an item is not found.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// APIError represents a non-success answer from an external registry.
type APIError struct {
	Source     string
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Source, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support.
func (e *APIError) Is(target error) bool {
	switch {
	case e.StatusCode == 429:
		return target == ErrRateLimited
	case e.StatusCode == 401 || e.StatusCode == 403:
		return target == ErrAPIKeyInvalid
	case e.StatusCode >= 500:
		return target == ErrSourceUnavailable
	}
	return false
}

// NewAPIError creates a new APIError.
func NewAPIError(source string, statusCode int, message string) *APIError {
	return &APIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// FetchError is returned when one of the reads a pass depends on fails.
// Stage is "source", "mirror" or "quarantine". A FetchError aborts the pass
// before any write is issued.
type FetchError struct {
	Origin string
	Stage  string
	Err    error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s records for %s: %v", e.Stage, e.Origin, e.Err)
}

// Unwrap implements errors.Unwrap.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

// NewFetchError creates a new FetchError.
func NewFetchError(origin, stage string, err error) *FetchError {
	return &FetchError{Origin: origin, Stage: stage, Err: err}
}

// WriteError describes one failed put or delete against the store.
type WriteError struct {
	Op    string // "add", "update", "delete", "quarantine", "release"
	Table string
	Key   string
	Err   error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %q in %s: %v", e.Op, e.Key, e.Table, e.Err)
}

// Unwrap implements errors.Unwrap.
func (e *WriteError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support.
func (e *WriteError) Is(target error) bool {
	return target == ErrWrite
}

// NewWriteError creates a new WriteError.
func NewWriteError(op, table, key string, err error) *WriteError {
	return &WriteError{Op: op, Table: table, Key: key, Err: err}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsAPIKeyError checks if an error is related to credentials.
func IsAPIKeyError(err error) bool {
	return errors.Is(err, ErrAPIKeyRequired) || errors.Is(err, ErrAPIKeyInvalid)
}

// IsRateLimited checks if an error is a rate limit error.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsSourceUnavailable checks if an error indicates registry unavailability.
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// IsFetchError checks if an error aborted a pass during its reads.
func IsFetchError(err error) bool {
	return errors.Is(err, ErrFetch)
}

// ParseError represents an error when parsing data formats.
type ParseError struct {
	Format  string // "json", "yaml"
	File    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IOError represents an error during I/O operations.
type IOError struct {
	Operation string // "read", "write", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *IOError) Unwrap() error {
	return e.Err
}

// ResourceError represents a failed store operation on a table.
type ResourceError struct {
	Operation string // "scan", "get", "put", "delete"
	Resource  string // table name
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// AuthenticationError represents an authentication/authorization error.
type AuthenticationError struct {
	Source  string
	Method  string // "bearer", "jwt"
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("authentication error for %s (%s): %s", e.Source, e.Method, e.Message)
	}
	return fmt.Sprintf("authentication error (%s): %s", e.Method, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAPIKeyRequired || target == ErrAPIKeyInvalid
}

// NewAuthenticationError creates a new AuthenticationError.
func NewAuthenticationError(source, method, message string, err error) *AuthenticationError {
	return &AuthenticationError{
		Source:  source,
		Method:  method,
		Message: message,
		Err:     err,
	}
}

// TimeoutError represents an operation that ran out of time.
type TimeoutError struct {
	Operation string
	Duration  string // empty when the deadline came from the caller
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Duration != "" {
		return fmt.Sprintf("operation %s timed out after %s: %s", e.Operation, e.Duration, e.Message)
	}
	return fmt.Sprintf("operation %s timed out: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// WrapTimeout wraps err as a TimeoutError when it was caused by an expired
// deadline, and returns it unchanged otherwise.
func WrapTimeout(operation string, d time.Duration, err error) error {
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	te := &TimeoutError{Operation: operation, Message: err.Error(), Err: err}
	if d > 0 {
		te.Duration = d.String()
	}
	return te
}

// WrapIO wraps an error as an IOError.
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

// WrapResource wraps an error as a ResourceError.
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return &ResourceError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   err.Error(),
		Err:       err,
	}
}

// WrapParse wraps an error as a ParseError.
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{
		Format:  format,
		File:    file,
		Message: err.Error(),
		Err:     err,
	}
}

// WrapAPI wraps an error as an APIError.
func WrapAPI(source string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    err.Error(),
		Err:        err,
	}
}
