package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeNetwork     ErrorType = "NETWORK"
	ErrTypeDecode      ErrorType = "DECODE_FAILURE"
	ErrTypeEmpty       ErrorType = "EMPTY_EXTRACTION"
	ErrTypePersistence ErrorType = "PERSISTENCE_FAILURE"
	ErrTypeStale       ErrorType = "STALE_SNAPSHOT"
	ErrTypeInvariant   ErrorType = "INVARIANT"
	ErrTypeBusy        ErrorType = "BUSY"
	ErrTypeValidation  ErrorType = "VALIDATION"
	ErrTypeNotFound    ErrorType = "NOT_FOUND"
	ErrTypeConfig      ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or ""
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err wraps an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// NewNetworkError creates a fetch/transport error
func NewNetworkError(message string, cause error) *AppError {
	return NewAppError(ErrTypeNetwork, message, cause)
}

// NewDecodeError reports a table that could not be obtained or decoded
func NewDecodeError(message string, cause error) *AppError {
	return NewAppError(ErrTypeDecode, message, cause)
}

// NewEmptyExtractionError reports a decoded table without a single valid row
func NewEmptyExtractionError(sourceID string, totalRows int) *AppError {
	return NewAppError(ErrTypeEmpty, "no instrument rows extracted", nil).
		WithContext("source_file", sourceID).
		WithContext("total_rows", totalRows)
}

// NewPersistenceError reports a snapshot read or write failure
func NewPersistenceError(message string, cause error) *AppError {
	return NewAppError(ErrTypePersistence, message, cause)
}

// NewStaleSnapshotError reports a snapshot dated other than the current day
func NewStaleSnapshotError(snapshotDate, today string) *AppError {
	return NewAppError(ErrTypeStale, fmt.Sprintf("snapshot dated %s, current date %s", snapshotDate, today), nil)
}

// NewInvariantError reports a broken store invariant
func NewInvariantError(message string) *AppError {
	return NewAppError(ErrTypeInvariant, message, nil)
}

// NewBusyError reports that a collection cycle is already running
func NewBusyError() *AppError {
	return NewAppError(ErrTypeBusy, "collection already in progress", nil)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
