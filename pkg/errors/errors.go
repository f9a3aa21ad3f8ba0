package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies failures surfaced by the persistence layer and the
// services built on top of it. The table store gateway is the only place
// where store-native failures are turned into one of these kinds; everything
// above it switches on the kind, never on the store's own exception types.
type ErrorType string

const (
	// ErrorTypeNotFound marks the rare error-shaped absence. Point lookups
	// report absence as a nil entity, not as an error; this kind exists for
	// callers that require the entity to be present (e.g. permission checks).
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation carries field-level invariant violations as data.
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConcurrency marks a lost optimistic-concurrency race on
	// commit. The caller should reload the entity and retry.
	ErrorTypeConcurrency ErrorType = "CONCURRENCY"

	// ErrorTypeDuplicateKey marks a create that collided with an existing
	// partition/row key pair.
	ErrorTypeDuplicateKey ErrorType = "DUPLICATE_KEY"

	// ErrorTypeInvalidValueType marks a (de)serialization mismatch between
	// an entity field and its stored attribute. Non-recoverable.
	ErrorTypeInvalidValueType ErrorType = "INVALID_VALUE_TYPE"

	// ErrorTypeUnauthorized and ErrorTypeForbidden cover the request-scoped
	// principal checks done by the HTTP layer and services.
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"

	// ErrorTypeUnknownStore wraps any other store failure with the original
	// cause preserved for diagnostics.
	ErrorTypeUnknownStore ErrorType = "UNKNOWN_STORE"
)

// FieldError is one (field, message) pair of a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError is the application-wide error value. Validation errors carry the
// offending fields; store errors carry the wrapped cause.
type AppError struct {
	Type       ErrorType    `json:"type"`
	Message    string       `json:"message"`
	Fields     []FieldError `json:"fields,omitempty"`
	Cause      error        `json:"-"`
	HTTPStatus int          `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause wraps an underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// Constructor functions for the error kinds.

// NewNotFoundError creates a not found error for a named resource.
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

// NewValidationError creates a validation error carrying field diagnostics.
func NewValidationError(fields []FieldError) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    "entity failed validation",
		Fields:     fields,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewConcurrencyError creates an optimistic-concurrency conflict error.
func NewConcurrencyError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeConcurrency,
		Message:    fmt.Sprintf("%s was modified concurrently, reload and retry", resource),
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicateKeyError creates an already-exists error.
func NewDuplicateKeyError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeDuplicateKey,
		Message:    fmt.Sprintf("%s already exists", resource),
		HTTPStatus: http.StatusConflict,
	}
}

// NewInvalidValueTypeError creates a store type-mismatch error.
func NewInvalidValueTypeError(detail string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidValueType,
		Message:    detail,
		Cause:      err,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewUnauthorizedError creates an unauthorized error.
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbiddenError creates a forbidden error.
func NewForbiddenError(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return &AppError{
		Type:       ErrorTypeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewUnknownStoreError wraps an unclassified store failure.
func NewUnknownStoreError(operation string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeUnknownStore,
		Message:    fmt.Sprintf("store operation '%s' failed", operation),
		Cause:      err,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Helper functions.

// GetAppError extracts an AppError from an error chain.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific kind.
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsConcurrency checks if an error is a concurrency conflict.
func IsConcurrency(err error) bool {
	return IsType(err, ErrorTypeConcurrency)
}

// IsDuplicateKey checks if an error is a duplicate key error.
func IsDuplicateKey(err error) bool {
	return IsType(err, ErrorTypeDuplicateKey)
}

// IsForbidden checks if an error is a forbidden error.
func IsForbidden(err error) bool {
	return IsType(err, ErrorTypeForbidden)
}

// IsUnknownStore checks if an error is an unclassified store error.
func IsUnknownStore(err error) bool {
	return IsType(err, ErrorTypeUnknownStore)
}

// Wrap wraps an error with additional context, preserving its kind.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}
	return NewUnknownStoreError(message, err)
}
