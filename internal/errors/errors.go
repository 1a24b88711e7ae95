// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an AppError.
type ErrorType string

const (
	// General
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeTimeout    ErrorType = "timeout"

	// Generation pipeline
	ErrorTypeNetwork     ErrorType = "network_error"
	ErrorTypeParse       ErrorType = "parse_error"
	ErrorTypeEmptyResult ErrorType = "empty_result"
	ErrorTypeExport      ErrorType = "export_error"
)

// AppError is the application error carried across service boundaries.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // stable code for API clients
}

// Error implements error.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Recoverable reports whether the session can continue normally after the error.
// Every pipeline error is recoverable; the flag exists so callers need not list types.
func (e *AppError) Recoverable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeParse, ErrorTypeEmptyResult, ErrorTypeExport,
		ErrorTypeValidation, ErrorTypeNotFound, ErrorTypeConflict, ErrorTypeTimeout:
		return true
	}
	return false
}

// NewAppError creates an AppError.
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

// NewNetworkError reports a failed request or a non-success status from the generation service.
func NewNetworkError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNetwork, message, originalError)
}

// NewParseError reports a response matching none of the accepted shapes.
func NewParseError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeParse, message, originalError)
}

// NewEmptyResultError reports a response that parsed but held no usable fields.
func NewEmptyResultError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeEmptyResult, message, originalError)
}

// NewExportError reports a failed file sink hand-off.
func NewExportError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeExport, message, originalError)
}

// TypeOf returns the ErrorType of the first AppError in the chain, or "".
func TypeOf(err error) ErrorType {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type
	}
	return ""
}

func IsValidationError(err error) bool  { return TypeOf(err) == ErrorTypeValidation }
func IsNotFoundError(err error) bool    { return TypeOf(err) == ErrorTypeNotFound }
func IsConflictError(err error) bool    { return TypeOf(err) == ErrorTypeConflict }
func IsNetworkError(err error) bool     { return TypeOf(err) == ErrorTypeNetwork }
func IsParseError(err error) bool       { return TypeOf(err) == ErrorTypeParse }
func IsEmptyResultError(err error) bool { return TypeOf(err) == ErrorTypeEmptyResult }
func IsExportError(err error) bool      { return TypeOf(err) == ErrorTypeExport }

// generateErrorCode maps a type to its API code.
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeNetwork:
		return "GENERATION_NETWORK_ERROR"
	case ErrorTypeParse:
		return "GENERATION_PARSE_ERROR"
	case ErrorTypeEmptyResult:
		return "GENERATION_EMPTY_RESULT"
	case ErrorTypeExport:
		return "EXPORT_FAILED"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError wraps err with message, keeping the type of an existing AppError.
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
