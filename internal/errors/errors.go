// Package errors defines the AppError type used by the pipeline's
// supporting services (config loading, storage, transport) to attach an
// HTTP-shaped status code and a safe, user-facing message to an internal
// failure, separate from the stage-level {kind, stage, cause_chain,
// elapsed_ms} taxonomy in pkg/pipeline/pipelineerr.
package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrorType is a closed classification of failure used to pick an HTTP
// status code and a safe external message.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
)

var statusCodes = map[ErrorType]int{
	ErrorTypeValidation: http.StatusBadRequest,
	ErrorTypeAuth:       http.StatusUnauthorized,
	ErrorTypeNotFound:   http.StatusNotFound,
	ErrorTypeConflict:   http.StatusConflict,
	ErrorTypeTimeout:    http.StatusRequestTimeout,
	ErrorTypeRateLimit:  http.StatusTooManyRequests,
	ErrorTypeDatabase:   http.StatusInternalServerError,
	ErrorTypeNetwork:    http.StatusInternalServerError,
	ErrorTypeInternal:   http.StatusInternalServerError,
}

// AppError is a structured application error: a type, a message meant for
// logs, optional extra details, and an optional wrapped cause.
type AppError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Details    string
	Cause      error
}

// New creates an AppError of the given type with no cause.
func New(errorType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errorType,
		Message:    message,
		StatusCode: statusCodes[errorType],
	}
}

// Wrap creates an AppError of the given type wrapping cause.
func Wrap(cause error, errorType ErrorType, message string) *AppError {
	err := New(errorType, message)
	err.Cause = cause
	return err
}

// Wrapf creates an AppError wrapping cause with a formatted message.
func Wrapf(cause error, errorType ErrorType, format string, args ...interface{}) *AppError {
	return Wrap(cause, errorType, fmt.Sprintf(format, args...))
}

// WithDetails sets Details in place and returns the same error for
// chaining.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithDetailsf sets formatted Details in place.
func (e *AppError) WithDetailsf(format string, args ...interface{}) *AppError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes Cause for errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewValidationError builds a validation AppError.
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message)
}

// NewDatabaseError builds a database AppError wrapping cause.
func NewDatabaseError(operation string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeDatabase, "database operation failed: %s", operation)
}

// NewNotFoundError builds a not-found AppError for the given resource kind.
func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource))
}

// NewAuthError builds an authentication AppError.
func NewAuthError(message string) *AppError {
	return New(ErrorTypeAuth, message)
}

// NewTimeoutError builds a timeout AppError for the given operation.
func NewTimeoutError(operation string) *AppError {
	return New(ErrorTypeTimeout, fmt.Sprintf("operation timed out: %s", operation))
}

// IsType reports whether err is an *AppError of the given type.
func IsType(err error, errorType ErrorType) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == errorType
}

// GetType returns err's ErrorType, or ErrorTypeInternal for non-AppError
// values.
func GetType(err error) ErrorType {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// GetStatusCode returns err's HTTP-shaped status code, or 500 for
// non-AppError values.
func GetStatusCode(err error) int {
	if appErr, ok := err.(*AppError); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// errorMessages holds the safe, externally-presentable message for each
// error type that shouldn't leak internal details.
type errorMessages struct {
	ResourceNotFound       string
	AuthenticationFailed   string
	OperationTimeout       string
	RateLimitExceeded      string
	ConcurrentModification string
}

// ErrorMessages is the fixed set of safe messages used by SafeErrorMessage.
var ErrorMessages = errorMessages{
	ResourceNotFound:       "The requested resource was not found",
	AuthenticationFailed:   "Authentication failed",
	OperationTimeout:       "The operation timed out",
	RateLimitExceeded:      "Rate limit exceeded, please try again later",
	ConcurrentModification: "The resource was modified concurrently, please retry",
}

// SafeErrorMessage returns a message safe to show outside the process:
// validation messages pass through verbatim (they describe caller input,
// not internals), every other AppError type maps to a fixed safe message,
// and non-AppError values get a fully generic message.
func SafeErrorMessage(err error) string {
	appErr, ok := err.(*AppError)
	if !ok {
		return "An unexpected error occurred"
	}

	switch appErr.Type {
	case ErrorTypeValidation:
		return appErr.Message
	case ErrorTypeNotFound:
		return ErrorMessages.ResourceNotFound
	case ErrorTypeAuth:
		return ErrorMessages.AuthenticationFailed
	case ErrorTypeTimeout:
		return ErrorMessages.OperationTimeout
	case ErrorTypeRateLimit:
		return ErrorMessages.RateLimitExceeded
	case ErrorTypeConflict:
		return ErrorMessages.ConcurrentModification
	default:
		return "An internal error occurred"
	}
}

// LogFields converts err into logrus.Fields suitable for structured
// logging, omitting the details/underlying-error keys when there's
// nothing to report.
func LogFields(err error) logrus.Fields {
	fields := logrus.Fields{"error": err.Error()}

	appErr, ok := err.(*AppError)
	if !ok {
		return fields
	}

	fields["error_type"] = string(appErr.Type)
	fields["status_code"] = appErr.StatusCode
	if appErr.Details != "" {
		fields["error_details"] = appErr.Details
	}
	if appErr.Cause != nil {
		fields["underlying_error"] = appErr.Cause.Error()
	}
	return fields
}

// Chain joins multiple non-nil errors with " -> ", skipping nils. It
// returns nil if every argument is nil and the bare error if exactly one
// is non-nil.
func Chain(errs ...error) error {
	var nonNil []string
	var only error
	count := 0
	for _, e := range errs {
		if e == nil {
			continue
		}
		count++
		only = e
		nonNil = append(nonNil, e.Error())
	}
	switch count {
	case 0:
		return nil
	case 1:
		return only
	default:
		return fmt.Errorf("multiple errors: %s", strings.Join(nonNil, " -> "))
	}
}
