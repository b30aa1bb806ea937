// Package errors provides generic, component-agnostic error helpers used
// across the pipeline's supporting infrastructure (config, storage,
// network clients). The stage-specific error taxonomy of §7 (LLMUnavailable,
// DependencyError, ...) lives in pkg/pipeline/pipelineerr; this package is
// the lower-level "failed to X because Y" building block that taxonomy is
// built on top of.
package errors

import (
	"fmt"
	"strings"
)

// OperationError describes a failed operation with optional context about
// which component and resource were involved.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to %s", e.Operation)
	if e.Component != "" {
		fmt.Fprintf(&b, ", component: %s", e.Component)
	}
	if e.Resource != "" {
		fmt.Fprintf(&b, ", resource: %s", e.Resource)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ", cause: %s", e.Cause.Error())
	}
	return b.String()
}

// Unwrap exposes Cause for errors.Is/errors.As.
func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo builds a plain "failed to <action>[: cause]" error.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return &OperationError{Operation: action}
	}
	return fmt.Errorf("failed to %s: %w", action, cause)
}

// FailedToWithDetails builds an OperationError carrying component/resource
// context in addition to the action and its cause.
func FailedToWithDetails(action, component, resource string, cause error) error {
	return &OperationError{
		Operation: action,
		Component: component,
		Resource:  resource,
		Cause:     cause,
	}
}

// Wrapf wraps err with an additional formatted message, returning nil if
// err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

// DatabaseError builds a standard error for a failed storage operation.
func DatabaseError(operation string, cause error) error {
	return &OperationError{Operation: operation, Component: "database", Cause: cause}
}

// NetworkError builds a standard error for a failed network call.
func NetworkError(operation, endpoint string, cause error) error {
	return &OperationError{Operation: operation, Component: "network", Resource: endpoint, Cause: cause}
}

// ValidationError builds a standard field-validation error.
func ValidationError(field, reason string) error {
	return fmt.Errorf("validation failed for field %s: %s", field, reason)
}

// ConfigurationError builds a standard configuration-value error.
func ConfigurationError(setting, reason string) error {
	return fmt.Errorf("configuration error for setting %s: %s", setting, reason)
}

// TimeoutError builds a standard timeout error.
func TimeoutError(operation, duration string) error {
	return fmt.Errorf("timeout while %s after %s", operation, duration)
}

// AuthenticationError builds a standard authentication-failure error.
func AuthenticationError(reason string) error {
	return fmt.Errorf("authentication failed: %s", reason)
}

// AuthorizationError builds a standard authorization-failure error.
func AuthorizationError(action, resource string) error {
	return fmt.Errorf("authorization failed: insufficient permissions to %s %s", action, resource)
}

// ParseError builds a standard parse-failure error.
func ParseError(what, format string, cause error) error {
	return FailedToWithDetails(fmt.Sprintf("parse %s as %s", what, format), "parser", "", cause)
}

// retryableSubstrings are substrings of transient, generally-retryable
// failure messages (timeouts, connection resets, unavailable dependencies).
var retryableSubstrings = []string{
	"timeout",
	"connection refused",
	"connection reset",
	"service unavailable",
	"temporarily unavailable",
	"too many requests",
	"deadline exceeded",
}

// IsRetryable reports whether err's message matches a known-transient
// failure pattern. This is a heuristic over the error text, not a type
// assertion, because many of the errors it inspects cross an HTTP or RPC
// boundary and arrive as plain strings.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range retryableSubstrings {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// Chain joins multiple non-nil errors into one, skipping nils. It returns
// nil if every argument is nil, the error itself if exactly one is
// non-nil, or a combined "multiple errors: ..." error otherwise.
func Chain(errs ...error) error {
	var nonNil []error
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		msgs := make([]string, len(nonNil))
		for i, e := range nonNil {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("multiple errors: %s", strings.Join(msgs, "; "))
	}
}
