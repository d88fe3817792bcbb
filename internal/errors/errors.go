// Package errors provides a lightweight structured error type
// (InflightError) for category-based classification in the daemon, the
// snapshot store, and the CLI.
package errors

import (
	"fmt"
)

// ErrorCategory represents the category of an inflight error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// External system integration errors
	CategoryStorage ErrorCategory = "storage"
	CategoryNATS    ErrorCategory = "nats"

	// Metric registry state errors (counter missing, duplicate names)
	CategoryState ErrorCategory = "state"

	// Runtime and infrastructure errors
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryDaemon   ErrorCategory = "daemon"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// InflightError is a structured error with category, retryability, and context
type InflightError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for InflightError
type ContextFields map[string]any

// Error implements the error interface
func (e *InflightError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *InflightError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *InflightError) WithContext(key string, value any) *InflightError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new InflightError
func New(category ErrorCategory, severity ErrorSeverity, message string) *InflightError {
	return &InflightError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: false,
	}
}

// Wrap creates a new InflightError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *InflightError {
	return &InflightError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}

// WrapRetryable creates a new retryable InflightError that wraps an existing error
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *InflightError {
	return &InflightError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if ie, ok := err.(*InflightError); ok {
		return ie.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if ie, ok := err.(*InflightError); ok {
		return ie.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not an InflightError
func GetCategory(err error) ErrorCategory {
	if ie, ok := err.(*InflightError); ok {
		return ie.Category
	}
	return CategoryInternal
}

// ValidationError creates a new validation error
func ValidationError(message string) *InflightError {
	return &InflightError{
		Category:  CategoryValidation,
		Severity:  SeverityWarning,
		Message:   message,
		Retryable: false,
	}
}

// DaemonError creates a new daemon error (service unavailable)
func DaemonError(message string) *InflightError {
	return &InflightError{
		Category:  CategoryDaemon,
		Severity:  SeverityError,
		Message:   message,
		Retryable: false,
	}
}

// WrapError wraps an existing error with a new InflightError
func WrapError(err error, category ErrorCategory, message string) *InflightError {
	return &InflightError{
		Category:  category,
		Severity:  SeverityError,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}
