// Package errors implements the application's error taxonomy:
// TransientIO, NotFound, Parse, Channel, and FatalConfig, carried as a single
// AppError type with severity and structured metadata rather than a grab bag
// of ad-hoc error values.
package errors

import (
	"fmt"
	"runtime"
	"time"
)

// Kind is one of the five error classes the system distinguishes.
type Kind string

const (
	KindTransientIO  Kind = "transient_io"
	KindNotFound     Kind = "not_found"
	KindParse        Kind = "parse"
	KindChannel      Kind = "channel"
	KindFatalConfig  Kind = "fatal_config"
)

// Severity levels for errors, carried as a structured-log field.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// AppError is a standardized application error carrying the failing
// component/operation, the error kind, and optional metadata.
type AppError struct {
	Kind       Kind
	Message    string
	Component  string
	Operation  string
	Cause      error
	StackTrace string
	Metadata   map[string]interface{}
	Timestamp  time.Time
	Severity   Severity
}

// New creates a standardized error of the given kind.
func New(kind Kind, component, operation, message string) *AppError {
	_, file, line, _ := runtime.Caller(1)

	return &AppError{
		Kind:       kind,
		Message:    message,
		Component:  component,
		Operation:  operation,
		StackTrace: fmt.Sprintf("%s:%d", file, line),
		Metadata:   make(map[string]interface{}),
		Timestamp:  time.Now(),
		Severity:   defaultSeverity(kind),
	}
}

func defaultSeverity(kind Kind) Severity {
	switch kind {
	case KindFatalConfig:
		return SeverityCritical
	case KindChannel:
		return SeverityHigh
	case KindTransientIO:
		return SeverityMedium
	case KindParse:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Component, e.Operation, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Kind, e.Message)
}

// Unwrap exposes Cause to errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Wrap sets another error as the cause.
func (e *AppError) Wrap(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithMetadata attaches a metadata key/value pair for structured logging.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithSeverity overrides the kind-derived default severity.
func (e *AppError) WithSeverity(severity Severity) *AppError {
	e.Severity = severity
	return e
}

// IsRecoverable reports whether the pipeline should keep running after this
// error (everything except FatalConfig and Channel).
func (e *AppError) IsRecoverable() bool {
	return e.Kind != KindFatalConfig && e.Kind != KindChannel
}

// ToMap converts the error to a map for structured logging via logrus.Fields.
func (e *AppError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_kind":      string(e.Kind),
		"error_message":   e.Message,
		"error_component": e.Component,
		"error_operation": e.Operation,
		"error_severity":  string(e.Severity),
		"error_timestamp": e.Timestamp,
	}

	if e.StackTrace != "" {
		result["error_stack_trace"] = e.StackTrace
	}
	if e.Cause != nil {
		result["error_cause"] = e.Cause.Error()
	}
	for k, v := range e.Metadata {
		result[fmt.Sprintf("error_meta_%s", k)] = v
	}

	return result
}

// Convenience constructors for the five taxonomy kinds.

func TransientIO(component, operation, message string) *AppError {
	return New(KindTransientIO, component, operation, message)
}

func NotFound(component, operation, message string) *AppError {
	return New(KindNotFound, component, operation, message)
}

func Parse(component, operation, message string) *AppError {
	return New(KindParse, component, operation, message)
}

func Channel(component, operation, message string) *AppError {
	return New(KindChannel, component, operation, message)
}

func FatalConfig(component, operation, message string) *AppError {
	return New(KindFatalConfig, component, operation, message)
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// AsAppError converts an error to AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	appErr, ok := err.(*AppError)
	return appErr, ok
}

// WrapError wraps a standard error into an AppError of the given kind.
func WrapError(err error, kind Kind, component, operation, message string) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return New(kind, component, operation, message).Wrap(err)
}
