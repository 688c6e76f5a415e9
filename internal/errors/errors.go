package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// Application exit codes define the standard exit statuses for the application.
// These codes are used to signal the outcome of the program execution to the OS.
const (
	ExitSuccess          = 0 // Indicates successful execution (including target exit and signal stop).
	ExitErrorGeneric     = 1 // Indicates a generic error.
	ExitErrorTarget      = 2 // Indicates the target process could not be attached.
	ExitErrorPersistence = 3 // Indicates the sample log could not be written.
	ExitErrorConfig      = 4 // Indicates a configuration error.
	ExitErrorMeasurement = 5 // Indicates an unexpected OS query failure.
)

// ConfigError represents a user configuration error, such as invalid flags or
// values. It indicates that the application cannot proceed due to incorrect user input.
type ConfigError struct {
	// Message explains the specific configuration error.
	Message string
}

// Error returns the error message for a ConfigError.
func (e ConfigError) Error() string { return e.Message }

// NewConfigError creates a new ConfigError with a formatted message.
//
// Parameters:
//   - format: A format string (see fmt.Sprintf).
//   - a: Arguments to be formatted into the string.
//
// Returns:
//   - error: A new ConfigError instance containing the formatted message.
func NewConfigError(format string, a ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

// ValidationError represents an input validation failure. It identifies which
// field failed validation and provides a human-readable explanation.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string
	// Message explains the validation failure.
	Message string
}

// Error returns a formatted message describing the validation failure.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for %q: %s", e.Field, e.Message)
}

// TargetNotFoundError reports that a pid does not name a running process at
// attach time. It is fatal to monitor construction.
type TargetNotFoundError struct {
	// PID is the process identifier that could not be resolved.
	PID int
	// Cause is the underlying OS error, if any.
	Cause error
}

// Error returns a formatted message describing the missing target.
func (e TargetNotFoundError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("process %d not found", e.PID)
	}
	return fmt.Sprintf("process %d not found: %v", e.PID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e TargetNotFoundError) Unwrap() error { return e.Cause }

// TargetAccessDeniedError reports that a process exists but cannot be
// queried with the current privileges. It is fatal to monitor construction.
type TargetAccessDeniedError struct {
	// PID is the process identifier that could not be queried.
	PID int
	// Cause is the underlying permission error.
	Cause error
}

// Error returns a formatted message describing the denied access.
func (e TargetAccessDeniedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("access to process %d denied", e.PID)
	}
	return fmt.Sprintf("access to process %d denied: %v", e.PID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e TargetAccessDeniedError) Unwrap() error { return e.Cause }

// TargetExitedError reports that a previously attached process vanished.
// The sampling loop treats it as an expected end of session, not a failure.
type TargetExitedError struct {
	// PID is the process identifier of the exited target.
	PID int
	// Cause is the OS error that revealed the exit, if any.
	Cause error
}

// Error returns a formatted message describing the exit.
func (e TargetExitedError) Error() string {
	return fmt.Sprintf("process %d exited", e.PID)
}

// Unwrap returns the underlying cause.
func (e TargetExitedError) Unwrap() error { return e.Cause }

// PersistenceError reports that a sample could not be written to its
// destination. It ends the monitoring session.
type PersistenceError struct {
	// Path is the destination file.
	Path string
	// Op names the failed step ("open", "write", "sync", "close", ...).
	Op string
	// Cause is the underlying I/O error.
	Cause error
}

// Error returns a formatted message describing the failed write.
func (e PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %s: %v", e.Path, e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e PersistenceError) Unwrap() error { return e.Cause }

// MeasurementError reports an unexpected failure while querying the target
// process. It ends the monitoring session.
type MeasurementError struct {
	// PID is the process being measured.
	PID int
	// Cause is the underlying OS query error.
	Cause error
}

// Error returns a formatted message describing the failed measurement.
func (e MeasurementError) Error() string {
	return fmt.Sprintf("measure process %d: %v", e.PID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e MeasurementError) Unwrap() error { return e.Cause }

// WrapError wraps an error with additional context using fmt.Errorf and %w.
// This allows the wrapped error to be unwrapped with errors.Unwrap() and
// checked with errors.Is() and errors.As().
//
// Parameters:
//   - err: The error to wrap.
//   - format: A format string for the context message.
//   - args: Arguments for the format string.
//
// Returns:
//   - error: The wrapped error, or nil if err is nil.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsContextError checks if the error is a context cancellation or deadline exceeded error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsTargetExited reports whether err signals that the monitored process is gone.
func IsTargetExited(err error) bool {
	var exited TargetExitedError
	return errors.As(err, &exited)
}

// ExitCodeFor maps an error from the taxonomy above to a process exit code.
// A nil error, a target exit and a context cancellation all map to ExitSuccess.
func ExitCodeFor(err error) int {
	if err == nil || IsTargetExited(err) || IsContextError(err) {
		return ExitSuccess
	}

	var (
		notFound    TargetNotFoundError
		denied      TargetAccessDeniedError
		persistence PersistenceError
		measurement MeasurementError
		config      ConfigError
		validation  ValidationError
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &denied):
		return ExitErrorTarget
	case errors.As(err, &persistence):
		return ExitErrorPersistence
	case errors.As(err, &measurement):
		return ExitErrorMeasurement
	case errors.As(err, &config), errors.As(err, &validation):
		return ExitErrorConfig
	default:
		return ExitErrorGeneric
	}
}
