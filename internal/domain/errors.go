// Package domain defines core types and errors for the MQL evaluation engine.
package domain

import (
	"errors"
	"fmt"
)

// ParseError indicates query text matched neither accepted shape, or an
// embedded document failed all decode attempts.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string { return e.Message }

// ExecutionError indicates a native call failed, or the shell process
// returned non-zero or produced unparseable output.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string { return e.Message }

// TimeoutError indicates a query execution exceeded its bounded wait.
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string { return e.Message }

// ComparisonError indicates field or stage extraction failed on a
// structurally valid but unanticipated document shape.
type ComparisonError struct {
	Message string
}

func (e *ComparisonError) Error() string { return e.Message }

// ErrParse creates a ParseError with a formatted message.
func ErrParse(format string, args ...interface{}) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...)}
}

// ErrExecution creates an ExecutionError with a formatted message.
func ErrExecution(format string, args ...interface{}) *ExecutionError {
	return &ExecutionError{Message: fmt.Sprintf(format, args...)}
}

// ErrTimeout creates a TimeoutError with a formatted message.
func ErrTimeout(format string, args ...interface{}) *TimeoutError {
	return &TimeoutError{Message: fmt.Sprintf(format, args...)}
}

// ErrComparison creates a ComparisonError with a formatted message.
func ErrComparison(format string, args ...interface{}) *ComparisonError {
	return &ComparisonError{Message: fmt.Sprintf(format, args...)}
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsParse reports whether err is (or wraps) a ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
