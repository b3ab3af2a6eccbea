package id

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	// Format errors
	ErrInvalidFormat     = errors.New("invalid identifier format")
	ErrTickRange         = errors.New("tick count exceeds 60 bits")
	ErrUnsupportedScheme = errors.New("unsupported encoding scheme")

	// Storage errors
	ErrNotFound           = errors.New("object not found")
	ErrAlreadyExists      = errors.New("object already exists")
	ErrConflict           = errors.New("concurrent modification detected")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrBackendUnavailable = errors.New("backend unavailable")

	// Node allocation errors
	ErrLockHeld      = errors.New("lock already held by another process")
	ErrNodeExhausted = errors.New("node address space exhausted")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ParseError reports text that could not be parsed as an identifier.
// It always matches ErrInvalidFormat with errors.Is.
type ParseError struct {
	Kind  string // "EUI48", "EUI64", "TimeID"
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s %q does not have the correct format", e.Kind, e.Input)
}

func (e *ParseError) Unwrap() error {
	return ErrInvalidFormat
}

// FormatError reports a byte that is not a hexadecimal digit.
type FormatError struct {
	Input  string
	Offset int
}

func (e *FormatError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("invalid hex string %q", e.Input)
	}
	return fmt.Sprintf("invalid hex digit %q at offset %d in %q", e.Input[e.Offset], e.Offset, e.Input)
}

func (e *FormatError) Unwrap() error {
	return ErrInvalidFormat
}

// ErrorWithContext adds additional context to errors for better debugging and logging
type ErrorWithContext struct {
	Err     error
	Context map[string]interface{}
}

func (e *ErrorWithContext) Error() string {
	if len(e.Context) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (context: %+v)", e.Err, e.Context)
}

func (e *ErrorWithContext) Unwrap() error {
	return e.Err
}

// WithContext adds context to an error
func WithContext(err error, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ErrorWithContext{
		Err:     err,
		Context: context,
	}
}

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is an optimistic locking conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsAlreadyExists checks if a conditional create found an existing object
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsInvalidFormat checks if an error was caused by malformed identifier text
func IsInvalidFormat(err error) bool {
	return errors.Is(err, ErrInvalidFormat)
}

// IsRetryable checks if an error is safe to retry
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrLockHeld)
}

// IsPermanent checks if an error is permanent (not retryable)
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrTickRange) ||
		errors.Is(err, ErrUnsupportedScheme) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrNodeExhausted)
}
