package metadata

import (
	"errors"
	"fmt"
)

// StoreError represents a domain error from metadata store operations.
//
// These are business logic errors (record not found, duplicate id, bad query)
// as opposed to infrastructure errors, which backends wrap with ErrIOError.
// Callers inspect Code with errors.As or the Is* helpers.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// ID is the record id related to the error (if applicable)
	ID string

	// Err is the underlying backend error, if any
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := e.Message
	if e.ID != "" {
		msg += ": " + e.ID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying backend error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// ErrorCode represents the category of a store error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested record doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a record with the same id already exists
	ErrAlreadyExists

	// ErrInvalidArgument indicates invalid parameters were provided
	// Examples: unknown query field, wrong value type, nil record
	ErrInvalidArgument

	// ErrIOError indicates the backend failed to read or write
	ErrIOError

	// ErrTxConflict indicates a transaction lost a write conflict and may be retried
	ErrTxConflict

	// ErrNotSupported indicates the operation is not supported by the backend
	ErrNotSupported
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not found"
	case ErrAlreadyExists:
		return "already exists"
	case ErrInvalidArgument:
		return "invalid argument"
	case ErrIOError:
		return "i/o error"
	case ErrTxConflict:
		return "transaction conflict"
	case ErrNotSupported:
		return "not supported"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// NewNotFoundError returns the error backends use for a missing record.
func NewNotFoundError(id string) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: "file not found", ID: id}
}

// NewIOError wraps a backend failure.
func NewIOError(op string, err error) *StoreError {
	return &StoreError{Code: ErrIOError, Message: op + " failed", Err: err}
}

// CodeOf returns the ErrorCode carried by err and whether one was found.
func CodeOf(err error) (ErrorCode, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// IsNotFound reports whether err is a StoreError with code ErrNotFound.
func IsNotFound(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrNotFound
}

// IsConflict reports whether err is a retryable transaction conflict.
func IsConflict(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrTxConflict
}
