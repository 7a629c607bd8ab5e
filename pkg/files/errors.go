package files

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/session"
)

var (
	// ErrNotFound is returned when the referenced record is absent or not
	// visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller lacks a required permission.
	ErrForbidden = session.ErrForbidden

	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("validation error")

	// ErrHashMismatch is wrapped by every *HashMismatchError.
	ErrHashMismatch = errors.New("hash mismatch")
)

// Validation messages with a fixed meaning.
const (
	MsgWrongHash     = "WRONG_HASH"
	MsgQuotaExceeded = "QUOTA_EXCEEDED"
	MsgPathConflict  = "PATH_CONFLICT"
	MsgStatusChange  = "STATUS_CHANGE"
	MsgEmptyBody     = "EMPTY_BODY"
)

// ValidationError reports a request body or parameter that failed checks.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// HashMismatchError reports an upload whose bytes do not hash to the claimed digest.
type HashMismatchError struct {
	Claimed  string
	Computed string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch: claimed %s, computed %s", e.Claimed, e.Computed)
}

func (e *HashMismatchError) Unwrap() error {
	return ErrHashMismatch
}

// mapStoreError translates backend errors into the controller's taxonomy.
// Errors without a known mapping are returned unchanged.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, content.ErrContentNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	code, ok := metadata.CodeOf(err)
	if !ok {
		return err
	}
	switch code {
	case metadata.ErrNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case metadata.ErrInvalidArgument:
		return &ValidationError{Message: err.Error()}
	default:
		return err
	}
}
