package content

import "errors"

// Sentinel errors shared by every Store implementation.
//
// Implementations wrap them with the key involved:
//
//	return fmt.Errorf("content %s: %w", key, content.ErrContentNotFound)
//
// Callers match with errors.Is.
var (
	// ErrContentNotFound indicates no blob exists under the requested key.
	ErrContentNotFound = errors.New("content not found")

	// ErrInvalidKey indicates a key rejected by ValidateKey.
	ErrInvalidKey = errors.New("invalid content key")

	// ErrNotSupported indicates the backend does not implement an optional
	// capability.
	ErrNotSupported = errors.New("operation not supported")
)
