// Package content defines the blob store used to hold file payloads.
//
// Blobs are immutable byte streams addressed by a string key. The files
// package stores each payload under its content hash and stages uploads
// under a temporary key (TempPrefix + hash) until the hash is verified.
//
// Backends:
//   - fs: one file per blob under a base directory
//   - memory: maps, for tests and ephemeral deployments
//   - s3: Amazon S3 or any S3-compatible endpoint
package content

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// TempPrefix marks staging keys written while an upload is still being verified.
const TempPrefix = "_"

// MaxKeyLength bounds key length for every backend.
const MaxKeyLength = 255

// Store is the blob store interface.
//
// Implementations must be safe for concurrent use. Concurrent writes to the
// same key are last-write-wins; callers that need stronger guarantees
// serialize above the store.
type Store interface {
	// Write stores everything read from r under key, replacing any existing
	// blob, and returns the number of bytes written. A failed or cancelled
	// write must not leave a partial blob visible under key.
	Write(ctx context.Context, key string, r io.Reader) (int64, error)

	// Read returns a reader for the blob. The caller must close it.
	// Returns ErrContentNotFound when the key does not exist.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a blob is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases backend resources.
	Close() error
}

// Copier is implemented by backends that can duplicate a blob without
// streaming it through the process (S3 CopyObject, filesystem copy).
type Copier interface {
	Copy(ctx context.Context, src, dst string) error
}

// GarbageCollectable is implemented by backends that can enumerate and
// bulk-delete blobs. The orphan collector requires it.
type GarbageCollectable interface {
	// List returns every key in the store, temp keys included.
	List(ctx context.Context) ([]string, error)

	// DeleteBatch removes keys on a best-effort basis. Individual failures
	// are returned in the map; the error is reserved for cancellation or a
	// failure that prevented the batch from running at all.
	DeleteBatch(ctx context.Context, keys []string) (map[string]error, error)
}

// TempKey returns the staging key for key.
func TempKey(key string) string {
	return TempPrefix + key
}

// IsTempKey reports whether key is a staging key.
func IsTempKey(key string) bool {
	return strings.HasPrefix(key, TempPrefix)
}

// ValidateKey checks that key is usable by every backend: 1 to MaxKeyLength
// characters from [A-Za-z0-9._-], not starting with ".".
func ValidateKey(key string) error {
	if key == "" || len(key) > MaxKeyLength || key[0] == '.' {
		return fmt.Errorf("key %q: %w", key, ErrInvalidKey)
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '-':
		default:
			return fmt.Errorf("key %q: %w", key, ErrInvalidKey)
		}
	}
	return nil
}

// Copy duplicates src to dst, using the backend's Copier when available and
// streaming through Read/Write otherwise.
func Copy(ctx context.Context, store Store, src, dst string) error {
	if c, ok := store.(Copier); ok {
		return c.Copy(ctx, src, dst)
	}

	rc, err := store.Read(ctx, src)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	if _, err := store.Write(ctx, dst, rc); err != nil {
		return err
	}
	return nil
}

// NewContextReader returns a reader that fails with ctx.Err() once ctx is
// done, so long copies into a backend stop on cancellation.
func NewContextReader(ctx context.Context, r io.Reader) io.Reader {
	return &contextReader{ctx: ctx, r: r}
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
