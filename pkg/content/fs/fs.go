// Package fs implements content.Store on the local filesystem.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/content"
)

// stagingPrefix names in-progress files. Keys cannot start with "." so
// staging files never collide with blobs.
const stagingPrefix = ".tmp-"

// FSContentStore implements content.Store using one file per blob.
//
// Blobs are sharded into subdirectories named after the first two characters
// of the key to keep directory sizes bounded:
//
//	<basePath>/ab/abcdef0123...
//	<basePath>/_a/_abcdef0123...   (staging key of an upload)
//
// Writes go to a staging file in the shard directory and are renamed into
// place after fsync, so readers never observe a partial blob.
//
// Thread Safety:
// rename(2) is atomic on POSIX filesystems; concurrent writers to the same
// key are last-write-wins.
type FSContentStore struct {
	basePath string
}

var (
	_ content.Store              = (*FSContentStore)(nil)
	_ content.Copier             = (*FSContentStore)(nil)
	_ content.GarbageCollectable = (*FSContentStore)(nil)
)

// FSContentStoreConfig configures the filesystem content store.
type FSContentStoreConfig struct {
	// Path is the root directory for blob files
	Path string `mapstructure:"path"`
}

// NewFSContentStore creates the base directory if needed and returns the store.
//
// Parameters:
//   - ctx: Context for cancellation (checked before touching the filesystem)
//   - basePath: Root directory for storing blob files
//
// Returns:
//   - *FSContentStore: Initialized store
//   - error: Returns error if directory creation fails or context is cancelled
func NewFSContentStore(ctx context.Context, basePath string) (*FSContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if basePath == "" {
		return nil, fmt.Errorf("filesystem content store: path is required")
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	logger.Info("Opened filesystem content store at %s", basePath)
	return &FSContentStore{basePath: basePath}, nil
}

func (r *FSContentStore) shardDir(key string) string {
	shard := key
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(r.basePath, shard)
}

func (r *FSContentStore) blobPath(key string) string {
	return filepath.Join(r.shardDir(key), key)
}

// Write streams r into a staging file and renames it over key.
func (r *FSContentStore) Write(ctx context.Context, key string, src io.Reader) (int64, error) {
	// ========================================================================
	// Step 1: Validate and prepare the shard directory
	// ========================================================================

	if err := content.ValidateKey(key); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	dir := r.shardDir(key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create shard directory: %w", err)
	}

	// ========================================================================
	// Step 2: Copy into a staging file
	// ========================================================================

	tmp, err := os.CreateTemp(dir, stagingPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to create staging file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, content.NewContextReader(ctx, src))
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", key, err)
	}

	// ========================================================================
	// Step 3: Publish atomically
	// ========================================================================

	if err := os.Rename(tmpPath, r.blobPath(key)); err != nil {
		_ = os.Remove(tmpPath)
		committed = true
		return 0, fmt.Errorf("failed to publish %s: %w", key, err)
	}
	committed = true

	return n, nil
}

func (r *FSContentStore) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := content.ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(r.blobPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("content %s: %w", key, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to open content: %w", err)
	}
	return file, nil
}

// Delete removes the blob file. A missing file counts as success.
func (r *FSContentStore) Delete(ctx context.Context, key string) error {
	if err := content.ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(r.blobPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

func (r *FSContentStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := content.ValidateKey(key); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(r.blobPath(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat content: %w", err)
}

// Copy duplicates src into dst through a staging file.
func (r *FSContentStore) Copy(ctx context.Context, src, dst string) error {
	if err := content.ValidateKey(dst); err != nil {
		return err
	}

	rc, err := r.Read(ctx, src)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	if _, err := r.Write(ctx, dst, rc); err != nil {
		return err
	}
	return nil
}

// List walks every shard directory and returns the blob keys, sorted.
// Staging files of in-progress writes are skipped.
func (r *FSContentStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shards, err := os.ReadDir(r.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read content directory: %w", err)
	}

	var keys []string
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := os.ReadDir(filepath.Join(r.basePath, shard.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read shard %s: %w", shard.Name(), err)
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), stagingPrefix) {
				continue
			}
			keys = append(keys, entry.Name())
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// DeleteBatch deletes keys sequentially.
func (r *FSContentStore) DeleteBatch(ctx context.Context, keys []string) (map[string]error, error) {
	failures := make(map[string]error)

	for i, key := range keys {
		// Check context periodically (every 10 deletions)
		if i%10 == 0 {
			if err := ctx.Err(); err != nil {
				for j := i; j < len(keys); j++ {
					failures[keys[j]] = err
				}
				return failures, err
			}
		}

		if err := r.Delete(ctx, key); err != nil {
			failures[key] = err
		}
	}

	return failures, nil
}

// Close is a no-op; the store holds no open descriptors.
func (r *FSContentStore) Close() error {
	return nil
}
