// Package memory implements content.Store in process memory.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/marmos91/dittofiles/pkg/content"
)

// MemoryContentStore implements content.Store using a map of byte slices.
//
// It is designed for tests and ephemeral deployments: data is lost when the
// process exits and every blob is held in RAM.
//
// Implemented Interfaces:
//   - content.Store
//   - content.Copier
//   - content.GarbageCollectable
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Blobs are written once
// and never mutated in place, so readers can share the stored slice.
type MemoryContentStore struct {
	// data stores blob bytes keyed by content key
	data map[string][]byte

	// mu protects data
	mu sync.RWMutex
}

var (
	_ content.Store              = (*MemoryContentStore)(nil)
	_ content.Copier             = (*MemoryContentStore)(nil)
	_ content.GarbageCollectable = (*MemoryContentStore)(nil)
)

// NewMemoryContentStore creates an empty in-memory content store.
func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{
		data: make(map[string][]byte),
	}
}

// Write buffers the whole stream before publishing it, so a failed read
// leaves any previous blob under key untouched.
func (s *MemoryContentStore) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	if err := content.ValidateKey(key); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, content.NewContextReader(ctx, r))
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", key, err)
	}

	s.mu.Lock()
	s.data[key] = buf.Bytes()
	s.mu.Unlock()

	return n, nil
}

// Read returns a reader over the stored bytes. Closing it is a no-op.
func (s *MemoryContentStore) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := content.ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, exists := s.data[key]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("content %s: %w", key, content.ErrContentNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryContentStore) Delete(ctx context.Context, key string) error {
	if err := content.ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryContentStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := content.ValidateKey(key); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	_, exists := s.data[key]
	s.mu.RUnlock()
	return exists, nil
}

// Copy shares the source slice with the destination; blobs are immutable.
func (s *MemoryContentStore) Copy(ctx context.Context, src, dst string) error {
	if err := content.ValidateKey(src); err != nil {
		return err
	}
	if err := content.ValidateKey(dst); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, exists := s.data[src]
	if !exists {
		return fmt.Errorf("content %s: %w", src, content.ErrContentNotFound)
	}
	s.data[dst] = data
	return nil
}

// List returns a sorted snapshot of every key.
func (s *MemoryContentStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys, nil
}

// DeleteBatch removes keys under a single write lock.
func (s *MemoryContentStore) DeleteBatch(ctx context.Context, keys []string) (map[string]error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	failures := make(map[string]error)
	for i, key := range keys {
		// Check context periodically (every 100 deletions)
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				for j := i; j < len(keys); j++ {
					failures[keys[j]] = err
				}
				return failures, err
			}
		}
		if err := content.ValidateKey(key); err != nil {
			failures[key] = err
			continue
		}
		delete(s.data, key)
	}
	return failures, nil
}

// Len returns the number of stored blobs.
func (s *MemoryContentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryContentStore) Close() error {
	return nil
}
