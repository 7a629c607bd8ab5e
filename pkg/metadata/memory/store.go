// Package memory implements metadata.Store with in-memory maps.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/marmos91/dittofiles/pkg/metadata"
)

// MemoryMetadataStore implements metadata.Store using in-memory storage.
//
// It is suitable for tests, development and ephemeral deployments. Records are
// lost when the process exits.
//
// Thread Safety:
// All operations are protected by a single read-write mutex (mu). Queries take
// the read lock and mutations take the write lock.
//
// Storage Model:
//   - files: record id -> record. This is the primary storage.
//   - byHash: hash -> set of record ids. Keeps the reference-count and upload
//     queries (hash=H, status=...) from scanning every record.
//
// Every record carrying a non-empty hash is present in exactly one byHash set.
type MemoryMetadataStore struct {
	mu     sync.RWMutex
	files  map[string]*metadata.File
	byHash map[string]map[string]struct{}
	closed bool
}

// NewMemoryMetadataStore creates an empty store.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{
		files:  make(map[string]*metadata.File),
		byHash: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryMetadataStore) Get(ctx context.Context, id string) (*metadata.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[id]
	if !ok {
		return nil, metadata.NewNotFoundError(id)
	}
	return f.Clone(), nil
}

func (s *MemoryMetadataStore) Create(ctx context.Context, f *metadata.File) error {
	return s.CreateMany(ctx, []*metadata.File{f})
}

func (s *MemoryMetadataStore) CreateMany(ctx context.Context, files []*metadata.File) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch first so a failure leaves nothing behind
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if f == nil || f.ID == "" {
			return &metadata.StoreError{Code: metadata.ErrInvalidArgument, Message: "record id is required"}
		}
		if _, dup := seen[f.ID]; dup {
			return &metadata.StoreError{Code: metadata.ErrAlreadyExists, Message: "duplicate id in batch", ID: f.ID}
		}
		if _, exists := s.files[f.ID]; exists {
			return &metadata.StoreError{Code: metadata.ErrAlreadyExists, Message: "file already exists", ID: f.ID}
		}
		seen[f.ID] = struct{}{}
	}

	for _, f := range files {
		c := f.Clone()
		s.files[c.ID] = c
		s.indexLocked(c)
	}
	return nil
}

func (s *MemoryMetadataStore) Update(ctx context.Context, id string, patch metadata.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return metadata.NewNotFoundError(id)
	}
	s.applyLocked(f, patch)
	return nil
}

func (s *MemoryMetadataStore) UpdateMany(ctx context.Context, q metadata.Query, patch metadata.Patch) (int, error) {
	q, err := q.Normalize()
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.matchLocked(q)
	for _, f := range matched {
		s.applyLocked(f, patch)
	}
	return len(matched), nil
}

func (s *MemoryMetadataStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return metadata.NewNotFoundError(id)
	}
	s.unindexLocked(f)
	delete(s.files, id)
	return nil
}

func (s *MemoryMetadataStore) DeleteMany(ctx context.Context, q metadata.Query) (int, error) {
	q, err := q.Normalize()
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.matchLocked(q)
	for _, f := range matched {
		s.unindexLocked(f)
		delete(s.files, f.ID)
	}
	return len(matched), nil
}

func (s *MemoryMetadataStore) GetAll(ctx context.Context, q metadata.Query) ([]*metadata.File, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.matchLocked(q)
	out := make([]*metadata.File, len(matched))
	for i, f := range matched {
		out[i] = f.Clone()
	}
	return out, nil
}

// Cursor snapshots the matching records at call time.
func (s *MemoryMetadataStore) Cursor(ctx context.Context, q metadata.Query) (metadata.Cursor, error) {
	files, err := s.GetAll(ctx, q)
	if err != nil {
		return nil, err
	}
	return metadata.NewSliceCursor(files), nil
}

func (s *MemoryMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of stored records.
func (s *MemoryMetadataStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// matchLocked returns stored records matching q ordered by (Path, Name, ID).
// Caller must hold mu.
func (s *MemoryMetadataStore) matchLocked(q metadata.Query) []*metadata.File {
	var candidates []*metadata.File

	if v, ok := q.EqualityValue(metadata.FieldHash); ok && v.(string) != "" {
		for id := range s.byHash[v.(string)] {
			candidates = append(candidates, s.files[id])
		}
	} else {
		candidates = make([]*metadata.File, 0, len(s.files))
		for _, f := range s.files {
			candidates = append(candidates, f)
		}
	}

	out := candidates[:0]
	for _, f := range candidates {
		if q.Match(f) {
			out = append(out, f)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryMetadataStore) applyLocked(f *metadata.File, patch metadata.Patch) {
	s.unindexLocked(f)
	patch.Apply(f)
	s.indexLocked(f)
}

func (s *MemoryMetadataStore) indexLocked(f *metadata.File) {
	if f.Hash == "" {
		return
	}
	set, ok := s.byHash[f.Hash]
	if !ok {
		set = make(map[string]struct{})
		s.byHash[f.Hash] = set
	}
	set[f.ID] = struct{}{}
}

func (s *MemoryMetadataStore) unindexLocked(f *metadata.File) {
	if f.Hash == "" {
		return
	}
	set := s.byHash[f.Hash]
	delete(set, f.ID)
	if len(set) == 0 {
		delete(s.byHash, f.Hash)
	}
}
