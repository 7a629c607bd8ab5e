// Package metadata defines the File record, typed query predicates and the
// Store interface implemented by the metadata backends.
package metadata

import (
	"context"
)

// Store is a keyed record store for File entities.
//
// Records are looked up by ID and filtered with Query predicates. Backends
// must return *StoreError values for business errors (ErrNotFound on a missing
// id, ErrAlreadyExists on a duplicate id, ErrInvalidArgument on a malformed
// query) and must be safe for concurrent use.
//
// Stores hand out copies: mutating a returned *File never affects stored data.
type Store interface {
	// Get returns the record with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*File, error)

	// Create inserts a new record. f.ID must be set.
	Create(ctx context.Context, f *File) error

	// CreateMany inserts several records. Either all are created or none.
	CreateMany(ctx context.Context, files []*File) error

	// Update applies patch to the record with the given id, or returns ErrNotFound.
	Update(ctx context.Context, id string, patch Patch) error

	// UpdateMany applies patch to every record matching q and returns how many changed.
	UpdateMany(ctx context.Context, q Query, patch Patch) (int, error)

	// Delete removes the record with the given id, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// DeleteMany removes every record matching q and returns how many were removed.
	DeleteMany(ctx context.Context, q Query) (int, error)

	// GetAll returns every record matching q.
	GetAll(ctx context.Context, q Query) ([]*File, error)

	// Cursor returns a lazy sequence over the records matching q.
	// Each call starts a fresh iteration. The cursor must be closed.
	Cursor(ctx context.Context, q Query) (Cursor, error)

	// Close releases backend resources.
	Close() error
}

// Cursor iterates over query results.
//
//	cur, err := store.Cursor(ctx, q)
//	if err != nil { ... }
//	defer cur.Close()
//	for cur.Next(ctx) {
//	    f := cur.File()
//	}
//	if err := cur.Err(); err != nil { ... }
type Cursor interface {
	Next(ctx context.Context) bool
	File() *File
	Err() error
	Close() error
}

// Transactional is implemented by stores that can run several operations
// atomically. fn receives a Store bound to the transaction; the transaction
// commits when fn returns nil and rolls back otherwise. A lost write conflict
// surfaces as ErrTxConflict.
type Transactional interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// SliceCursor is a Cursor over an in-memory result set.
type SliceCursor struct {
	files []*File
	pos   int
	err   error
}

// NewSliceCursor returns a cursor over files.
func NewSliceCursor(files []*File) *SliceCursor {
	return &SliceCursor{files: files, pos: -1}
}

func (c *SliceCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos+1 >= len(c.files) {
		return false
	}
	c.pos++
	return true
}

func (c *SliceCursor) File() *File {
	if c.pos < 0 || c.pos >= len(c.files) {
		return nil
	}
	return c.files[c.pos]
}

func (c *SliceCursor) Err() error {
	return c.err
}

func (c *SliceCursor) Close() error {
	c.files = nil
	return nil
}

// Collect drains a cursor into a slice and closes it.
func Collect(ctx context.Context, cur Cursor) ([]*File, error) {
	defer func() { _ = cur.Close() }()

	var out []*File
	for cur.Next(ctx) {
		out = append(out, cur.File())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
