// Package files implements the file lifecycle controller: metadata for a
// per-user tree of files and folders on top of a content-addressed blob
// store that deduplicates identical payloads across users.
//
// Three invariants hold between the stores:
//   - a blob exists iff at least one record references its hash with status DEFAULT
//   - every ancestor folder of a record exists as a FOLDER record of the same owner
//   - deleting a folder removes its whole subtree, leaving no orphaned records or blobs
package files

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/internal/ratelimiter"
	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/marmos91/dittofiles/pkg/hash"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/session"
	"github.com/oxtoacart/bpool"
)

const (
	// DefaultBufferSize is the size of each upload copy buffer.
	DefaultBufferSize = 256 * 1024

	// DefaultBufferPoolSize is how many idle copy buffers are retained.
	DefaultBufferPoolSize = 32

	// DefaultCleanupTimeout bounds the removal of a temporary upload blob.
	DefaultCleanupTimeout = 30 * time.Second
)

// Config wires a Controller to its collaborators.
type Config struct {
	// Metadata stores the File records (required)
	Metadata metadata.Store

	// Content stores the blobs keyed by hash (required)
	Content content.Store

	// Hasher computes and validates content digests (default: SHA-256)
	Hasher hash.Hasher

	// QuotaBytes caps the total size of each owner's files (0 = unlimited)
	QuotaBytes int64

	// UploadLimiter throttles upload admission (nil = unlimited)
	UploadLimiter *ratelimiter.Limiter

	// BufferSize and BufferPoolSize size the upload copy buffer pool
	BufferSize     int
	BufferPoolSize int

	// CleanupTimeout bounds the deferred temp blob removal (default: 30s)
	CleanupTimeout time.Duration

	// Metrics receives operation metrics (optional)
	Metrics metrics.FilesMetrics
}

// Controller implements the file operations. It is safe for concurrent use.
type Controller struct {
	store    metadata.Store
	blobs    content.Store
	hasher   hash.Hasher
	validate *validator.Validate

	quota          int64
	limiter        *ratelimiter.Limiter
	pool           *bpool.BytePool
	cleanupTimeout time.Duration
	metrics        metrics.FilesMetrics

	hashLocks   *keyedMutex
	folderLocks *keyedMutex
	uploads     *inflight
}

// NewController validates cfg and returns a ready Controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Metadata == nil {
		return nil, errors.New("files: metadata store is required")
	}
	if cfg.Content == nil {
		return nil, errors.New("files: content store is required")
	}
	if cfg.QuotaBytes < 0 {
		return nil, fmt.Errorf("files: quota must not be negative, got %d", cfg.QuotaBytes)
	}

	h := cfg.Hasher
	if h == nil {
		h = hash.MustNew(hash.Default)
	}
	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	poolSize := cfg.BufferPoolSize
	if poolSize <= 0 {
		poolSize = DefaultBufferPoolSize
	}
	cleanup := cfg.CleanupTimeout
	if cleanup <= 0 {
		cleanup = DefaultCleanupTimeout
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewNoopFilesMetrics()
	}

	return &Controller{
		store:          cfg.Metadata,
		blobs:          cfg.Content,
		hasher:         h,
		validate:       newValidator(h),
		quota:          cfg.QuotaBytes,
		limiter:        cfg.UploadLimiter,
		pool:           bpool.NewBytePool(poolSize, bufSize),
		cleanupTimeout: cleanup,
		metrics:        m,
		hashLocks:      newKeyedMutex(),
		folderLocks:    newKeyedMutex(),
		uploads:        newInflight(),
	}, nil
}

// Hasher returns the digest algorithm used for uploads.
func (c *Controller) Hasher() hash.Hasher {
	return c.hasher
}

// LockHash serializes the caller against every controller operation that
// touches the blob stored under hash. The returned function releases it.
func (c *Controller) LockHash(hash string) (unlock func()) {
	return c.hashLocks.Lock(hash)
}

// IsUploading reports whether an upload claiming hash is in progress.
func (c *Controller) IsUploading(hash string) bool {
	return c.uploads.has(hash)
}

// Create adds a record described by req.Body and returns it.
//
// The status is derived from the hash: FOLDER without one, DEFAULT when the
// blob is already uploaded by some record, NOT_UPLOADED otherwise. Missing
// ancestor folders are materialized first. Creating a folder that already
// exists returns the existing record.
func (c *Controller) Create(ctx context.Context, req Request) (f *metadata.File, err error) {
	defer c.observe("create", time.Now(), &err)

	if err := session.AssertPermissions(req.Session, session.PermissionFiles); err != nil {
		return nil, err
	}
	in, err := c.decodeInput(req.Body)
	if err != nil {
		return nil, err
	}
	if !req.Session.CanActFor(in.OwnerID) {
		return nil, fmt.Errorf("create for %s: %w", in.OwnerID, ErrForbidden)
	}

	segments := SplitPath(in.Path)
	if err := c.EnsureFolders(ctx, in.OwnerID, segments); err != nil {
		return nil, mapStoreError(err)
	}

	if in.IsFolder() {
		folder, err := c.ensureFolder(ctx, in.OwnerID, in.Path, in.Name)
		return folder, mapStoreError(err)
	}

	if err := c.checkQuota(ctx, in.OwnerID, in.Size, ""); err != nil {
		return nil, err
	}

	f = metadata.NewFile(in.OwnerID, in.Path, in.Name)
	f.Size = in.Size
	f.Hash = in.Hash

	// Status and insert share the hash lock so a concurrent last-reference
	// delete cannot remove the blob between them.
	err = c.withHashLock(ctx, in.Hash, func(ctx context.Context, tx metadata.Store) error {
		status, err := getStatusByHash(ctx, tx, in.Hash)
		if err != nil {
			return err
		}
		f.Status = status
		return tx.Create(ctx, f)
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	logger.Debug("Created %s %s (hash %s, status %s) for %s", f.ID, f.FullPath(), f.Hash, f.Status, f.OwnerID)
	return f, nil
}

// Update replaces the client-controlled fields of the record named by the
// "file" parameter with req.Body and returns the updated record.
//
// When the hash changes, the previous blob is released if this record was its
// last uploaded reference, and the status becomes DEFAULT only if the new hash
// is already uploaded. When the location or owner changes, the new ancestor
// chain is materialized, and a moved folder carries its subtree along. A folder
// cannot move into its own subtree. Folders cannot gain a hash and files cannot
// drop theirs.
func (c *Controller) Update(ctx context.Context, req Request) (f *metadata.File, err error) {
	defer c.observe("update", time.Now(), &err)

	if err := session.AssertPermissions(req.Session, session.PermissionFiles); err != nil {
		return nil, err
	}
	existing, err := c.loadForWrite(ctx, req)
	if err != nil {
		return nil, err
	}
	in, err := c.decodeInput(req.Body)
	if err != nil {
		return nil, err
	}
	if in.OwnerID != existing.OwnerID && !req.Session.CanActFor(in.OwnerID) {
		return nil, fmt.Errorf("transfer %s to %s: %w", existing.ID, in.OwnerID, ErrForbidden)
	}
	if existing.IsFolder() != in.IsFolder() {
		return nil, newValidationError("%s: %s cannot change between file and folder", MsgStatusChange, existing.ID)
	}
	if existing.IsFolder() {
		in.Size = 0
	} else {
		exclude := ""
		if in.OwnerID == existing.OwnerID {
			exclude = existing.ID
		}
		if err := c.checkQuota(ctx, in.OwnerID, in.Size, exclude); err != nil {
			return nil, err
		}
	}

	moved := in.Path != existing.Path || in.Name != existing.Name || in.OwnerID != existing.OwnerID
	if existing.IsFolder() && in.OwnerID == existing.OwnerID && isWithin(in.Path, existing.ChildPath()) {
		return nil, newValidationError("%s: cannot move %s into its own subtree %s", MsgPathConflict, existing.FullPath(), in.Path)
	}
	if in.Path != existing.Path || in.OwnerID != existing.OwnerID {
		if err := c.EnsureFolders(ctx, in.OwnerID, SplitPath(in.Path)); err != nil {
			return nil, mapStoreError(err)
		}
	}

	patch := metadata.Patch{
		OwnerID: &in.OwnerID,
		Size:    &in.Size,
		Path:    &in.Path,
		Name:    &in.Name,
		Hash:    &in.Hash,
	}.Touch()

	if in.Hash != existing.Hash {
		err = c.deleteBinaryIfOneLeft(ctx, existing, "update", func(ctx context.Context, tx metadata.Store) error {
			status, err := getStatusByHash(ctx, tx, in.Hash)
			if err != nil {
				return err
			}
			patch.Status = &status
			return tx.Update(ctx, existing.ID, patch)
		}, in.Hash)
	} else {
		err = c.store.Update(ctx, existing.ID, patch)
	}
	if err != nil {
		return nil, mapStoreError(err)
	}

	updated, err := c.store.Get(ctx, existing.ID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	if existing.IsFolder() && moved {
		if err := c.relocateSubtree(ctx, existing, updated); err != nil {
			return nil, mapStoreError(err)
		}
	}

	logger.Debug("Updated %s: %s -> %s", existing.ID, existing.FullPath(), updated.FullPath())
	return updated, nil
}

// Get returns the record named by the "file" parameter. Records owned by
// someone else are reported as not found unless the caller is an admin.
func (c *Controller) Get(ctx context.Context, req Request) (f *metadata.File, err error) {
	defer c.observe("get", time.Now(), &err)

	if err := session.AssertPermissions(req.Session, session.PermissionFiles); err != nil {
		return nil, err
	}
	return c.loadVisible(ctx, req)
}

// GetAll returns the records matching req.Query. Non-admin callers are
// restricted to their own records regardless of any owner predicate supplied.
func (c *Controller) GetAll(ctx context.Context, req Request) (out []*metadata.File, err error) {
	defer c.observe("get_all", time.Now(), &err)

	if err := session.AssertPermissions(req.Session, session.PermissionFiles); err != nil {
		return nil, err
	}
	q := req.Query
	if !req.Session.IsAdmin() {
		q = q.Without(metadata.FieldOwnerID).And(metadata.Eq(metadata.FieldOwnerID, req.Session.UserID))
	}

	out, err = c.store.GetAll(ctx, q)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return out, nil
}

// loadVisible fetches the record named by the "file" parameter, hiding
// records the caller may not see behind ErrNotFound.
func (c *Controller) loadVisible(ctx context.Context, req Request) (*metadata.File, error) {
	id := req.Param(ParamFile)
	if id == "" {
		return nil, fmt.Errorf("missing file parameter: %w", ErrNotFound)
	}
	f, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if !req.Session.CanActFor(f.OwnerID) {
		return nil, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	return f, nil
}

// loadForWrite fetches the record named by the "file" parameter and checks
// that the caller owns it or is an admin.
func (c *Controller) loadForWrite(ctx context.Context, req Request) (*metadata.File, error) {
	id := req.Param(ParamFile)
	if id == "" {
		return nil, fmt.Errorf("missing file parameter: %w", ErrNotFound)
	}
	f, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if !req.Session.CanActFor(f.OwnerID) {
		return nil, fmt.Errorf("file %s owned by %s: %w", id, f.OwnerID, ErrForbidden)
	}
	return f, nil
}

// relocateSubtree rewrites the Path (and owner) of every descendant of a
// folder that moved from before to after.
func (c *Controller) relocateSubtree(ctx context.Context, before, after *metadata.File) error {
	type move struct{ from, to string }
	work := []move{{from: before.ChildPath(), to: after.ChildPath()}}

	for len(work) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		m := work[len(work)-1]
		work = work[:len(work)-1]

		children, err := c.store.GetAll(ctx, metadata.Query{
			metadata.Eq(metadata.FieldPath, m.from),
			metadata.Eq(metadata.FieldOwnerID, before.OwnerID),
		})
		if err != nil {
			return err
		}
		for _, child := range children {
			patch := metadata.Patch{Path: metadata.Ptr(m.to), OwnerID: metadata.Ptr(after.OwnerID)}.Touch()
			if err := c.store.Update(ctx, child.ID, patch); err != nil {
				return err
			}
			if child.IsFolder() {
				work = append(work, move{from: m.from + "/" + child.Name, to: m.to + "/" + child.Name})
			}
		}
	}
	return nil
}

// isWithin reports whether path is dir or lies below it.
func isWithin(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+"/")
}

func (c *Controller) observe(op string, start time.Time, err *error) {
	c.metrics.RecordOperation(op, time.Since(start), *err)
}
