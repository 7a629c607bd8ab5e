package files

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metadata"
)

// maxTxAttempts bounds retries of a transaction that lost a write conflict.
const maxTxAttempts = 5

// txRetryBackoff is the base delay between conflicting transaction attempts.
const txRetryBackoff = 5 * time.Millisecond

// getStatusByHash derives the status of a record carrying hash:
// FOLDER without a hash, DEFAULT when some record with that hash is already
// uploaded, NOT_UPLOADED otherwise.
func getStatusByHash(ctx context.Context, store metadata.Store, hash string) (metadata.FileStatus, error) {
	if hash == "" {
		return metadata.StatusFolder, nil
	}
	n, err := countUploaded(ctx, store, hash, 1)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return metadata.StatusNotUploaded, nil
	}
	return metadata.StatusDefault, nil
}

// countUploaded counts DEFAULT records with hash, stopping at limit.
func countUploaded(ctx context.Context, store metadata.Store, hash string, limit int) (int, error) {
	cur, err := store.Cursor(ctx, metadata.Query{
		metadata.Eq(metadata.FieldHash, hash),
		metadata.Eq(metadata.FieldStatus, metadata.StatusDefault),
	})
	if err != nil {
		return 0, fmt.Errorf("count references to %s: %w", hash, err)
	}
	defer func() { _ = cur.Close() }()

	n := 0
	for n < limit && cur.Next(ctx) {
		n++
	}
	if err := cur.Err(); err != nil {
		return 0, fmt.Errorf("count references to %s: %w", hash, err)
	}
	return n, nil
}

// deleteBinaryIfOneLeft detaches a record from its hash and removes the blob
// when that record was the last uploaded reference.
//
// The DEFAULT references are counted before detach runs, so the record being
// detached is still visible to the count. It is the last one only if the count
// is exactly one and the record itself is DEFAULT; a NOT_UPLOADED record never
// owned the blob. The record is re-read inside the transaction so the decision
// uses its committed state rather than the caller's copy.
//
// Count and detach run under the per-hash lock, plus the locks of any hashes in
// also, and inside one transaction when the metadata store supports it. The
// blob is deleted only after detach committed, still under the lock, so an
// interleaved upload or create for the same hash cannot observe a DEFAULT
// record without its blob.
//
// A record without a hash runs detach alone.
func (c *Controller) deleteBinaryIfOneLeft(
	ctx context.Context,
	detached *metadata.File,
	reason string,
	detach func(ctx context.Context, tx metadata.Store) error,
	also ...string,
) error {
	hash := detached.Hash
	if hash == "" {
		return c.inTx(ctx, detach)
	}

	unlock := c.hashLocks.LockAll(append([]string{hash}, also...)...)
	defer unlock()

	var last bool
	err := c.inTx(ctx, func(ctx context.Context, tx metadata.Store) error {
		current, err := tx.Get(ctx, detached.ID)
		if err != nil {
			return err
		}
		n, err := countUploaded(ctx, tx, hash, 2)
		if err != nil {
			return err
		}
		last = n == 1 && current.Hash == hash && current.Status == metadata.StatusDefault
		return detach(ctx, tx)
	})
	if err != nil {
		return err
	}
	if !last {
		return nil
	}

	if err := c.blobs.Delete(ctx, hash); err != nil {
		return fmt.Errorf("delete blob %s: %w", hash, err)
	}
	c.metrics.RecordBlobDeleted(reason)
	logger.Debug("Deleted blob %s: last reference removed (%s)", hash, reason)
	return nil
}

// withHashLock runs fn under the per-hash lock inside a transaction when
// available. An empty hash skips the lock.
func (c *Controller) withHashLock(ctx context.Context, hash string, fn func(ctx context.Context, tx metadata.Store) error) error {
	if hash != "" {
		unlock := c.hashLocks.Lock(hash)
		defer unlock()
	}
	return c.inTx(ctx, fn)
}

// inTx runs fn in a metadata transaction when the store supports them,
// retrying lost write conflicts, and directly against the store otherwise.
func (c *Controller) inTx(ctx context.Context, fn func(ctx context.Context, tx metadata.Store) error) error {
	txStore, ok := c.store.(metadata.Transactional)
	if !ok {
		return fn(ctx, c.store)
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = txStore.WithTx(ctx, fn)
		if !metadata.IsConflict(err) {
			return err
		}
		logger.Debug("Metadata transaction conflict (attempt %d/%d): %v", attempt, maxTxAttempts, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * txRetryBackoff):
		}
	}
	return err
}
