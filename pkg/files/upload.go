package files

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/marmos91/dittofiles/pkg/hash"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/session"
)

// UploadBinary receives the bytes of the hash named by the "file" parameter
// from req.Stream. See Upload.
func (c *Controller) UploadBinary(ctx context.Context, req Request) (err error) {
	defer c.observe("upload", time.Now(), &err)

	if err := session.AssertPermissions(req.Session, session.PermissionFiles); err != nil {
		return err
	}
	if req.Stream == nil {
		return &ValidationError{Message: MsgEmptyBody}
	}
	return c.Upload(ctx, req.Session.UserID, req.Param(ParamFile), req.Stream)
}

// Upload stores the bytes read from r under claimedHash.
//
// The stream is written to the temporary key "_"+claimedHash while the same
// bytes are hashed. Once both the write and the hash are done, a matching
// digest promotes the temporary blob to the permanent key and flips every
// NOT_UPLOADED record carrying the hash to DEFAULT. A different digest fails
// with a *HashMismatchError and changes nothing. The temporary blob is
// removed on every path; a failure to do so is logged and never returned.
func (c *Controller) Upload(ctx context.Context, ownerID, claimedHash string, r io.Reader) error {
	if claimedHash == "" || !c.hasher.Valid(claimedHash) {
		return &ValidationError{Message: MsgWrongHash}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	// Registered under the hash lock so the collector never sees a temp blob
	// whose upload it has not been told about.
	unlock := c.hashLocks.Lock(claimedHash)
	c.metrics.SetUploadsInFlight(c.uploads.add(claimedHash))
	unlock()
	defer func() { c.metrics.SetUploadsInFlight(c.uploads.done(claimedHash)) }()

	tempKey := content.TempKey(claimedHash)
	defer c.removeTemp(tempKey)

	computed, n, err := c.receive(ctx, tempKey, r)
	if err != nil {
		c.metrics.RecordUpload(metrics.UploadOutcomeError, n)
		return fmt.Errorf("upload %s: %w", claimedHash, err)
	}
	if computed != claimedHash {
		c.metrics.RecordUpload(metrics.UploadOutcomeMismatch, n)
		logger.Debug("Upload by %s rejected: claimed %s, computed %s", ownerID, claimedHash, computed)
		return &HashMismatchError{Claimed: claimedHash, Computed: computed}
	}

	flipped, err := c.promote(ctx, claimedHash, tempKey)
	if err != nil {
		c.metrics.RecordUpload(metrics.UploadOutcomeError, n)
		return fmt.Errorf("upload %s: %w", claimedHash, mapStoreError(err))
	}

	c.metrics.RecordUpload(metrics.UploadOutcomeSuccess, n)
	logger.Info("Uploaded %s (%d bytes) by %s, %d records now available", claimedHash, n, ownerID, flipped)
	return nil
}

// receive streams r into tempKey and through the hasher in a single pass.
//
// The source is read once: a TeeReader feeds the hasher while the copy loop
// pushes the same bytes into a pipe drained by the blob write. The blob write
// runs in its own goroutine and both sides are joined before returning, so a
// failure on either side fails the whole receive.
func (c *Controller) receive(ctx context.Context, tempKey string, r io.Reader) (digest string, n int64, err error) {
	h := c.hasher.New()
	pr, pw := io.Pipe()

	type writeResult struct {
		n   int64
		err error
	}
	done := make(chan writeResult, 1)
	go func() {
		written, err := c.blobs.Write(ctx, tempKey, pr)
		// Unblock the copy loop if the store stopped reading early
		_ = pr.CloseWithError(errOrClosed(err))
		done <- writeResult{n: written, err: err}
	}()

	src := &recordingReader{r: content.NewContextReader(ctx, r)}

	buf := c.pool.Get()
	n, copyErr := io.CopyBuffer(pw, io.TeeReader(src, h), buf)
	c.pool.Put(buf)
	_ = pw.CloseWithError(copyErr)

	res := <-done

	switch {
	case src.err != nil:
		return "", n, fmt.Errorf("read stream: %w", src.err)
	case res.err != nil:
		return "", n, fmt.Errorf("write temporary blob: %w", res.err)
	case copyErr != nil:
		return "", n, fmt.Errorf("write temporary blob: %w", copyErr)
	case res.n != n:
		return "", n, fmt.Errorf("write temporary blob: stored %d of %d bytes", res.n, n)
	}
	return hash.Encode(h), n, nil
}

// promote copies the verified temporary blob to its permanent key and marks
// every pending record with the hash as uploaded.
func (c *Controller) promote(ctx context.Context, digest, tempKey string) (int, error) {
	unlock := c.hashLocks.Lock(digest)
	defer unlock()

	if err := content.Copy(ctx, c.blobs, tempKey, digest); err != nil {
		return 0, fmt.Errorf("promote blob: %w", err)
	}

	n, err := c.store.UpdateMany(ctx,
		metadata.Query{
			metadata.Eq(metadata.FieldHash, digest),
			metadata.Eq(metadata.FieldStatus, metadata.StatusNotUploaded),
		},
		metadata.Patch{Status: metadata.Ptr(metadata.StatusDefault)}.Touch(),
	)
	if err != nil {
		return 0, fmt.Errorf("mark records uploaded: %w", err)
	}
	return n, nil
}

// removeTemp deletes a temporary blob on a context detached from the
// request, so cancelled uploads are cleaned up too.
func (c *Controller) removeTemp(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cleanupTimeout)
	defer cancel()

	if err := c.blobs.Delete(ctx, key); err != nil {
		c.metrics.RecordCleanupFailure()
		logger.Warn("Failed to remove temporary blob %s: %v", key, err)
	}
}

// recordingReader remembers the first non-EOF error of the source, so a
// failing client stream is told apart from a failing blob write.
type recordingReader struct {
	r   io.Reader
	err error
}

func (rr *recordingReader) Read(p []byte) (int, error) {
	n, err := rr.r.Read(p)
	if err != nil && err != io.EOF && rr.err == nil {
		rr.err = err
	}
	return n, err
}

func errOrClosed(err error) error {
	if err != nil {
		return err
	}
	return io.ErrClosedPipe
}
