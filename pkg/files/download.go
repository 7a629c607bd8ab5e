package files

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/session"
)

// DownloadBinary opens the blob of the record named by the "file" parameter.
// Records not visible to the caller, folders and records whose bytes have not
// been uploaded yet are reported as not found. The caller closes the reader.
func (c *Controller) DownloadBinary(ctx context.Context, req Request) (rc io.ReadCloser, f *metadata.File, err error) {
	defer c.observe("download", time.Now(), &err)

	if err := session.AssertPermissions(req.Session, session.PermissionFiles); err != nil {
		return nil, nil, err
	}
	f, err = c.loadVisible(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if f.Status != metadata.StatusDefault {
		return nil, nil, fmt.Errorf("file %s is %s: %w", f.ID, f.Status, ErrNotFound)
	}

	rc, err = c.blobs.Read(ctx, f.Hash)
	if err != nil {
		return nil, nil, mapStoreError(err)
	}
	return rc, f, nil
}
