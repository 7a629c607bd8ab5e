package files

import (
	"context"
	"fmt"
	"strings"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metadata"
)

// SplitPath returns the non-empty segments of p.
//
//	SplitPath("/docs//2024/") == []string{"docs", "2024"}
//	SplitPath("")             == nil
func SplitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// JoinPath is the inverse of SplitPath and yields the canonical path form:
// "" for the root, "/a/b" otherwise.
func JoinPath(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	return "/" + strings.Join(segments, "/")
}

// EnsureFolders makes sure a FOLDER record owned by ownerID exists for every
// prefix of segments, creating the missing ones from the root down.
//
// The operation is idempotent and not transactional across segments: a
// failure leaves the folders created so far in place, and a retry picks up
// where it stopped. A non-folder record occupying one of the segments fails
// with a PATH_CONFLICT ValidationError.
func (c *Controller) EnsureFolders(ctx context.Context, ownerID string, segments []string) error {
	prefix := ""
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if _, err := c.ensureFolder(ctx, ownerID, prefix, seg); err != nil {
			return err
		}
		prefix += "/" + seg
	}
	return nil
}

// ensureFolder returns the folder (ownerID, path, name), creating it if needed.
func (c *Controller) ensureFolder(ctx context.Context, ownerID, path, name string) (*metadata.File, error) {
	unlock := c.folderLocks.Lock(folderKey(ownerID, path, name))
	defer unlock()

	existing, err := c.lookupFolder(ctx, ownerID, path, name)
	if err != nil || existing != nil {
		return existing, err
	}

	folder := metadata.NewFile(ownerID, path, name)
	folder.Status = metadata.StatusFolder
	if err := c.store.Create(ctx, folder); err != nil {
		return nil, fmt.Errorf("create folder %s/%s: %w", path, name, err)
	}
	logger.Debug("Materialized folder %s/%s for %s", path, name, ownerID)
	return folder, nil
}

// lookupFolder returns the folder at (ownerID, path, name), or nil when
// nothing occupies that location.
func (c *Controller) lookupFolder(ctx context.Context, ownerID, path, name string) (*metadata.File, error) {
	matches, err := c.store.GetAll(ctx, metadata.Query{
		metadata.Eq(metadata.FieldOwnerID, ownerID),
		metadata.Eq(metadata.FieldPath, path),
		metadata.Eq(metadata.FieldName, name),
	})
	if err != nil {
		return nil, fmt.Errorf("lookup folder %s/%s: %w", path, name, err)
	}

	var conflict *metadata.File
	for _, f := range matches {
		if f.IsFolder() {
			return f, nil
		}
		conflict = f
	}
	if conflict != nil {
		return nil, newValidationError("%s: %s/%s is a file", MsgPathConflict, path, name)
	}
	return nil, nil
}

func folderKey(ownerID, path, name string) string {
	return ownerID + "\x00" + path + "\x00" + name
}
