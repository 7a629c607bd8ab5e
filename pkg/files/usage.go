package files

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/session"
)

// Usage reports how much of an owner's quota is taken.
type Usage struct {
	OwnerID string `json:"ownerId"`

	// Used is the summed size of the owner's files, in bytes
	Used int64 `json:"used"`

	// Capacity is the quota in bytes (0 = unlimited)
	Capacity int64 `json:"capacity"`

	// Files is the number of non-folder records
	Files int `json:"files"`
}

// Usage returns the storage usage of the owner named by the "user" parameter,
// defaulting to the caller. Reporting on someone else requires ADMIN.
func (c *Controller) Usage(ctx context.Context, req Request) (u *Usage, err error) {
	defer c.observe("usage", time.Now(), &err)

	if err := session.AssertPermissions(req.Session, session.PermissionFiles); err != nil {
		return nil, err
	}
	owner := req.Param(ParamUser)
	if owner == "" {
		owner = req.Session.UserID
	}
	if !req.Session.CanActFor(owner) {
		return nil, fmt.Errorf("usage of %s: %w", owner, ErrForbidden)
	}

	used, n, err := c.usedBytes(ctx, owner, "")
	if err != nil {
		return nil, mapStoreError(err)
	}
	return &Usage{OwnerID: owner, Used: used, Capacity: c.quota, Files: n}, nil
}

// usedBytes sums the sizes of owner's files, skipping excludeID.
// Folders are counted out by the status predicate (FOLDER is the highest status).
func (c *Controller) usedBytes(ctx context.Context, owner, excludeID string) (int64, int, error) {
	cur, err := c.store.Cursor(ctx, metadata.Query{
		metadata.Eq(metadata.FieldOwnerID, owner),
		metadata.Lt(metadata.FieldStatus, metadata.StatusFolder),
	})
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = cur.Close() }()

	var used int64
	n := 0
	for cur.Next(ctx) {
		f := cur.File()
		if f.ID == excludeID {
			continue
		}
		used += f.Size
		n++
	}
	if err := cur.Err(); err != nil {
		return 0, 0, err
	}
	return used, n, nil
}

// checkQuota fails with QUOTA_EXCEEDED when adding size bytes for owner
// would exceed the configured quota. excludeID names a record being replaced.
func (c *Controller) checkQuota(ctx context.Context, owner string, size int64, excludeID string) error {
	if c.quota <= 0 {
		return nil
	}
	used, _, err := c.usedBytes(ctx, owner, excludeID)
	if err != nil {
		return mapStoreError(err)
	}
	if size > c.quota-used {
		return newValidationError("%s: %d + %d bytes exceeds quota of %d", MsgQuotaExceeded, used, size, c.quota)
	}
	return nil
}
