package files

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/session"
)

// Delete removes the record named by the "file" parameter. A folder is
// removed together with its whole subtree, children before parents.
//
// Each record's blob is released when the record was its last uploaded
// reference. The first failure aborts the traversal and is returned; records
// removed before it stay removed.
func (c *Controller) Delete(ctx context.Context, req Request) (err error) {
	defer c.observe("delete", time.Now(), &err)

	if err := session.AssertPermissions(req.Session, session.PermissionFiles); err != nil {
		return err
	}
	target, err := c.loadForWrite(ctx, req)
	if err != nil {
		return err
	}

	removed, err := c.deleteTree(ctx, target)
	if err != nil {
		return mapStoreError(err)
	}

	logger.Debug("Deleted %s (%d records)", target.FullPath(), removed)
	return nil
}

// deleteTree removes root and its descendants with an explicit stack. A
// folder is expanded the first time it reaches the top of the stack and
// removed the second time, once everything pushed above it is gone.
func (c *Controller) deleteTree(ctx context.Context, root *metadata.File) (int, error) {
	type frame struct {
		file     *metadata.File
		expanded bool
	}

	stack := []frame{{file: root}}
	removed := 0

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		top := &stack[len(stack)-1]
		if top.file.IsFolder() && !top.expanded {
			top.expanded = true

			// Descendants belong to the folder's owner, whoever issued the delete
			children, err := c.store.GetAll(ctx, metadata.Query{
				metadata.Eq(metadata.FieldPath, top.file.ChildPath()),
				metadata.Eq(metadata.FieldOwnerID, top.file.OwnerID),
			})
			if err != nil {
				return removed, fmt.Errorf("list children of %s: %w", top.file.FullPath(), err)
			}
			for _, child := range children {
				stack = append(stack, frame{file: child})
			}
			continue
		}

		f := top.file
		stack = stack[:len(stack)-1]

		if err := c.removeRecord(ctx, f); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// removeRecord deletes one record, releasing its blob if it was the last
// uploaded reference.
func (c *Controller) removeRecord(ctx context.Context, f *metadata.File) error {
	err := c.deleteBinaryIfOneLeft(ctx, f, "delete", func(ctx context.Context, tx metadata.Store) error {
		return tx.Delete(ctx, f.ID)
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", f.FullPath(), err)
	}
	return nil
}
