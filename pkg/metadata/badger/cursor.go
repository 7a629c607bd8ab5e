package badger

import (
	"context"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/dittofiles/pkg/metadata"
)

// cursor walks a read-only transaction lazily, decoding one record per Next.
type cursor struct {
	txn     *badger.Txn
	it      *badger.Iterator
	query   metadata.Query
	indexed bool
	started bool
	current *metadata.File
	err     error
}

func newCursor(db *badger.DB, q metadata.Query) *cursor {
	prefix, indexed := plan(q)

	txn := db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = !indexed

	return &cursor{
		txn:     txn,
		it:      txn.NewIterator(opts),
		query:   q,
		indexed: indexed,
	}
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.err != nil || c.it == nil {
		return false
	}

	for {
		if err := ctx.Err(); err != nil {
			c.err = err
			return false
		}

		if !c.started {
			c.it.Rewind()
			c.started = true
		} else {
			c.it.Next()
		}
		if !c.it.Valid() {
			c.current = nil
			return false
		}

		f, err := c.load(c.it.Item())
		if err != nil {
			if metadata.IsNotFound(err) {
				continue
			}
			c.err = err
			return false
		}
		if c.query.Match(f) {
			c.current = f
			return true
		}
	}
}

func (c *cursor) load(item *badger.Item) (*metadata.File, error) {
	if c.indexed {
		// Read-only transactions allow point reads while iterating
		return getFile(c.txn, idFromKey(item.KeyCopy(nil)))
	}

	var f *metadata.File
	err := item.Value(func(val []byte) error {
		decoded, err := decodeFile(val)
		f = decoded
		return err
	})
	if err != nil {
		return nil, metadata.NewIOError("cursor", err)
	}
	return f, nil
}

func (c *cursor) File() *metadata.File {
	return c.current
}

func (c *cursor) Err() error {
	return c.err
}

func (c *cursor) Close() error {
	if c.it != nil {
		c.it.Close()
		c.it = nil
		c.txn.Discard()
	}
	return nil
}
