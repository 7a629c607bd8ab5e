package badger

import (
	"context"
	"errors"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/dittofiles/pkg/metadata"
)

// txnStore implements metadata.Store on top of a single Badger transaction.
//
// BadgerMetadataStore runs each public operation through a fresh txnStore and
// WithTx hands one to the caller, so both paths share the same code.
type txnStore struct {
	txn *badger.Txn
}

var _ metadata.Store = (*txnStore)(nil)

func (t *txnStore) Get(ctx context.Context, id string) (*metadata.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return getFile(t.txn, id)
}

func (t *txnStore) Create(ctx context.Context, f *metadata.File) error {
	return t.CreateMany(ctx, []*metadata.File{f})
}

func (t *txnStore) CreateMany(ctx context.Context, files []*metadata.File) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, f := range files {
		if f == nil || f.ID == "" {
			return &metadata.StoreError{Code: metadata.ErrInvalidArgument, Message: "record id is required"}
		}
		_, err := t.txn.Get(keyFile(f.ID))
		if err == nil {
			return &metadata.StoreError{Code: metadata.ErrAlreadyExists, Message: "file already exists", ID: f.ID}
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return metadata.NewIOError("create", err)
		}
		if err := putFile(t.txn, f, nil); err != nil {
			return err
		}
	}
	return nil
}

func (t *txnStore) Update(ctx context.Context, id string, patch metadata.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	old, err := getFile(t.txn, id)
	if err != nil {
		return err
	}
	updated := old.Clone()
	patch.Apply(updated)
	return putFile(t.txn, updated, old)
}

func (t *txnStore) UpdateMany(ctx context.Context, q metadata.Query, patch metadata.Patch) (int, error) {
	matched, err := scan(ctx, t.txn, q)
	if err != nil {
		return 0, err
	}

	for _, old := range matched {
		updated := old.Clone()
		patch.Apply(updated)
		if err := putFile(t.txn, updated, old); err != nil {
			return 0, err
		}
	}
	return len(matched), nil
}

func (t *txnStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := getFile(t.txn, id)
	if err != nil {
		return err
	}
	return deleteFile(t.txn, f)
}

func (t *txnStore) DeleteMany(ctx context.Context, q metadata.Query) (int, error) {
	matched, err := scan(ctx, t.txn, q)
	if err != nil {
		return 0, err
	}

	for _, f := range matched {
		if err := deleteFile(t.txn, f); err != nil {
			return 0, err
		}
	}
	return len(matched), nil
}

func (t *txnStore) GetAll(ctx context.Context, q metadata.Query) ([]*metadata.File, error) {
	return scan(ctx, t.txn, q)
}

// Cursor materializes results: a read-write transaction allows one open
// iterator at a time, which a lazy cursor would hold across caller writes.
func (t *txnStore) Cursor(ctx context.Context, q metadata.Query) (metadata.Cursor, error) {
	files, err := scan(ctx, t.txn, q)
	if err != nil {
		return nil, err
	}
	return metadata.NewSliceCursor(files), nil
}

// Close is a no-op; the owning WithTx call commits or discards the transaction.
func (t *txnStore) Close() error {
	return nil
}

// ============================================================================
// Transaction-level helpers
// ============================================================================

func getFile(txn *badger.Txn, id string) (*metadata.File, error) {
	item, err := txn.Get(keyFile(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, metadata.NewNotFoundError(id)
		}
		return nil, metadata.NewIOError("get", err)
	}

	var f *metadata.File
	err = item.Value(func(val []byte) error {
		decoded, err := decodeFile(val)
		if err != nil {
			return err
		}
		f = decoded
		return nil
	})
	if err != nil {
		return nil, metadata.NewIOError("get", err)
	}
	return f, nil
}

// putFile writes f and its index entries. old is the previous version of the
// record (nil on create) whose stale index entries are removed.
func putFile(txn *badger.Txn, f, old *metadata.File) error {
	data, err := encodeFile(f)
	if err != nil {
		return metadata.NewIOError("encode", err)
	}
	if err := txn.Set(keyFile(f.ID), data); err != nil {
		return mapTxnError("put", err)
	}

	if old != nil {
		if err := removeIndexes(txn, old); err != nil {
			return err
		}
	}

	if f.Hash != "" {
		if err := txn.Set(keyHashIndex(f.Hash, f.ID), nil); err != nil {
			return mapTxnError("index hash", err)
		}
	}
	if err := txn.Set(keyOwnerIndex(f.OwnerID, f.ID), nil); err != nil {
		return mapTxnError("index owner", err)
	}
	return nil
}

func deleteFile(txn *badger.Txn, f *metadata.File) error {
	if err := removeIndexes(txn, f); err != nil {
		return err
	}
	if err := txn.Delete(keyFile(f.ID)); err != nil {
		return mapTxnError("delete", err)
	}
	return nil
}

func removeIndexes(txn *badger.Txn, f *metadata.File) error {
	if f.Hash != "" {
		if err := txn.Delete(keyHashIndex(f.Hash, f.ID)); err != nil {
			return mapTxnError("unindex hash", err)
		}
	}
	if err := txn.Delete(keyOwnerIndex(f.OwnerID, f.ID)); err != nil {
		return mapTxnError("unindex owner", err)
	}
	return nil
}

// plan picks the narrowest key range able to answer q.
func plan(q metadata.Query) (prefix []byte, indexed bool) {
	if v, ok := q.EqualityValue(metadata.FieldHash); ok {
		if hash := v.(string); hash != "" {
			return keyHashPrefix(hash), true
		}
	}
	if v, ok := q.EqualityValue(metadata.FieldOwnerID); ok {
		return keyOwnerPrefix(v.(string)), true
	}
	return []byte(prefixFile), false
}

// scan returns every record matching q, checking ctx every 1000 keys.
func scan(ctx context.Context, txn *badger.Txn, q metadata.Query) ([]*metadata.File, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix, indexed := plan(q)

	// Collect candidate ids first so the iterator is closed before any
	// point reads or writes on the same transaction.
	var candidates []string
	var direct []*metadata.File

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = !indexed

	it := txn.NewIterator(opts)
	processed := 0
	for it.Rewind(); it.Valid(); it.Next() {
		processed++
		if processed%1000 == 0 {
			if err := ctx.Err(); err != nil {
				it.Close()
				return nil, err
			}
		}

		item := it.Item()
		if indexed {
			candidates = append(candidates, idFromKey(item.KeyCopy(nil)))
			continue
		}

		var f *metadata.File
		err := item.Value(func(val []byte) error {
			decoded, err := decodeFile(val)
			f = decoded
			return err
		})
		if err != nil {
			it.Close()
			return nil, metadata.NewIOError("scan", err)
		}
		if q.Match(f) {
			direct = append(direct, f)
		}
	}
	it.Close()

	if !indexed {
		return direct, nil
	}

	out := make([]*metadata.File, 0, len(candidates))
	for _, id := range candidates {
		f, err := getFile(txn, id)
		if err != nil {
			if metadata.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if q.Match(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

func mapTxnError(op string, err error) error {
	if errors.Is(err, badger.ErrConflict) {
		return &metadata.StoreError{Code: metadata.ErrTxConflict, Message: op + " conflicted", Err: err}
	}
	return metadata.NewIOError(op, err)
}
