// Package badger implements metadata.Store on BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metadata"
)

// BadgerMetadataStore implements metadata.Store using BadgerDB for persistence.
//
// It is suitable for single-node deployments that need metadata to survive
// restarts without running a database server.
//
// Key Features:
//   - Persistent storage with crash recovery (WAL-based)
//   - Secondary indexes on hash and owner (see keys.go)
//   - Serializable transactions via WithTx; conflicts surface as ErrTxConflict
//
// Thread Safety:
// BadgerDB transactions provide isolation, so the store holds no locks of its own.
type BadgerMetadataStore struct {
	db *badger.DB
}

var (
	_ metadata.Store         = (*BadgerMetadataStore)(nil)
	_ metadata.Transactional = (*BadgerMetadataStore)(nil)
)

// BadgerMetadataStoreConfig configures the BadgerDB metadata store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB will store its files
	DBPath string `mapstructure:"db_path"`

	// InMemory keeps everything in memory (DBPath is ignored). Used by tests.
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites fsyncs every commit
	SyncWrites bool `mapstructure:"sync_writes"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`
}

// NewBadgerMetadataStore opens (or creates) a BadgerDB database.
//
// Parameters:
//   - ctx: Context for cancellation
//   - config: Database location and tuning
//
// Returns:
//   - *BadgerMetadataStore: Ready store (must be closed)
//   - error: Returns error if the database cannot be opened
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if config.DBPath == "" {
			return nil, fmt.Errorf("badger metadata store: db_path is required")
		}
		opts = badger.DefaultOptions(config.DBPath)
	}

	// Records are small JSON documents; compression overhead is not worth it
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)
	opts = opts.WithSyncWrites(config.SyncWrites)

	blockCacheMB := config.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := config.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	if config.InMemory {
		logger.Debug("Opened in-memory BadgerDB metadata store")
	} else {
		logger.Info("Opened BadgerDB metadata store at %s", config.DBPath)
	}

	return &BadgerMetadataStore{db: db}, nil
}

func (s *BadgerMetadataStore) view(fn func(t *txnStore) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&txnStore{txn: txn})
	})
}

func (s *BadgerMetadataStore) update(fn func(t *txnStore) error) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(&txnStore{txn: txn})
	})
	return commitError(err)
}

func (s *BadgerMetadataStore) Get(ctx context.Context, id string) (*metadata.File, error) {
	var f *metadata.File
	err := s.view(func(t *txnStore) error {
		var err error
		f, err = t.Get(ctx, id)
		return err
	})
	return f, err
}

func (s *BadgerMetadataStore) Create(ctx context.Context, f *metadata.File) error {
	return s.update(func(t *txnStore) error {
		return t.Create(ctx, f)
	})
}

func (s *BadgerMetadataStore) CreateMany(ctx context.Context, files []*metadata.File) error {
	return s.update(func(t *txnStore) error {
		return t.CreateMany(ctx, files)
	})
}

func (s *BadgerMetadataStore) Update(ctx context.Context, id string, patch metadata.Patch) error {
	return s.update(func(t *txnStore) error {
		return t.Update(ctx, id, patch)
	})
}

func (s *BadgerMetadataStore) UpdateMany(ctx context.Context, q metadata.Query, patch metadata.Patch) (int, error) {
	var n int
	err := s.update(func(t *txnStore) error {
		var err error
		n, err = t.UpdateMany(ctx, q, patch)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *BadgerMetadataStore) Delete(ctx context.Context, id string) error {
	return s.update(func(t *txnStore) error {
		return t.Delete(ctx, id)
	})
}

func (s *BadgerMetadataStore) DeleteMany(ctx context.Context, q metadata.Query) (int, error) {
	var n int
	err := s.update(func(t *txnStore) error {
		var err error
		n, err = t.DeleteMany(ctx, q)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *BadgerMetadataStore) GetAll(ctx context.Context, q metadata.Query) ([]*metadata.File, error) {
	var files []*metadata.File
	err := s.view(func(t *txnStore) error {
		var err error
		files, err = t.GetAll(ctx, q)
		return err
	})
	return files, err
}

// Cursor streams matching records from a read-only snapshot taken at call time.
func (s *BadgerMetadataStore) Cursor(ctx context.Context, q metadata.Query) (metadata.Cursor, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newCursor(s.db, q), nil
}

// WithTx runs fn inside a single read-write transaction.
func (s *BadgerMetadataStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx metadata.Store) error) error {
	return s.update(func(t *txnStore) error {
		return fn(ctx, t)
	})
}

// Close flushes and closes the database.
func (s *BadgerMetadataStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

// commitError maps a lost write conflict onto ErrTxConflict. Other errors,
// including those returned by the caller's function, pass through unchanged.
func commitError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := metadata.CodeOf(err); ok {
		return err
	}
	if errors.Is(err, badger.ErrConflict) {
		return &metadata.StoreError{Code: metadata.ErrTxConflict, Message: "transaction conflicted", Err: err}
	}
	return err
}
