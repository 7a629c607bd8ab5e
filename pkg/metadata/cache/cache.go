// Package cache provides a read-through record cache for metadata stores.
//
// Point lookups by id dominate the controller's read path (every update,
// delete, get and download starts with one), so caching them in a bounded
// off-heap freecache keeps repeated requests for the same record off the
// backing store.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/coocood/freecache"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/metrics"
)

// minCacheSizeMB is the smallest cache freecache handles efficiently.
const minCacheSizeMB = 1

// Config configures the record cache.
type Config struct {
	// SizeMB is the cache capacity in megabytes
	SizeMB int `mapstructure:"size_mb"`

	// TTLSeconds bounds how long a record may be served from cache (0 = no expiry)
	TTLSeconds int `mapstructure:"ttl_seconds"`

	// Metrics receives hit, miss and invalidation events (optional)
	Metrics metrics.CacheMetrics `mapstructure:"-"`
}

// CachedMetadataStore wraps a metadata.Store with an id -> record cache.
//
// Cache Strategy:
//   - Get fills the cache on a miss
//   - Update and Delete invalidate the affected id
//   - UpdateMany and DeleteMany clear the whole cache, since the affected ids are unknown
//   - Queries (GetAll, Cursor) always go to the backing store
//
// Thread Safety:
// freecache is safe for concurrent use. Every invalidation bumps a generation
// counter under mu, and a Get only fills the cache if no invalidation happened
// since it started reading the backing store, so a slow read can never
// reinstate a record that a concurrent write already replaced.
type CachedMetadataStore struct {
	store   metadata.Store
	cache   *freecache.Cache
	ttl     int
	metrics metrics.CacheMetrics

	mu         sync.Mutex
	generation uint64

	hits   atomic.Uint64
	misses atomic.Uint64
}

// transactionalCachedStore is returned when the backing store supports transactions.
type transactionalCachedStore struct {
	*CachedMetadataStore
	tx metadata.Transactional
}

// New wraps store with a cache. When store implements metadata.Transactional
// the returned store does too.
func New(store metadata.Store, config Config) metadata.Store {
	c := newCachedStore(store, config)
	if tx, ok := store.(metadata.Transactional); ok {
		return &transactionalCachedStore{CachedMetadataStore: c, tx: tx}
	}
	return c
}

func newCachedStore(store metadata.Store, config Config) *CachedMetadataStore {
	size := config.SizeMB
	if size < minCacheSizeMB {
		size = minCacheSizeMB
	}

	m := config.Metrics
	if m == nil {
		m = metrics.NewNoopCacheMetrics()
	}

	logger.Debug("Metadata record cache enabled: %d MB, ttl %ds", size, config.TTLSeconds)

	return &CachedMetadataStore{
		store:   store,
		cache:   freecache.NewCache(size * 1024 * 1024),
		ttl:     config.TTLSeconds,
		metrics: m,
	}
}

func (c *CachedMetadataStore) Get(ctx context.Context, id string) (*metadata.File, error) {
	if data, err := c.cache.Get([]byte(id)); err == nil {
		var f metadata.File
		if err := json.Unmarshal(data, &f); err == nil {
			c.hits.Add(1)
			c.metrics.RecordHit()
			return &f, nil
		}
		c.cache.Del([]byte(id))
	}
	c.misses.Add(1)
	c.metrics.RecordMiss()

	gen := c.currentGeneration()
	f, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(f, gen)
	return f, nil
}

func (c *CachedMetadataStore) Create(ctx context.Context, f *metadata.File) error {
	return c.store.Create(ctx, f)
}

func (c *CachedMetadataStore) CreateMany(ctx context.Context, files []*metadata.File) error {
	return c.store.CreateMany(ctx, files)
}

func (c *CachedMetadataStore) Update(ctx context.Context, id string, patch metadata.Patch) error {
	c.cache.Del([]byte(id))
	err := c.store.Update(ctx, id, patch)
	c.invalidate(id)
	return err
}

func (c *CachedMetadataStore) UpdateMany(ctx context.Context, q metadata.Query, patch metadata.Patch) (int, error) {
	n, err := c.store.UpdateMany(ctx, q, patch)
	c.clear()
	return n, err
}

func (c *CachedMetadataStore) Delete(ctx context.Context, id string) error {
	err := c.store.Delete(ctx, id)
	c.invalidate(id)
	return err
}

func (c *CachedMetadataStore) DeleteMany(ctx context.Context, q metadata.Query) (int, error) {
	n, err := c.store.DeleteMany(ctx, q)
	c.clear()
	return n, err
}

func (c *CachedMetadataStore) invalidate(id string) {
	c.mu.Lock()
	c.generation++
	c.cache.Del([]byte(id))
	c.mu.Unlock()
	c.metrics.RecordInvalidation("record")
}

func (c *CachedMetadataStore) clear() {
	c.mu.Lock()
	c.generation++
	c.cache.Clear()
	c.mu.Unlock()
	c.metrics.RecordInvalidation("all")
}

func (c *CachedMetadataStore) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *CachedMetadataStore) GetAll(ctx context.Context, q metadata.Query) ([]*metadata.File, error) {
	return c.store.GetAll(ctx, q)
}

func (c *CachedMetadataStore) Cursor(ctx context.Context, q metadata.Query) (metadata.Cursor, error) {
	return c.store.Cursor(ctx, q)
}

func (c *CachedMetadataStore) Close() error {
	c.cache.Clear()
	return c.store.Close()
}

// Stats returns hit and miss counts since creation.
func (c *CachedMetadataStore) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// put caches f unless an invalidation happened after gen was read.
func (c *CachedMetadataStore) put(f *metadata.File, gen uint64) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return
	}
	if err := c.cache.Set([]byte(f.ID), data, c.ttl); err != nil {
		// Entries larger than 1/1024 of the cache are rejected; serve uncached
		logger.Debug("Metadata cache set %s: %v", f.ID, err)
	}
}

// WithTx runs fn on the backing store's transaction and clears the cache
// afterwards, since any record may have changed inside it.
func (t *transactionalCachedStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx metadata.Store) error) error {
	err := t.tx.WithTx(ctx, fn)
	t.clear()
	return err
}
