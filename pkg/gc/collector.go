// Package gc removes blobs that no metadata record needs anymore.
//
// Blobs become orphaned when:
//   - The process dies between a record delete and the blob delete
//   - A blob delete fails after the metadata change committed
//   - An upload is interrupted before its temporary blob is cleaned up
//
// The collector works with any metadata.Store and any content.Store that
// implements content.GarbageCollectable.
package gc

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/content"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/metrics"
)

// Guard coordinates the collector with the process that writes blobs.
//
// files.Controller implements it. LockHash must be the same lock the writer
// holds while it changes references to a hash, and IsUploading must report
// uploads registered under that lock.
type Guard interface {
	LockHash(hash string) (unlock func())
	IsUploading(hash string) bool
}

// Collector periodically deletes orphaned and stale temporary blobs.
//
// Thread Safety: Safe for concurrent use. Concurrent runs lock hashes in
// sorted order and cannot deadlock each other.
type Collector struct {
	store   metadata.Store
	gcStore content.GarbageCollectable
	guard   Guard
	config  Config
	metrics metrics.GCMetrics

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether the background worker runs (default: false)
	Enabled bool `mapstructure:"enabled"`

	// Interval is how often to run garbage collection (default: 24h)
	Interval time.Duration `mapstructure:"interval"`

	// Timeout bounds a single background run (default: 10m)
	Timeout time.Duration `mapstructure:"timeout"`

	// BatchSize is how many blobs to delete per batch (default: 1000).
	// S3 supports up to 1000 objects per DeleteObjects call.
	BatchSize int `mapstructure:"batch_size" validate:"gte=0,lte=1000"`

	// DryRun logs what would be deleted without deleting anything
	DryRun bool `mapstructure:"dry_run"`
}

const (
	DefaultInterval  = 24 * time.Hour
	DefaultTimeout   = 10 * time.Minute
	DefaultBatchSize = 1000
)

// NewCollector creates a collector. It does not start it.
//
// guard may be nil for offline runs (no writer in this process). Without a
// guard, temporary blobs are never collected since an upload elsewhere may
// still own them.
//
// Returns an error if blobs does not implement content.GarbageCollectable.
func NewCollector(
	store metadata.Store,
	blobs content.Store,
	guard Guard,
	config Config,
	m metrics.GCMetrics,
) (*Collector, error) {
	if store == nil || blobs == nil {
		return nil, fmt.Errorf("gc: metadata and content stores are required")
	}
	gcStore, ok := blobs.(content.GarbageCollectable)
	if !ok {
		return nil, fmt.Errorf("gc: content store %T does not implement content.GarbageCollectable", blobs)
	}

	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if m == nil {
		m = metrics.NewNoopGCMetrics()
	}

	return &Collector{
		store:   store,
		gcStore: gcStore,
		guard:   guard,
		config:  config,
		metrics: m,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start launches the background worker. Subsequent calls are no-ops.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	c.startOnce.Do(func() {
		c.started.Store(true)
		logger.Info("Starting garbage collector: interval=%s batch_size=%d dry_run=%v",
			c.config.Interval, c.config.BatchSize, c.config.DryRun)
		go c.worker()
	})
}

// Stop signals the worker and waits for an in-progress run to finish, or for
// ctx to expire. Safe to call multiple times and before Start.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.config.Enabled || !c.started.Load() {
		return nil
	}

	c.stopOnce.Do(func() {
		logger.Info("Stopping garbage collector...")
		close(c.stopCh)
	})

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow runs one collection pass and blocks until it completes or ctx is
// cancelled. It works whether or not the worker is enabled.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)...")
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// candidate is a blob key selected for deletion together with the hash that
// guards it.
type candidate struct {
	key  string
	hash string
	temp bool
}

// collect performs a single pass:
//  1. List every blob key
//  2. Collect the hashes referenced by DEFAULT records
//  3. Select unreferenced permanent keys and temp keys with no live upload
//  4. Per batch, lock the hashes, re-check each candidate and delete
//
// Keys are listed before records are read, so a blob promoted during the
// pass is either missing from the listing or already referenced. The re-check
// under the lock covers records and uploads that changed in between.
func (c *Collector) collect(ctx context.Context) (stats *Stats, err error) {
	stats = &Stats{StartTime: time.Now()}
	defer func() {
		stats.EndTime = time.Now()
		c.metrics.RecordRun(stats.Duration(), int(stats.ExistingCount), err)
	}()

	keys, err := c.gcStore.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list blobs: %w", err)
	}
	stats.ExistingCount = uint64(len(keys))

	referenced, err := c.referencedHashes(ctx)
	if err != nil {
		return stats, err
	}
	stats.ReferencedCount = uint64(len(referenced))

	var candidates []candidate
	for _, key := range keys {
		if content.IsTempKey(key) {
			if c.guard == nil {
				stats.SkippedCount++
				continue
			}
			hash := strings.TrimPrefix(key, content.TempPrefix)
			if c.guard.IsUploading(hash) {
				stats.SkippedCount++
				continue
			}
			candidates = append(candidates, candidate{key: key, hash: hash, temp: true})
			stats.TempCount++
			continue
		}
		if _, ok := referenced[key]; ok {
			continue
		}
		candidates = append(candidates, candidate{key: key, hash: key})
		stats.OrphanedCount++
	}

	if len(candidates) == 0 {
		logger.Debug("GC: nothing to collect among %d blobs", len(keys))
		return stats, nil
	}

	logger.Info("GC: found %d orphaned and %d stale temporary blobs", stats.OrphanedCount, stats.TempCount)

	if c.config.DryRun {
		for i, cand := range candidates {
			if i == 10 {
				logger.Info("GC: DRY RUN ... and %d more", len(candidates)-10)
				break
			}
			logger.Info("GC: DRY RUN would delete %s", cand.key)
		}
		return stats, nil
	}

	for i := 0; i < len(candidates); i += c.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := min(i+c.config.BatchSize, len(candidates))
		if err := c.deleteBatch(ctx, candidates[i:end], stats); err != nil {
			return stats, err
		}
	}

	logger.Info("GC: deleted %d blobs, %d skipped, %d failed, duration=%s",
		stats.DeletedCount, stats.SkippedCount, stats.FailedCount, time.Since(stats.StartTime))
	return stats, nil
}

func (c *Collector) referencedHashes(ctx context.Context) (map[string]struct{}, error) {
	cur, err := c.store.Cursor(ctx, metadata.Query{
		metadata.Eq(metadata.FieldStatus, metadata.StatusDefault),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query referenced hashes: %w", err)
	}
	defer func() { _ = cur.Close() }()

	referenced := make(map[string]struct{})
	for cur.Next(ctx) {
		if h := cur.File().Hash; h != "" {
			referenced[h] = struct{}{}
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to query referenced hashes: %w", err)
	}
	return referenced, nil
}

// deleteBatch re-checks a batch under its hash locks and deletes what is
// still collectable. Only cancellation is returned as an error; everything
// else is counted as a failure.
func (c *Collector) deleteBatch(ctx context.Context, batch []candidate, stats *Stats) error {
	unlock := c.lockHashes(batch)
	defer unlock()

	confirmed := make([]candidate, 0, len(batch))
	for _, cand := range batch {
		ok, err := c.stillCollectable(ctx, cand)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("GC: re-check of %s failed: %v", cand.key, err)
			stats.FailedCount++
			continue
		}
		if !ok {
			stats.SkippedCount++
			continue
		}
		confirmed = append(confirmed, cand)
	}
	if len(confirmed) == 0 {
		return nil
	}

	keys := make([]string, len(confirmed))
	for i, cand := range confirmed {
		keys[i] = cand.key
	}

	failures, err := c.gcStore.DeleteBatch(ctx, keys)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("GC: batch delete failed: %v", err)
		stats.FailedCount += uint64(len(keys))
		return nil
	}

	var orphans, temps int
	for _, cand := range confirmed {
		if ferr, failed := failures[cand.key]; failed {
			logger.Debug("GC: failed to delete %s: %v", cand.key, ferr)
			stats.FailedCount++
			continue
		}
		stats.DeletedCount++
		if cand.temp {
			temps++
		} else {
			orphans++
		}
	}
	c.metrics.RecordRemoved("orphan", orphans)
	c.metrics.RecordRemoved("temp", temps)
	return nil
}

func (c *Collector) stillCollectable(ctx context.Context, cand candidate) (bool, error) {
	if cand.temp {
		return !c.guard.IsUploading(cand.hash), nil
	}

	cur, err := c.store.Cursor(ctx, metadata.Query{
		metadata.Eq(metadata.FieldHash, cand.hash),
		metadata.Eq(metadata.FieldStatus, metadata.StatusDefault),
	})
	if err != nil {
		return false, err
	}
	defer func() { _ = cur.Close() }()

	if cur.Next(ctx) {
		return false, nil
	}
	return true, cur.Err()
}

// lockHashes takes the guard lock of every distinct hash in batch, in sorted
// order, and returns a function releasing them all.
func (c *Collector) lockHashes(batch []candidate) func() {
	if c.guard == nil {
		return func() {}
	}

	seen := make(map[string]struct{}, len(batch))
	hashes := make([]string, 0, len(batch))
	for _, cand := range batch {
		if _, ok := seen[cand.hash]; ok {
			continue
		}
		seen[cand.hash] = struct{}{}
		hashes = append(hashes, cand.hash)
	}
	sort.Strings(hashes)

	unlocks := make([]func(), 0, len(hashes))
	for _, h := range hashes {
		unlocks = append(unlocks, c.guard.LockHash(h))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime       time.Time // When collection started
	EndTime         time.Time // When collection ended
	ReferencedCount uint64    // Distinct hashes referenced by DEFAULT records
	ExistingCount   uint64    // Blob keys in the content store
	OrphanedCount   uint64    // Unreferenced permanent blobs found
	TempCount       uint64    // Stale temporary blobs found
	SkippedCount    uint64    // Candidates left alone (live upload or re-referenced)
	DeletedCount    uint64    // Blobs deleted
	FailedCount     uint64    // Blobs that failed to delete
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("referenced=%d existing=%d orphaned=%d temp=%d skipped=%d deleted=%d failed=%d duration=%s",
		s.ReferencedCount, s.ExistingCount, s.OrphanedCount, s.TempCount,
		s.SkippedCount, s.DeletedCount, s.FailedCount, s.Duration())
}
