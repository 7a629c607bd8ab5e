package metrics

// CacheMetrics provides observability for the metadata record cache.
type CacheMetrics interface {
	// RecordHit records a lookup served from the cache.
	RecordHit()

	// RecordMiss records a lookup that went to the backing store.
	RecordMiss()

	// RecordInvalidation records a cache invalidation.
	//
	// Parameters:
	//   - scope: "record" when a single id was dropped, "all" when the cache was cleared
	RecordInvalidation(scope string)
}

// NewNoopCacheMetrics returns a CacheMetrics that discards everything.
func NewNoopCacheMetrics() CacheMetrics {
	return noopCacheMetrics{}
}

type noopCacheMetrics struct{}

func (noopCacheMetrics) RecordHit()                      {}
func (noopCacheMetrics) RecordMiss()                     {}
func (noopCacheMetrics) RecordInvalidation(scope string) {}
