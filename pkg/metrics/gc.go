package metrics

import "time"

// GCMetrics provides observability for the orphan blob collector.
type GCMetrics interface {
	// RecordRun records a completed collection pass.
	//
	// Parameters:
	//   - duration: Time taken by the pass
	//   - scanned: Number of blob keys inspected
	//   - err: Error if the pass aborted, nil if it completed
	RecordRun(duration time.Duration, scanned int, err error)

	// RecordRemoved records blobs removed by a pass.
	//
	// Parameters:
	//   - kind: "orphan" for unreferenced permanent blobs, "temp" for stale upload blobs
	//   - count: Number of blobs removed
	RecordRemoved(kind string, count int)
}

// NewNoopGCMetrics returns a GCMetrics that discards everything.
func NewNoopGCMetrics() GCMetrics {
	return noopGCMetrics{}
}

type noopGCMetrics struct{}

func (noopGCMetrics) RecordRun(duration time.Duration, scanned int, err error) {}
func (noopGCMetrics) RecordRemoved(kind string, count int)                     {}
