package metrics

import "time"

// Upload outcomes reported through FilesMetrics.RecordUpload.
const (
	UploadOutcomeSuccess  = "success"
	UploadOutcomeMismatch = "hash_mismatch"
	UploadOutcomeError    = "error"
)

// FilesMetrics provides observability for the file lifecycle controller.
//
// This interface is optional - if not provided to the controller, a no-op
// implementation is used.
//
// Example usage:
//
//	// With metrics enabled
//	m := prometheus.NewFilesMetrics()
//	ctrl := files.NewController(files.Config{Metrics: m, ...})
//
//	// Without metrics (no-op)
//	ctrl := files.NewController(files.Config{...})
type FilesMetrics interface {
	// RecordOperation records a completed controller operation.
	//
	// Parameters:
	//   - operation: Operation name (e.g., "create", "delete", "upload")
	//   - duration: Time taken to complete the operation
	//   - err: Error if the operation failed, nil if successful
	RecordOperation(operation string, duration time.Duration, err error)

	// RecordUpload records the outcome of a binary upload and the bytes received.
	//
	// Parameters:
	//   - outcome: One of the UploadOutcome* constants
	//   - bytes: Number of bytes read from the upload stream
	RecordUpload(outcome string, bytes int64)

	// RecordBlobDeleted records a blob removed because its last reference went away.
	//
	// Parameters:
	//   - reason: "update" or "delete"
	RecordBlobDeleted(reason string)

	// RecordCleanupFailure records a temporary blob that could not be removed.
	RecordCleanupFailure()

	// SetUploadsInFlight updates the number of uploads currently streaming.
	SetUploadsInFlight(count int)
}

// NewNoopFilesMetrics returns a FilesMetrics that discards everything.
func NewNoopFilesMetrics() FilesMetrics {
	return noopFilesMetrics{}
}

type noopFilesMetrics struct{}

func (noopFilesMetrics) RecordOperation(operation string, duration time.Duration, err error) {}
func (noopFilesMetrics) RecordUpload(outcome string, bytes int64)                            {}
func (noopFilesMetrics) RecordBlobDeleted(reason string)                                     {}
func (noopFilesMetrics) RecordCleanupFailure()                                               {}
func (noopFilesMetrics) SetUploadsInFlight(count int)                                        {}
