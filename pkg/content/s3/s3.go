// Package s3 implements content.Store on Amazon S3 or any S3-compatible
// object store (MinIO, Localstack, Cubbit DS3).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/content"
)

const (
	// minPartSize and maxPartSize are the S3 multipart limits.
	minPartSize     = 5 * 1024 * 1024
	maxPartSize     = 5 * 1024 * 1024 * 1024
	defaultPartSize = 10 * 1024 * 1024

	// maxDeleteBatch is the DeleteObjects limit per request.
	maxDeleteBatch = 1000

	abortTimeout = 30 * time.Second
)

// API is the subset of *s3.Client used by the store.
type API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	s3.ListObjectsV2APIClient
}

var _ API = (*s3.Client)(nil)

// S3ContentStore implements content.Store using an S3 bucket.
//
// Key Design:
//   - Object key = KeyPrefix + content key (e.g. "blobs/" + sha256 hex)
//   - Staging keys of in-progress uploads share the prefix ("blobs/_<hash>")
//
// Writes of unknown length are buffered one part at a time: a stream that
// fits in one part is sent with PutObject, anything larger becomes a
// multipart upload which is aborted if any part fails.
//
// Thread Safety:
// Safe for concurrent use. Concurrent writes to the same key are
// last-write-wins.
type S3ContentStore struct {
	client    API
	bucket    string
	keyPrefix string
	partSize  int64
	metrics   Metrics
}

var (
	_ content.Store              = (*S3ContentStore)(nil)
	_ content.Copier             = (*S3ContentStore)(nil)
	_ content.GarbageCollectable = (*S3ContentStore)(nil)
)

// S3ContentStoreConfig contains configuration for the S3 content store.
type S3ContentStoreConfig struct {
	// Client is the configured S3 client
	Client API

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "dittofiles/" results in keys like "dittofiles/abc123"
	KeyPrefix string

	// PartSize is the size of each part for multipart uploads (default: 10MB)
	// Must be between 5MB and 5GB
	PartSize int64

	// Metrics is optional; nil disables collection
	Metrics Metrics
}

// NewS3ContentStore creates a new S3-based content store.
//
// The bucket must already exist - this function verifies access with
// HeadBucket but does not create it.
func NewS3ContentStore(ctx context.Context, cfg S3ContentStoreConfig) (*S3ContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = defaultPartSize
	}
	if partSize < minPartSize {
		return nil, fmt.Errorf("part size must be at least 5MB, got %d bytes", partSize)
	}
	if partSize > maxPartSize {
		return nil, fmt.Errorf("part size must be at most 5GB, got %d bytes", partSize)
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	logger.Info("Opened S3 content store: bucket=%s prefix=%q", cfg.Bucket, cfg.KeyPrefix)

	return &S3ContentStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		partSize:  partSize,
		metrics:   metrics,
	}, nil
}

func (s *S3ContentStore) objectKey(key string) string {
	return s.keyPrefix + key
}

// Write uploads the stream under key.
func (s *S3ContentStore) Write(ctx context.Context, key string, r io.Reader) (n int64, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("Write", time.Since(start), err)
	}()

	if err = content.ValidateKey(key); err != nil {
		return 0, err
	}
	if err = ctx.Err(); err != nil {
		return 0, err
	}

	src := content.NewContextReader(ctx, r)

	var buf bytes.Buffer
	read, err := io.CopyN(&buf, src, s.partSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("write %s: %w", key, err)
	}

	if read < s.partSize {
		if err = s.putObject(ctx, key, buf.Bytes()); err != nil {
			return 0, err
		}
		s.metrics.RecordBytes("write", read)
		return read, nil
	}

	return s.writeMultipart(ctx, key, src, &buf)
}

func (s *S3ContentStore) putObject(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// writeMultipart uploads first (one full part already buffered) followed by
// the rest of src, one part at a time.
func (s *S3ContentStore) writeMultipart(ctx context.Context, key string, src io.Reader, first *bytes.Buffer) (int64, error) {
	objectKey := s.objectKey(key)

	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create multipart upload: %w", err)
	}
	uploadID := created.UploadId

	abort := func(cause error) (int64, error) {
		// Abort on a fresh context so a cancelled caller does not leak parts
		abortCtx, cancel := context.WithTimeout(context.Background(), abortTimeout)
		defer cancel()
		_, abortErr := s.client.AbortMultipartUpload(abortCtx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(s.bucket),
			Key:      aws.String(objectKey),
			UploadId: uploadID,
		})
		var noSuchUpload *types.NoSuchUpload
		if abortErr != nil && !errors.As(abortErr, &noSuchUpload) {
			logger.Warn("Failed to abort multipart upload %s for %s: %v", aws.ToString(uploadID), key, abortErr)
		}
		return 0, cause
	}

	var (
		parts []types.CompletedPart
		total int64
		buf   = first
	)

	for partNumber := int32(1); ; partNumber++ {
		size := int64(buf.Len())
		if size > 0 {
			out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
				Bucket:        aws.String(s.bucket),
				Key:           aws.String(objectKey),
				UploadId:      uploadID,
				PartNumber:    aws.Int32(partNumber),
				Body:          bytes.NewReader(buf.Bytes()),
				ContentLength: aws.Int64(size),
			})
			if err != nil {
				return abort(fmt.Errorf("failed to upload part %d: %w", partNumber, err))
			}
			parts = append(parts, types.CompletedPart{
				ETag:       out.ETag,
				PartNumber: aws.Int32(partNumber),
			})
			total += size
			s.metrics.RecordBytes("write", size)
		}

		if size < s.partSize {
			break
		}

		buf.Reset()
		if _, err := io.CopyN(buf, src, s.partSize); err != nil && !errors.Is(err, io.EOF) {
			return abort(fmt.Errorf("write %s: %w", key, err))
		}
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objectKey),
		UploadId: uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		return abort(fmt.Errorf("failed to complete multipart upload: %w", err))
	}

	logger.Debug("S3 multipart upload of %s complete: %d parts, %d bytes", key, len(parts), total)
	return total, nil
}

// Read streams the object body. The caller must close it.
func (s *S3ContentStore) Read(ctx context.Context, key string) (rc io.ReadCloser, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("Read", time.Since(start), err)
	}()

	if err = content.ValidateKey(key); err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			err = fmt.Errorf("content %s: %w", key, content.ErrContentNotFound)
			return nil, err
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return &metricsReadCloser{
		ReadCloser: result.Body,
		metrics:    s.metrics,
		operation:  "read",
	}, nil
}

// Delete removes the object. S3 DeleteObject already succeeds for missing keys.
func (s *S3ContentStore) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("Delete", time.Since(start), err)
	}()

	if err = content.ValidateKey(key); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

func (s *S3ContentStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := content.ValidateKey(key); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object %s: %w", key, err)
	}
	return true, nil
}

// Copy performs a server-side CopyObject; the payload never leaves S3.
func (s *S3ContentStore) Copy(ctx context.Context, src, dst string) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("Copy", time.Since(start), err)
	}()

	if err = content.ValidateKey(src); err != nil {
		return err
	}
	if err = content.ValidateKey(dst); err != nil {
		return err
	}

	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(s.objectKey(dst)),
		CopySource: aws.String(s.bucket + "/" + s.objectKey(src)),
	})
	if err != nil {
		if isNotFound(err) {
			err = fmt.Errorf("content %s: %w", src, content.ErrContentNotFound)
			return err
		}
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}

// Close is a no-op; the SDK client has no resources to release.
func (s *S3ContentStore) Close() error {
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// trimPrefix strips the key prefix from an object key, reporting false for
// objects outside the prefix.
func (s *S3ContentStore) trimPrefix(objectKey string) (string, bool) {
	if !strings.HasPrefix(objectKey, s.keyPrefix) {
		return "", false
	}
	key := objectKey[len(s.keyPrefix):]
	return key, key != ""
}
