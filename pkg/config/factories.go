package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/internal/ratelimiter"
	"github.com/marmos91/dittofiles/pkg/content"
	contentFs "github.com/marmos91/dittofiles/pkg/content/fs"
	contentMemory "github.com/marmos91/dittofiles/pkg/content/memory"
	contentS3 "github.com/marmos91/dittofiles/pkg/content/s3"
	"github.com/marmos91/dittofiles/pkg/files"
	"github.com/marmos91/dittofiles/pkg/gc"
	"github.com/marmos91/dittofiles/pkg/hash"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/metadata/badger"
	"github.com/marmos91/dittofiles/pkg/metadata/cache"
	"github.com/marmos91/dittofiles/pkg/metadata/memory"
	"github.com/marmos91/dittofiles/pkg/metadata/postgres"
	"github.com/mitchellh/mapstructure"
)

// CreateContentStore creates a content store based on configuration.
//
// The Type field selects the implementation; the matching options map is
// decoded with mapstructure and passed to its constructor.
//
// Supported types:
//   - "filesystem": pkg/content/fs (local filesystem storage)
//   - "memory": pkg/content/memory (ephemeral)
//   - "s3": pkg/content/s3 (Amazon S3 or compatible storage)
//
// m may be nil.
func CreateContentStore(ctx context.Context, cfg *ContentConfig, m *MetricsResult) (content.Store, error) {
	if m == nil {
		m = noopMetrics()
	}

	switch cfg.Type {
	case "filesystem":
		return createFilesystemContentStore(ctx, cfg.Filesystem)
	case "memory":
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return contentMemory.NewMemoryContentStore(), nil
	case "s3":
		return createS3ContentStore(ctx, cfg.S3, m.S3)
	default:
		return nil, fmt.Errorf("unknown content store type: %q", cfg.Type)
	}
}

func createFilesystemContentStore(ctx context.Context, options map[string]any) (content.Store, error) {
	var storeCfg contentFs.FSContentStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem content store config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem content store: path is required")
	}

	store, err := contentFs.NewFSContentStore(ctx, storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem content store: %w", err)
	}
	return store, nil
}

// S3Options is the content.s3 configuration section.
type S3Options struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	PartSize        int64  `mapstructure:"part_size"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

func createS3ContentStore(ctx context.Context, options map[string]any, m contentS3.Metrics) (content.Store, error) {
	var storeCfg S3Options
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 content store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 content store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 content store: region is required")
	}

	client, err := NewS3Client(ctx, storeCfg)
	if err != nil {
		return nil, err
	}

	store, err := contentS3.NewS3ContentStore(ctx, contentS3.S3ContentStoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
		PartSize:  storeCfg.PartSize,
		Metrics:   m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 content store: %w", err)
	}

	logger.Info("S3 content store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}

// NewS3Client builds an S3 client from opts. Static credentials are used when
// both keys are set, otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(opts.Region),
	}

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	// More attempts than the SDK's default of 3 for transient 5xx and timeouts
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			// MinIO and Localstack need path-style addressing
			o.UsePathStyle = true
		}
		if opts.ForcePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}

// CreateMetadataStore creates a metadata store based on configuration and,
// when metadata.cache.enabled is set, wraps it with the record cache.
//
// Supported types:
//   - "memory": pkg/metadata/memory (ephemeral)
//   - "badger": pkg/metadata/badger (BadgerDB, persistent)
//   - "postgres": pkg/metadata/postgres (PostgreSQL via pgx)
//
// m may be nil.
func CreateMetadataStore(ctx context.Context, cfg *MetadataConfig, m *MetricsResult) (metadata.Store, error) {
	if m == nil {
		m = noopMetrics()
	}

	var (
		store metadata.Store
		err   error
	)
	switch cfg.Type {
	case "memory":
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		store = memory.NewMemoryMetadataStore()
	case "badger":
		store, err = createBadgerMetadataStore(ctx, cfg.Badger)
	case "postgres":
		store, err = createPostgresMetadataStore(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q (supported: memory, badger, postgres)", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Cache.Enabled {
		return store, nil
	}

	logger.Info("Metadata cache enabled: size=%dMB ttl=%s", cfg.Cache.SizeMB, cfg.Cache.TTL)
	return cache.New(store, cache.Config{
		SizeMB:     cfg.Cache.SizeMB,
		TTLSeconds: int(cfg.Cache.TTL / time.Second),
		Metrics:    m.Cache,
	}), nil
}

func createBadgerMetadataStore(ctx context.Context, options map[string]any) (metadata.Store, error) {
	var storeCfg badger.BadgerMetadataStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger metadata store config: %w", err)
	}

	if storeCfg.DBPath == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger metadata store: db_path is required")
	}

	store, err := badger.NewBadgerMetadataStore(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger metadata store: %w", err)
	}
	return store, nil
}

func createPostgresMetadataStore(ctx context.Context, options map[string]any) (metadata.Store, error) {
	var storeCfg postgres.Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &storeCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return nil, fmt.Errorf("failed to decode postgres metadata store config: %w", err)
	}

	if storeCfg.DSN == "" {
		return nil, fmt.Errorf("postgres metadata store: dsn is required")
	}

	store, err := postgres.Open(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres metadata store: %w", err)
	}
	return store, nil
}

// CreateHasher returns the configured content hasher.
func CreateHasher(cfg *FilesConfig) (hash.Hasher, error) {
	h, err := hash.New(cfg.HashAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	return h, nil
}

// CreateController builds the file controller over the given stores.
//
// m may be nil.
func CreateController(cfg *FilesConfig, store metadata.Store, blobs content.Store, m *MetricsResult) (*files.Controller, error) {
	if m == nil {
		m = noopMetrics()
	}

	h, err := CreateHasher(cfg)
	if err != nil {
		return nil, err
	}

	limiter := ratelimiter.New(cfg.UploadRateLimit, cfg.UploadBurst)
	if limiter != nil {
		logger.Info("Upload admission limited to %.2f/s (burst %d)", cfg.UploadRateLimit, cfg.UploadBurst)
	}

	return files.NewController(files.Config{
		Metadata:       store,
		Content:        blobs,
		Hasher:         h,
		QuotaBytes:     cfg.QuotaBytes,
		UploadLimiter:  limiter,
		BufferSize:     cfg.BufferSize,
		BufferPoolSize: cfg.BufferPoolSize,
		CleanupTimeout: cfg.CleanupTimeout,
		Metrics:        m.Files,
	})
}

// CreateCollector builds the orphan collector. guard is normally the
// controller serving the same stores; nil disables temp blob collection.
//
// m may be nil.
func CreateCollector(cfg *gc.Config, store metadata.Store, blobs content.Store, guard gc.Guard, m *MetricsResult) (*gc.Collector, error) {
	if m == nil {
		m = noopMetrics()
	}
	return gc.NewCollector(store, blobs, guard, *cfg, m.GC)
}
