package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const configHeader = `dittofiles Configuration File
Every value can be overridden with an environment variable named after its
path, e.g. DITTOFILES_LOGGING_LEVEL=DEBUG or DITTOFILES_METADATA_TYPE=memory.`

// InitConfig writes a sample configuration to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration to path, creating parent
// directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as a commented YAML document whose
// keys match the mapstructure tags Load reads.
func generateYAMLWithComments(cfg *Config) (string, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	logging := mapping()
	if err := addPairs(logging,
		pair{"level", "DEBUG, INFO, WARN or ERROR", cfg.Logging.Level},
		pair{"format", "text or json", cfg.Logging.Format},
		pair{"output", "stdout, stderr or a file path", cfg.Logging.Output},
	); err != nil {
		return "", err
	}
	addNode(root, "logging", "Logging", logging)

	metricsNode := mapping()
	if err := addPairs(metricsNode,
		pair{"enabled", "", cfg.Server.Metrics.Enabled},
		pair{"port", "", cfg.Server.Metrics.Port},
	); err != nil {
		return "", err
	}
	server := mapping()
	if err := addPairs(server,
		pair{"shutdown_timeout", "Maximum time to wait for services to stop", duration(cfg.Server.ShutdownTimeout)},
	); err != nil {
		return "", err
	}
	addNode(server, "metrics", "Prometheus metrics served on /metrics", metricsNode)
	addNode(root, "server", "Process settings", server)

	contentNode := mapping()
	if err := addPairs(contentNode,
		pair{"type", "filesystem, memory or s3", cfg.Content.Type},
		pair{"filesystem", "", cfg.Content.Filesystem},
		pair{"memory", "", cfg.Content.Memory},
		pair{"s3", "region, bucket, key_prefix, endpoint, access_key_id,\nsecret_access_key, force_path_style, part_size, max_retries", cfg.Content.S3},
	); err != nil {
		return "", err
	}
	addNode(root, "content", "Blob storage. Blobs are keyed by content hash.", contentNode)

	cacheNode := mapping()
	if err := addPairs(cacheNode,
		pair{"enabled", "", cfg.Metadata.Cache.Enabled},
		pair{"size_mb", "", cfg.Metadata.Cache.SizeMB},
		pair{"ttl", "", duration(cfg.Metadata.Cache.TTL)},
	); err != nil {
		return "", err
	}
	metadataNode := mapping()
	if err := addPairs(metadataNode,
		pair{"type", "memory, badger or postgres", cfg.Metadata.Type},
		pair{"memory", "", cfg.Metadata.Memory},
		pair{"badger", "db_path, in_memory, sync_writes, block_cache_size_mb, index_cache_size_mb", cfg.Metadata.Badger},
		pair{"postgres", "dsn, max_open_conns, max_idle_conns, conn_max_lifetime, auto_migrate", cfg.Metadata.Postgres},
	); err != nil {
		return "", err
	}
	addNode(metadataNode, "cache", "Record cache in front of the selected store", cacheNode)
	addNode(root, "metadata", "File and folder records", metadataNode)

	filesNode := mapping()
	if err := addPairs(filesNode,
		pair{"hash_algorithm", "sha256, sha512 or blake2b-256. Fixed for the lifetime of a deployment.", cfg.Files.HashAlgorithm},
		pair{"quota_bytes", "Total bytes per owner, 0 = unlimited", cfg.Files.QuotaBytes},
		pair{"upload_rate_limit", "Uploads admitted per second, 0 = unlimited", cfg.Files.UploadRateLimit},
		pair{"upload_burst", "", cfg.Files.UploadBurst},
		pair{"buffer_size", "", cfg.Files.BufferSize},
		pair{"buffer_pool_size", "", cfg.Files.BufferPoolSize},
		pair{"cleanup_timeout", "", duration(cfg.Files.CleanupTimeout)},
	); err != nil {
		return "", err
	}
	addNode(root, "files", "File controller", filesNode)

	gcNode := mapping()
	if err := addPairs(gcNode,
		pair{"enabled", "", cfg.GC.Enabled},
		pair{"interval", "", duration(cfg.GC.Interval)},
		pair{"timeout", "", duration(cfg.GC.Timeout)},
		pair{"batch_size", "", cfg.GC.BatchSize},
		pair{"dry_run", "Log what would be removed without deleting", cfg.GC.DryRun},
	); err != nil {
		return "", err
	}
	addNode(root, "gc", "Removes blobs no file references", gcNode)

	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: configHeader,
		Content:     []*yaml.Node{root},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}

	return buf.String(), nil
}

type pair struct {
	key     string
	comment string
	value   any
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode}
}

func addPairs(m *yaml.Node, pairs ...pair) error {
	for _, p := range pairs {
		var value yaml.Node
		if err := value.Encode(p.value); err != nil {
			return fmt.Errorf("encode %s: %w", p.key, err)
		}
		addNode(m, p.key, p.comment, &value)
	}
	return nil
}

func addNode(m *yaml.Node, key, comment string, value *yaml.Node) {
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key, HeadComment: comment},
		value,
	)
}

// duration renders d the way time.ParseDuration reads it back.
func duration(d time.Duration) string {
	return d.String()
}
