package id

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Backend is a small key/value object store. Node providers use it to keep a
// node's identity across restarts; any S3-like store or a local directory
// will do.
type Backend interface {
	// Object operations
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// PutIfAbsent creates key only if nothing is stored there yet.
	// Returns ErrAlreadyExists otherwise.
	PutIfAbsent(ctx context.Context, key string, data []byte) error

	// Conditional operations (for optimistic locking)
	// Returns ETag after successful put
	PutIfMatch(ctx context.Context, key string, data []byte, expectedETag string) (string, error)
	GetWithETag(ctx context.Context, key string) (data []byte, etag string, err error)

	// Health check
	Ping(ctx context.Context) error

	// Resource cleanup
	Close() error
}

// Backend type names accepted by BackendConfig.Type.
const (
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
	BackendMinIO      = "minio"
	BackendGCS        = "gcs"
)

// BackendConfig holds configuration for any backend
type BackendConfig struct {
	Type       string            // "s3", "filesystem", "minio", "gcs"
	Bucket     string            // bucket or base directory
	Region     string            // AWS region (S3 only)
	Endpoint   string            // Custom endpoint (for S3-compatible services)
	PathPrefix string            // Optional prefix for all keys
	Options    map[string]string // Backend-specific options
}

// Validate checks if the BackendConfig is valid
func (c BackendConfig) Validate() error {
	if c.Type == "" {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Type",
			"reason": "backend type is required",
		})
	}
	if c.Bucket == "" {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Bucket",
			"reason": "bucket/base path is required",
		})
	}

	// Type-specific validation
	switch c.Type {
	case BackendS3:
		if c.Region == "" && c.Endpoint == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Region/Endpoint",
				"reason": "S3 backend requires either Region or Endpoint",
			})
		}
	case BackendMinIO:
		if c.Endpoint == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Endpoint",
				"reason": "MinIO backend requires an endpoint",
			})
		}
	case BackendFilesystem, BackendGCS:
	default:
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Type",
			"value":  c.Type,
			"reason": "unknown backend type",
		})
	}

	return nil
}

// NewBackend builds the backend cfg describes. S3 credentials come from the
// default AWS chain; MinIO reads "access_key", "secret_key" and "use_ssl"
// from Options; GCS reads "project_id" and "credentials_file".
// A non-empty PathPrefix is applied to every key.
func NewBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var backend Backend
	switch cfg.Type {
	case BackendFilesystem:
		backend = NewFilesystemBackend(cfg.Bucket)

	case BackendS3:
		opts := []func(*config.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = &cfg.Endpoint
				o.UsePathStyle = true
			}
		})
		backend = NewS3Backend(client, cfg.Bucket)

	case BackendMinIO:
		b, err := NewMinIOBackend(MinIOConfig{
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.Options["access_key"],
			SecretAccessKey: cfg.Options["secret_key"],
			UseSSL:          cfg.Options["use_ssl"] == "true",
			Bucket:          cfg.Bucket,
		})
		if err != nil {
			return nil, err
		}
		backend = b

	case BackendGCS:
		b, err := NewGCSBackend(ctx, GCSConfig{
			ProjectID:       cfg.Options["project_id"],
			Bucket:          cfg.Bucket,
			CredentialsFile: cfg.Options["credentials_file"],
		})
		if err != nil {
			return nil, err
		}
		backend = b
	}

	if cfg.PathPrefix != "" {
		backend = &prefixedBackend{Backend: backend, prefix: cfg.PathPrefix}
	}
	return backend, nil
}

// prefixedBackend prepends a fixed prefix to every key.
type prefixedBackend struct {
	Backend
	prefix string
}

func (p *prefixedBackend) key(k string) string { return p.prefix + k }

func (p *prefixedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	return p.Backend.Get(ctx, p.key(key))
}

func (p *prefixedBackend) Put(ctx context.Context, key string, data []byte) error {
	return p.Backend.Put(ctx, p.key(key), data)
}

func (p *prefixedBackend) Delete(ctx context.Context, key string) error {
	return p.Backend.Delete(ctx, p.key(key))
}

func (p *prefixedBackend) Exists(ctx context.Context, key string) (bool, error) {
	return p.Backend.Exists(ctx, p.key(key))
}

func (p *prefixedBackend) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	return p.Backend.PutIfAbsent(ctx, p.key(key), data)
}

func (p *prefixedBackend) PutIfMatch(ctx context.Context, key string, data []byte, expectedETag string) (string, error) {
	return p.Backend.PutIfMatch(ctx, p.key(key), data, expectedETag)
}

func (p *prefixedBackend) GetWithETag(ctx context.Context, key string) ([]byte, string, error) {
	return p.Backend.GetWithETag(ctx, p.key(key))
}
