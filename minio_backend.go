package id

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MinIOConfig contains MinIO-specific configuration
type MinIOConfig struct {
	Endpoint        string // e.g., "localhost:9000" or "minio.example.com"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool // Whether to use HTTPS (default: false for localhost)
	Bucket          string
}

// NewMinIOBackend creates a new MinIO backend.
// MinIO is S3-compatible, so this is an S3Backend with a path-style client.
//
//	backend, err := id.NewMinIOBackend(id.MinIOConfig{
//	    Endpoint:        "localhost:9000",
//	    AccessKeyID:     "minioadmin",
//	    SecretAccessKey: "minioadmin",
//	    Bucket:          "nodes",
//	})
//	provider := id.NewStoredNode(backend, id.DefaultNodeKey, id.NewRandomNode(), logger, metrics)
func NewMinIOBackend(cfg MinIOConfig) (*S3Backend, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Endpoint/Bucket",
			"reason": "MinIO backend requires an endpoint and a bucket",
		})
	}
	return NewS3Backend(NewMinIOClient(cfg), cfg.Bucket), nil
}

// NewMinIOClient returns an S3 client configured for a MinIO endpoint.
func NewMinIOClient(cfg MinIOConfig) *s3.Client {
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	endpoint := fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)

	return s3.New(s3.Options{
		BaseEndpoint: aws.String(endpoint),
		Region:       "us-east-1", // MinIO doesn't enforce regions, but SDK requires it
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		UsePathStyle: true, // MinIO uses path-style addressing: http://host/bucket/key
	})
}
