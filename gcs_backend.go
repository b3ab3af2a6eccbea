package id

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSBackend implements Backend using Google Cloud Storage. Object
// generations serve as ETags, so conditional writes are atomic.
type GCSBackend struct {
	client *storage.Client
	bucket string
}

// GCSConfig contains GCS-specific configuration
type GCSConfig struct {
	ProjectID       string
	Bucket          string
	CredentialsFile string // Path to service account JSON file (optional, uses ADC if empty)
	Endpoint        string // Optional endpoint override, e.g. a local emulator
}

// NewGCSBackend creates a new GCS backend
func NewGCSBackend(ctx context.Context, cfg GCSConfig) (*GCSBackend, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSBackend{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func (b *GCSBackend) object(key string) *storage.ObjectHandle {
	return b.client.Bucket(b.bucket).Object(key)
}

func (b *GCSBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, _, err := b.GetWithETag(ctx, key)
	return data, err
}

func (b *GCSBackend) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.write(ctx, b.object(key), data)
	return err
}

func (b *GCSBackend) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	_, err := b.write(ctx, b.object(key).If(storage.Conditions{DoesNotExist: true}), data)
	if isGCSPrecondition(err) {
		return WithContext(ErrAlreadyExists, map[string]interface{}{"key": key})
	}
	return err
}

func (b *GCSBackend) Delete(ctx context.Context, key string) error {
	return mapGCSError(b.object(key).Delete(ctx))
}

func (b *GCSBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetWithETag reads the object and returns its generation as the ETag. The
// reader is pinned to the generation it reports.
func (b *GCSBackend) GetWithETag(ctx context.Context, key string) ([]byte, string, error) {
	reader, err := b.object(key).NewReader(ctx)
	if err != nil {
		return nil, "", mapGCSError(err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", err
	}

	return data, strconv.FormatInt(reader.Attrs.Generation, 10), nil
}

// PutIfMatch writes data only if the stored generation equals expectedETag.
// An empty expectedETag writes unconditionally.
func (b *GCSBackend) PutIfMatch(ctx context.Context, key string, data []byte, expectedETag string) (string, error) {
	obj := b.object(key)
	if expectedETag != "" {
		gen, err := strconv.ParseInt(expectedETag, 10, 64)
		if err != nil {
			return "", WithContext(ErrConflict, map[string]interface{}{
				"expected": expectedETag,
				"reason":   "not a generation number",
			})
		}
		obj = obj.If(storage.Conditions{GenerationMatch: gen})
	}

	attrs, err := b.write(ctx, obj, data)
	if err != nil {
		if isGCSPrecondition(err) {
			return "", WithContext(ErrConflict, map[string]interface{}{
				"expected": expectedETag,
			})
		}
		return "", err
	}

	return strconv.FormatInt(attrs.Generation, 10), nil
}

func (b *GCSBackend) write(ctx context.Context, obj *storage.ObjectHandle, data []byte) (*storage.ObjectAttrs, error) {
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return writer.Attrs(), nil
}

func (b *GCSBackend) Ping(ctx context.Context) error {
	_, err := b.client.Bucket(b.bucket).Attrs(ctx)
	return err
}

func (b *GCSBackend) Close() error {
	return b.client.Close()
}

func isGCSPrecondition(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}

func mapGCSError(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusForbidden, http.StatusUnauthorized:
			return ErrUnauthorized
		case http.StatusServiceUnavailable, http.StatusTooManyRequests:
			return WithContext(ErrBackendUnavailable, map[string]interface{}{"status": apiErr.Code})
		}
	}
	return err
}
