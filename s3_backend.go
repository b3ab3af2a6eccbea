package id

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Backend implements Backend using AWS S3 (or S3-compatible storage).
// Conditional writes use the If-Match and If-None-Match request headers, so
// PutIfAbsent and PutIfMatch are atomic on the server.
type S3Backend struct {
	client *s3.Client
	bucket string
}

// NewS3Backend creates a new S3 backend
func NewS3Backend(client *s3.Client, bucket string) *S3Backend {
	return &S3Backend{
		client: client,
		bucket: bucket,
	}
}

// Get retrieves data for the given key from S3
func (b *S3Backend) Get(ctx context.Context, key string) ([]byte, error) {
	data, _, err := b.GetWithETag(ctx, key)
	return data, err
}

// Put stores data for the given key to S3
func (b *S3Backend) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return mapS3Error(err)
}

// PutIfAbsent stores data only when no object exists at key
func (b *S3Backend) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return WithContext(ErrAlreadyExists, map[string]interface{}{"key": key})
		}
		return mapS3Error(err)
	}
	return nil
}

// Delete removes the object at the given key from S3
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	return mapS3Error(err)
}

// Exists checks if an object exists at the given key in S3
func (b *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if errors.Is(mapS3Error(err), ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetWithETag retrieves data and its ETag for optimistic locking from S3
func (b *S3Backend) GetWithETag(ctx context.Context, key string) ([]byte, string, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", mapS3Error(err)
	}
	defer func() { _ = result.Body.Close() }() //nolint:errcheck // Deferred close

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, "", err
	}

	return data, trimETag(result.ETag), nil
}

// PutIfMatch writes data only if the stored object still has expectedETag.
// An empty expectedETag writes unconditionally.
func (b *S3Backend) PutIfMatch(ctx context.Context, key string, data []byte, expectedETag string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if expectedETag != "" {
		input.IfMatch = aws.String(`"` + expectedETag + `"`)
	}

	result, err := b.client.PutObject(ctx, input)
	if err != nil {
		if isPreconditionFailed(err) {
			return "", WithContext(ErrConflict, map[string]interface{}{
				"expected": expectedETag,
			})
		}
		return "", mapS3Error(err)
	}

	return trimETag(result.ETag), nil
}

// Ping checks if the S3 backend is accessible and operational
func (b *S3Backend) Ping(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	return mapS3Error(err)
}

// Close releases any resources held by the S3 backend
func (b *S3Backend) Close() error {
	return nil
}

func trimETag(etag *string) string {
	return strings.Trim(aws.ToString(etag), "\"")
}

// isPreconditionFailed reports a failed If-Match or If-None-Match. S3 answers
// 412; a concurrent conditional write on the same key can also yield 409.
func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}

func mapS3Error(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return ErrNotFound
		case "AccessDenied", "Forbidden":
			return ErrUnauthorized
		case "SlowDown", "ServiceUnavailable", "InternalError":
			return WithContext(ErrBackendUnavailable, map[string]interface{}{
				"code": apiErr.ErrorCode(),
			})
		}
	}
	return err
}
