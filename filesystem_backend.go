package id

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FilesystemBackend implements Backend using local filesystem
type FilesystemBackend struct {
	basePath string
	locks    *StripedLocks // Fine-grained locking per key
}

// NewFilesystemBackend creates a new filesystem backend with 32 lock stripes
func NewFilesystemBackend(basePath string) *FilesystemBackend {
	return NewFilesystemBackendWithStripes(basePath, 32)
}

// NewFilesystemBackendWithStripes creates a filesystem backend with custom stripe count
func NewFilesystemBackendWithStripes(basePath string, stripes int) *FilesystemBackend {
	return &FilesystemBackend{
		basePath: basePath,
		locks:    NewStripedLocks(stripes),
	}
}

func (b *FilesystemBackend) getPath(key string) string {
	return filepath.Join(b.basePath, filepath.FromSlash(key))
}

func (b *FilesystemBackend) Get(ctx context.Context, key string) ([]byte, error) {
	unlock := b.locks.RLock(key)
	defer unlock()

	return b.read(key)
}

func (b *FilesystemBackend) read(key string) ([]byte, error) {
	data, err := os.ReadFile(b.getPath(key))
	if err != nil {
		return nil, mapFSError(err)
	}
	return data, nil
}

func (b *FilesystemBackend) Put(ctx context.Context, key string, data []byte) error {
	unlock := b.locks.Lock(key)
	defer unlock()

	return b.write(key, data)
}

// write replaces key through a temp file and rename so readers never see a
// partial record.
func (b *FilesystemBackend) write(key string, data []byte) error {
	path := b.getPath(key)
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), DefaultFilePermissions); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// PutIfAbsent uses O_EXCL so that separate processes sharing the directory
// also see only one winner.
func (b *FilesystemBackend) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	unlock := b.locks.Lock(key)
	defer unlock()

	path := b.getPath(key)
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, DefaultFilePermissions)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return WithContext(ErrAlreadyExists, map[string]interface{}{"key": key})
		}
		return mapFSError(err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func (b *FilesystemBackend) Delete(ctx context.Context, key string) error {
	unlock := b.locks.Lock(key)
	defer unlock()

	if err := os.Remove(b.getPath(key)); err != nil {
		return mapFSError(err)
	}
	return nil
}

func (b *FilesystemBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(b.getPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *FilesystemBackend) GetWithETag(ctx context.Context, key string) ([]byte, string, error) {
	unlock := b.locks.RLock(key)
	defer unlock()

	data, err := b.read(key)
	if err != nil {
		return nil, "", err
	}
	return data, contentETag(data), nil
}

// PutIfMatch writes data if the stored content still hashes to expectedETag.
// An empty expectedETag writes unconditionally.
func (b *FilesystemBackend) PutIfMatch(ctx context.Context, key string, data []byte, expectedETag string) (string, error) {
	// Lock this specific key to ensure atomic check-and-write
	unlock := b.locks.Lock(key)
	defer unlock()

	if expectedETag != "" {
		current, err := b.read(key)
		if err != nil {
			return "", err
		}

		if currentETag := contentETag(current); currentETag != expectedETag {
			return "", WithContext(ErrConflict, map[string]interface{}{
				"expected": expectedETag,
				"actual":   currentETag,
			})
		}
	}

	if err := b.write(key, data); err != nil {
		return "", err
	}
	return contentETag(data), nil
}

func (b *FilesystemBackend) Ping(ctx context.Context) error {
	// Check if base directory exists and is writable
	info, err := os.Stat(b.basePath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("base path is not a directory: %s", b.basePath)
	}

	testFile := filepath.Join(b.basePath, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), DefaultFilePermissions); err != nil {
		return fmt.Errorf("cannot write to base path: %w", err)
	}
	os.Remove(testFile)

	return nil
}

func (b *FilesystemBackend) Close() error {
	return nil
}

// contentETag is the hex MD5 of data, matching what S3 reports for
// single-part uploads.
func contentETag(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func mapFSError(err error) error {
	switch {
	case os.IsNotExist(err):
		return ErrNotFound
	case os.IsPermission(err):
		return ErrUnauthorized
	}
	return err
}
