package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/safeher/apiserver/config"
)

// privateCacheControl is set on every stored object. Evidence files and
// exports must not be kept by shared caches.
const privateCacheControl = "private, no-store"

var (
	// ErrObjectNotFound is returned by Get and Stat when the key does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrInvalidKey is returned for empty keys and keys that escape the bucket root.
	ErrInvalidKey = errors.New("invalid object key")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// ObjectStorage is implemented by each blob backend.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Bucket() string
}

// Storage validates object keys before handing them to the backend.
type Storage struct {
	ObjectStorage
}

// New builds the backend selected by cfg.Backend ("minio" or "gcs").
func New(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "", "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return &Storage{ObjectStorage: backend}, nil
}

func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return s.ObjectStorage.Put(ctx, key, r, size, contentType)
}

func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return s.ObjectStorage.Get(ctx, key)
}

func (s *Storage) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	if err := checkKey(key); err != nil {
		return ObjectInfo{}, err
	}
	return s.ObjectStorage.Stat(ctx, key)
}

// checkKey accepts relative, already-clean keys only.
func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key || strings.HasPrefix(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
