package services

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/safeher/apiserver/config"
	"github.com/safeher/apiserver/internal/storage"
	"github.com/safeher/apiserver/internal/store"
	"github.com/safeher/apiserver/types"
)

const attachmentPrefix = "attachments/"

// AttachmentService stores evidence files in object storage.
type AttachmentService struct {
	blobs   BlobStore
	allowed map[string]struct{}
	exts    []string
	maxSize int64
	baseURL string
}

func NewAttachmentService(blobs BlobStore, cfg config.UploadsConfig) *AttachmentService {
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[ext] = struct{}{}
	}
	return &AttachmentService{
		blobs:   blobs,
		allowed: allowed,
		exts:    cfg.AllowedExtensions,
		maxSize: cfg.MaxFileSize,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
}

// CheckName rejects file names whose extension is not allowed.
func (s *AttachmentService) CheckName(name string) error {
	_, err := s.extension(name)
	return err
}

// MaxSize is the largest accepted file, in bytes.
func (s *AttachmentService) MaxSize() int64 {
	return s.maxSize
}

// TooLarge is the rejection returned for files over MaxSize.
func (s *AttachmentService) TooLarge() error {
	if s.maxSize < 1024*1024 {
		return invalid("file", "file too large. Maximum size: %.1fKB", float64(s.maxSize)/1024)
	}
	return invalid("file", "file too large. Maximum size: %.1fMB", float64(s.maxSize)/(1024*1024))
}

func (s *AttachmentService) extension(name string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filepath.Base(strings.TrimSpace(name))), "."))
	if _, ok := s.allowed[ext]; !ok {
		return "", invalid("file", "file type not allowed. Allowed types: %s", strings.Join(s.exts, ", "))
	}
	return ext, nil
}

// Store checks the file name and size against the upload limits and saves
// the file under a fresh key.
func (s *AttachmentService) Store(ctx context.Context, name, contentType string, r io.Reader, size int64) (types.Attachment, error) {
	name = filepath.Base(strings.TrimSpace(name))
	ext, err := s.extension(name)
	if err != nil {
		return types.Attachment{}, err
	}
	if size > s.maxSize {
		return types.Attachment{}, s.TooLarge()
	}
	if size <= 0 {
		return types.Attachment{}, invalid("file", "file is empty")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := attachmentPrefix + uuid.NewString() + "." + ext
	if err := s.blobs.Put(ctx, key, io.LimitReader(r, size), size, contentType); err != nil {
		return types.Attachment{}, err
	}
	return types.Attachment{
		Name: name,
		Type: contentType,
		URL:  s.baseURL + "/" + key,
		Size: size,
	}, nil
}

// Open returns a stored attachment. Keys outside the attachment prefix are
// reported as missing.
func (s *AttachmentService) Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	key = path.Clean(strings.TrimPrefix(key, "/"))
	if !strings.HasPrefix(key, attachmentPrefix) || len(key) == len(attachmentPrefix) {
		return nil, storage.ObjectInfo{}, store.ErrNotFound
	}

	info, err := s.blobs.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectInfo{}, store.ErrNotFound
		}
		return nil, storage.ObjectInfo{}, err
	}
	rc, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	return rc, info, nil
}
