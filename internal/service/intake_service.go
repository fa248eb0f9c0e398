package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/campus-print-api/pkg/errors"
	"github.com/noah-isme/campus-print-api/pkg/storage"
)

// DefaultMaxUploadBytes is the single upload ceiling (25 MiB).
const DefaultMaxUploadBytes int64 = 25 * 1024 * 1024

// DefaultAllowedExtensions lists the document types the shop prints.
var DefaultAllowedExtensions = []string{"pdf", "doc", "docx", "jpg", "jpeg", "png"}

var extensionMimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// Upload is an incoming file before validation.
type Upload struct {
	Name         string
	Size         int64
	Reader       io.Reader
	DeclaredType string
}

// StoredFile describes a file accepted into storage.
type StoredFile struct {
	Key          string
	OriginalName string
	Size         int64
	MimeType     string
}

// IntakeConfig controls upload validation.
type IntakeConfig struct {
	MaxFileSizeBytes  int64
	AllowedExtensions []string
}

// IntakeService validates uploads and hands them to the storage backend.
type IntakeService struct {
	store   storage.Backend
	logger  *zap.Logger
	maxSize int64
	allowed map[string]struct{}
	now     func() time.Time
}

// NewIntakeService constructs the intake service.
func NewIntakeService(store storage.Backend, logger *zap.Logger, cfg IntakeConfig) *IntakeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = DefaultMaxUploadBytes
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = DefaultAllowedExtensions
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed["."+ext] = struct{}{}
		}
	}
	return &IntakeService{
		store:   store,
		logger:  logger,
		maxSize: cfg.MaxFileSizeBytes,
		allowed: allowed,
		now:     time.Now,
	}
}

// MaxFileSize returns the upload ceiling in bytes.
func (s *IntakeService) MaxFileSize() int64 {
	return s.maxSize
}

// Validate checks name and declared size without touching storage.
func (s *IntakeService) Validate(name string, size int64) error {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := s.allowed[ext]; !ok || strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)) == "" {
		return appErrors.Clone(appErrors.ErrUnsupportedFileType, fmt.Sprintf("file type %q is not allowed", ext))
	}
	if size <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if size > s.maxSize {
		return appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("file exceeds the %d byte limit", s.maxSize))
	}
	return nil
}

// AcceptUpload validates the upload and stores it under a fresh unique key.
// The bytes actually read are capped at the limit, so an understated size
// cannot bypass it.
func (s *IntakeService) AcceptUpload(ctx context.Context, upload Upload) (*StoredFile, error) {
	if err := s.Validate(upload.Name, upload.Size); err != nil {
		return nil, err
	}
	if upload.Reader == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file content missing")
	}

	ext := strings.ToLower(filepath.Ext(upload.Name))
	key := fmt.Sprintf("%d-%s%s", s.now().UnixNano(), uuid.NewString(), ext)
	mimeType := detectMimeType(ext, upload.DeclaredType)

	counter := &countingReader{r: io.LimitReader(upload.Reader, s.maxSize+1)}
	if err := s.store.Store(ctx, key, counter, mimeType); err != nil {
		s.logger.Error("failed to store upload", zap.String("key", key), zap.Error(err))
		return nil, appErrors.StorageFailure(err)
	}

	switch {
	case counter.n > s.maxSize:
		s.discard(ctx, key)
		return nil, appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("file exceeds the %d byte limit", s.maxSize))
	case counter.n == 0:
		s.discard(ctx, key)
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}

	return &StoredFile{
		Key:          key,
		OriginalName: filepath.Base(upload.Name),
		Size:         counter.n,
		MimeType:     mimeType,
	}, nil
}

// Discard removes a stored object. Missing objects are not an error.
func (s *IntakeService) Discard(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("discard %s: %w", key, err)
	}
	return nil
}

func (s *IntakeService) discard(ctx context.Context, key string) {
	if err := s.Discard(ctx, key); err != nil {
		s.logger.Warn("failed to discard rejected upload", zap.String("key", key), zap.Error(err))
	}
}

func detectMimeType(ext, declared string) string {
	if m, ok := extensionMimeTypes[ext]; ok {
		return m
	}
	if m := mime.TypeByExtension(ext); m != "" {
		return m
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
