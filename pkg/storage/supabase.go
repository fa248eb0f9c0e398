package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	supastorage "github.com/supabase-community/storage-go"
)

const listPageSize = 1000

// SupabaseStorage keeps uploads in a Supabase storage bucket.
type SupabaseStorage struct {
	client *supastorage.Client
	bucket string
	// the storage-go client writes upload headers onto shared state
	uploadMu sync.Mutex
}

// NewSupabaseStorage builds a bucket-scoped client for the project URL.
func NewSupabaseStorage(projectURL, serviceKey, bucket string) (*SupabaseStorage, error) {
	projectURL = strings.TrimRight(projectURL, "/")
	if projectURL == "" || serviceKey == "" {
		return nil, fmt.Errorf("supabase url and service key are required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("supabase bucket is required")
	}
	client := supastorage.NewClient(projectURL+"/storage/v1", serviceKey, nil)
	return &SupabaseStorage{client: client, bucket: bucket}, nil
}

// Store uploads the object without upsert, so an existing key fails instead of being replaced.
func (s *SupabaseStorage) Store(ctx context.Context, key string, r io.Reader, contentType string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := false

	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()
	if _, err := s.client.UploadFile(s.bucket, key, r, supastorage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}); err != nil {
		if isDuplicate(err) {
			return ErrObjectExists
		}
		return fmt.Errorf("upload object %s: %w", key, err)
	}
	return nil
}

// Fetch downloads the object into memory.
func (s *SupabaseStorage) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.client.DownloadFile(s.bucket, key)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("download object %s: %w", key, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the object; removing a missing key is not an error.
func (s *SupabaseStorage) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.RemoveFile(s.bucket, []string{key}); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// Exists lists the key's folder and looks for an exact name match.
func (s *SupabaseStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	dir, name := path.Split(key)
	files, err := s.client.ListFiles(s.bucket, strings.TrimSuffix(dir, "/"), supastorage.FileSearchOptions{
		Limit: listPageSize,
	})
	if err != nil {
		return false, fmt.Errorf("list objects: %w", err)
	}
	for _, f := range files {
		if f.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// List pages through the bucket root. Uploads are stored flat, so folders are skipped.
func (s *SupabaseStorage) List(ctx context.Context) ([]Object, error) {
	objects := make([]Object, 0)
	for offset := 0; ; offset += listPageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		files, err := s.client.ListFiles(s.bucket, "", supastorage.FileSearchOptions{
			Limit:  listPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, f := range files {
			if f.Id == "" {
				continue
			}
			objects = append(objects, Object{
				Key:        f.Name,
				Size:       metadataSize(f.Metadata),
				ModifiedAt: parseTimestamp(f.UpdatedAt, f.CreatedAt),
			})
		}
		if len(files) < listPageSize {
			return objects, nil
		}
	}
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "404")
}

func isDuplicate(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "already exists")
}

func metadataSize(meta interface{}) int64 {
	m, ok := meta.(map[string]interface{})
	if !ok {
		return 0
	}
	if size, ok := m["size"].(float64); ok {
		return int64(size)
	}
	return 0
}

func parseTimestamp(values ...string) time.Time {
	for _, v := range values {
		if v == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return ts
		}
	}
	return time.Time{}
}
