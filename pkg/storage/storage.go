package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/noah-isme/campus-print-api/pkg/config"
)

var (
	// ErrObjectNotFound is returned by Fetch when the key does not exist.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrObjectExists is returned by Store when the key is already taken.
	ErrObjectExists = errors.New("storage: object already exists")
	// ErrInvalidKey is returned for keys escaping the storage root.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Object describes one stored file.
type Object struct {
	Key        string
	Size       int64
	ModifiedAt time.Time
}

// Backend is the uniform file store used by intake, downloads and cleanup.
type Backend interface {
	Store(ctx context.Context, key string, r io.Reader, contentType string) error
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context) ([]Object, error)
}

// New selects the backend configured by STORAGE_DRIVER.
func New(storageCfg config.StorageConfig, supabaseCfg config.SupabaseConfig) (Backend, error) {
	switch storageCfg.Driver {
	case "", config.StorageDriverLocal:
		return NewLocalStorage(storageCfg.LocalDir)
	case config.StorageDriverSupabase:
		return NewSupabaseStorage(supabaseCfg.URL, supabaseCfg.ServiceKey, supabaseCfg.Bucket)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", storageCfg.Driver)
	}
}
