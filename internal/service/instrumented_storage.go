package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/noah-isme/campus-print-api/pkg/storage"
)

type storageObserver interface {
	ObserveStorage(op string, err error, duration time.Duration)
}

// InstrumentedStorage times every backend call.
type InstrumentedStorage struct {
	next     storage.Backend
	observer storageObserver
}

// NewInstrumentedStorage wraps a backend with storage metrics.
func NewInstrumentedStorage(next storage.Backend, observer storageObserver) *InstrumentedStorage {
	if observer == nil {
		observer = (*MetricsService)(nil)
	}
	return &InstrumentedStorage{next: next, observer: observer}
}

func (s *InstrumentedStorage) observe(op string, started time.Time, err error) {
	// A missing object is an expected answer, not a backend failure.
	if errors.Is(err, storage.ErrObjectNotFound) {
		err = nil
	}
	s.observer.ObserveStorage(op, err, time.Since(started))
}

func (s *InstrumentedStorage) Store(ctx context.Context, key string, r io.Reader, contentType string) error {
	started := time.Now()
	err := s.next.Store(ctx, key, r, contentType)
	s.observe("store", started, err)
	return err
}

func (s *InstrumentedStorage) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	started := time.Now()
	rc, err := s.next.Fetch(ctx, key)
	s.observe("fetch", started, err)
	return rc, err
}

func (s *InstrumentedStorage) Delete(ctx context.Context, key string) error {
	started := time.Now()
	err := s.next.Delete(ctx, key)
	s.observe("delete", started, err)
	return err
}

func (s *InstrumentedStorage) Exists(ctx context.Context, key string) (bool, error) {
	started := time.Now()
	ok, err := s.next.Exists(ctx, key)
	s.observe("exists", started, err)
	return ok, err
}

func (s *InstrumentedStorage) List(ctx context.Context) ([]storage.Object, error) {
	started := time.Now()
	objects, err := s.next.List(ctx)
	s.observe("list", started, err)
	return objects, err
}
