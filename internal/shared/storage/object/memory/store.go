package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"jobtracker-backend/internal/shared/storage/object"
)

// Store keeps objects in process memory. It backs local development without a
// data directory and the tests of packages that depend on an ObjectStore.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New constructs an empty Store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// Save copies the reader into memory under a fresh key.
func (s *Store) Save(ctx context.Context, ownerID string, fileName string, contentType string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	key, err := object.NewKey(ownerID, fileName)
	if err != nil {
		return "", 0, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return key, int64(len(data)), nil
}

// Open returns a reader over a stored object.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.objects[storageKey]
	s.mu.RUnlock()
	if !ok {
		return nil, object.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes an object; missing keys are ignored.
func (s *Store) Delete(ctx context.Context, storageKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, storageKey)
	s.mu.Unlock()
	return nil
}

// Has reports whether an object is stored under storageKey.
func (s *Store) Has(storageKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[storageKey]
	return ok
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

var _ object.ObjectStore = (*Store)(nil)
