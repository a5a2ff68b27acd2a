package attachments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"jobtracker-backend/internal/shared/storage/object"
)

// ErrNotFound is returned by Get when the handle does not resolve to a blob.
var ErrNotFound = errors.New("attachment not found")

// Stored describes a blob accepted by the store.
type Stored struct {
	Handle      string
	ContentType string
	SizeBytes   int64
	PageCount   int
}

// Store is the resume blob store: policy checks in front of an ObjectStore.
type Store struct {
	Objects object.ObjectStore
	Policy  Policy
}

// NewStore wraps objects with the default policy.
func NewStore(objects object.ObjectStore) *Store {
	return &Store{Objects: objects, Policy: DefaultPolicy()}
}

// Put validates data and stores it under the owner's namespace.
func (s *Store) Put(ctx context.Context, ownerID, fileName, declaredType string, data []byte) (Stored, error) {
	inspection, err := s.Policy.Inspect(data, declaredType, fileName)
	if err != nil {
		return Stored{}, err
	}
	key, size, err := s.Objects.Save(ctx, ownerID, fileName, inspection.ContentType, bytes.NewReader(data))
	if err != nil {
		return Stored{}, fmt.Errorf("save attachment: %w", err)
	}
	return Stored{
		Handle:      key,
		ContentType: inspection.ContentType,
		SizeBytes:   size,
		PageCount:   inspection.PageCount,
	}, nil
}

// Get opens the blob behind handle.
func (s *Store) Get(ctx context.Context, handle string) (io.ReadCloser, error) {
	rc, err := s.Objects.Open(ctx, handle)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	return rc, nil
}

// Delete removes the blob behind handle. Already-missing blobs count as deleted.
func (s *Store) Delete(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	if err := s.Objects.Delete(ctx, handle); err != nil && !errors.Is(err, object.ErrNotFound) {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}
