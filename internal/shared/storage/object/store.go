package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// ObjectStore defines the contract for saving, retrieving and removing binary objects.
type ObjectStore interface {
	Save(ctx context.Context, ownerID string, fileName string, contentType string, r io.Reader) (storageKey string, sizeBytes int64, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing key succeeds.
	Delete(ctx context.Context, storageKey string) error
}
