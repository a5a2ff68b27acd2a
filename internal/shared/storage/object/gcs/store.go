package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"jobtracker-backend/internal/shared/storage/object"
)

// Store implements ObjectStore on a Google Cloud Storage bucket. Objects stay
// private; downloads stream through the API.
type Store struct {
	client *gcs.Client
	bucket string
	prefix string
}

// New creates a GCS-backed object store. credentialsFile may be empty to use
// application default credentials.
func New(ctx context.Context, bucket, prefix, credentialsFile string) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &Store{client: client, bucket: bucket, prefix: object.NormalizePrefix(prefix)}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) objectName(storageKey string) string {
	return object.Prefixed(s.prefix, storageKey)
}

// Save streams the reader into a new object under the owner's namespace.
func (s *Store) Save(ctx context.Context, ownerID string, fileName string, contentType string, r io.Reader) (string, int64, error) {
	storageKey, err := object.NewKey(ownerID, fileName)
	if err != nil {
		return "", 0, err
	}
	name := s.objectName(storageKey)
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"original-name": fileName}

	written, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return "", 0, fmt.Errorf("gcs write bucket=%s object=%s: %w", s.bucket, name, err)
	}
	if err := w.Close(); err != nil {
		return "", 0, fmt.Errorf("gcs close bucket=%s object=%s: %w", s.bucket, name, err)
	}
	return storageKey, written, nil
}

// Open returns a reader for a stored object.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	name := s.objectName(storageKey)
	rc, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, object.ErrNotFound
		}
		return nil, fmt.Errorf("gcs read bucket=%s object=%s: %w", s.bucket, name, err)
	}
	return rc, nil
}

// Delete removes an object; a missing object counts as deleted.
func (s *Store) Delete(ctx context.Context, storageKey string) error {
	name := s.objectName(storageKey)
	err := s.client.Bucket(s.bucket).Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete bucket=%s object=%s: %w", s.bucket, name, err)
	}
	return nil
}

var _ object.ObjectStore = (*Store)(nil)
