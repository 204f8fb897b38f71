package receipt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSStorage stores images as objects in a Google Cloud Storage bucket.
// Credentials come from Application Default Credentials.
type GCSStorage struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStorage creates a GCS client for bucket. Objects are written under prefix.
func NewGCSStorage(ctx context.Context, bucket, prefix string) (*GCSStorage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStorage{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (g *GCSStorage) object(ref string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(path.Join(g.prefix, ref))
}

// Save uploads data as an object named name
func (g *GCSStorage) Save(ctx context.Context, name string, data []byte) (string, error) {
	w := g.object(name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("write object %q: %w", name, classifyGCSError(err))
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload %q: %w", name, classifyGCSError(err))
	}
	return name, nil
}

// Get downloads an object
func (g *GCSStorage) Get(ctx context.Context, ref string) ([]byte, error) {
	r, err := g.object(ref).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %q: %w", ref, classifyGCSError(err))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %q: %w", ref, err)
	}
	return data, nil
}

// Delete removes an object
func (g *GCSStorage) Delete(ctx context.Context, ref string) error {
	if err := g.object(ref).Delete(ctx); err != nil {
		return fmt.Errorf("delete object %q: %w", ref, classifyGCSError(err))
	}
	return nil
}

// Close closes the GCS client
func (g *GCSStorage) Close() error {
	return g.client.Close()
}

func classifyGCSError(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusUnauthorized) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
