package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
)

// GCSStorage implements Storage using Google Cloud Storage
type GCSStorage struct {
	client     *storage.Client
	bucketName string
	baseDir    string
}

// NewGCSStorage creates a new GCS storage instance
// projectID: Your GCP project ID
// bucketName: The GCS bucket name
// baseDir: Base directory/prefix within the bucket (e.g., "timepilot")
func NewGCSStorage(ctx context.Context, projectID, bucketName, baseDir string) (*GCSStorage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GCS client")
	}

	// Verify bucket exists
	bucket := client.Bucket(bucketName)
	if projectID != "" {
		bucket = bucket.UserProject(projectID)
	}
	if _, err := bucket.Attrs(ctx); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "failed to access bucket %s", bucketName)
	}

	return &GCSStorage{
		client:     client,
		bucketName: bucketName,
		baseDir:    strings.Trim(baseDir, "/"),
	}, nil
}

// Write writes data to GCS
func (s *GCSStorage) Write(ctx context.Context, p string, data []byte) error {
	obj := s.client.Bucket(s.bucketName).Object(s.fullPath(p))
	w := obj.NewWriter(ctx)

	w.ContentType = contentType(p)
	w.CacheControl = "no-cache"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return errors.Wrap(err, "failed to write to GCS")
	}

	if err := w.Close(); err != nil {
		return errors.Wrap(err, "failed to close GCS writer")
	}

	return nil
}

// Read reads data from GCS
func (s *GCSStorage) Read(ctx context.Context, p string) ([]byte, error) {
	obj := s.client.Bucket(s.bucketName).Object(s.fullPath(p))
	r, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read from GCS")
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read data")
	}

	return data, nil
}

// Delete deletes an object from GCS
func (s *GCSStorage) Delete(ctx context.Context, p string) error {
	obj := s.client.Bucket(s.bucketName).Object(s.fullPath(p))
	if err := obj.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return errors.Wrap(err, "failed to delete from GCS")
	}

	return nil
}

// Exists checks if an object exists in GCS
func (s *GCSStorage) Exists(ctx context.Context, p string) (bool, error) {
	obj := s.client.Bucket(s.bucketName).Object(s.fullPath(p))
	_, err := obj.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to check GCS object")
	}

	return true, nil
}

// Close closes the GCS client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) fullPath(p string) string {
	if s.baseDir == "" {
		return p
	}
	return path.Join(s.baseDir, p)
}

func contentType(p string) string {
	switch path.Ext(p) {
	case ".yaml", ".yml":
		return "application/yaml"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
