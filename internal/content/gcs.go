package content

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// gcsBackend is a remoteBackend over Google Cloud Storage. Grounded on the
// teacher's declared-but-unused cloud.google.com/go/storage dependency
// (see DESIGN.md).
type gcsBackend struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSConfig configures the GCS-backed content store.
type GCSConfig struct {
	Bucket   string
	Prefix   string
	CacheDir string
}

// NewGCSStore builds a Store backed by Google Cloud Storage with
// local-disk caching.
func NewGCSStore(ctx context.Context, cfg GCSConfig) (Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("build gcs client: %w", err)
	}

	backend := &gcsBackend{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
	return newCachingStore(backend, cfg.CacheDir), nil
}

func (b *gcsBackend) objectName(dir, name string) string {
	if b.prefix == "" {
		return dir + "/" + name
	}
	return b.prefix + "/" + dir + "/" + name
}

func (b *gcsBackend) exists(ctx context.Context, dir, name string) bool {
	_, err := b.client.Bucket(b.bucket).Object(b.objectName(dir, name)).Attrs(ctx)
	if err == nil {
		return true
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false
	}
	log.Warn("gcs object attrs check failed", "bucket", b.bucket, "object", b.objectName(dir, name), "error", err)
	return false
}

func (b *gcsBackend) fetch(ctx context.Context, dir, name string) (io.ReadCloser, error) {
	return b.client.Bucket(b.bucket).Object(b.objectName(dir, name)).NewReader(ctx)
}
