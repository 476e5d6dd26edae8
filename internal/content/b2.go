package content

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Backblaze/blazer/b2"
)

// b2Backend is a remoteBackend over Backblaze B2. Grounded on the
// teacher's declared-but-unused Backblaze/blazer dependency (see
// DESIGN.md).
type b2Backend struct {
	bucket *b2.Bucket
	prefix string
}

// B2Config configures the Backblaze B2-backed content store.
type B2Config struct {
	AccountID string
	AppKey    string
	Bucket    string
	Prefix    string
	CacheDir  string
}

// NewB2Store builds a Store backed by Backblaze B2 with local-disk
// caching.
func NewB2Store(ctx context.Context, cfg B2Config) (Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("b2 bucket is required")
	}

	client, err := b2.NewClient(ctx, cfg.AccountID, cfg.AppKey)
	if err != nil {
		return nil, fmt.Errorf("build b2 client: %w", err)
	}

	bucket, err := client.Bucket(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("open b2 bucket %q: %w", cfg.Bucket, err)
	}

	backend := &b2Backend{bucket: bucket, prefix: cfg.Prefix}
	return newCachingStore(backend, cfg.CacheDir), nil
}

func (b *b2Backend) objectName(dir, name string) string {
	if b.prefix == "" {
		return dir + "/" + name
	}
	return b.prefix + "/" + dir + "/" + name
}

func (b *b2Backend) exists(ctx context.Context, dir, name string) bool {
	obj := b.bucket.Object(b.objectName(dir, name))
	if _, err := obj.Attrs(ctx); err != nil {
		return false
	}
	return true
}

func (b *b2Backend) fetch(ctx context.Context, dir, name string) (io.ReadCloser, error) {
	obj := b.bucket.Object(b.objectName(dir, name))
	return obj.NewReader(ctx), nil
}
