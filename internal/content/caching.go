package content

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/wsusd/wsusd/internal/catalog"
)

// remoteBackend is the minimal shape a remote content backend must
// provide; cachingStore turns it into a Store with local-disk caching so
// every remote backend uniformly supports ranged reads via
// http.ServeContent (spec.md §4.7's HEAD/ranged-GET requirement) despite
// none of the SDKs handing back a natively seekable stream.
type remoteBackend interface {
	// exists checks the remote object's presence without downloading it.
	exists(ctx context.Context, dir, name string) bool
	// fetch downloads the full object.
	fetch(ctx context.Context, dir, name string) (io.ReadCloser, error)
}

// cachingStore downloads an object to {CacheDir}/{dir}/{name} on first
// access and serves every subsequent Get from that local copy.
type cachingStore struct {
	backend  remoteBackend
	cacheDir string

	mu        sync.Mutex
	fetchOnce map[string]*sync.Once
}

func newCachingStore(backend remoteBackend, cacheDir string) *cachingStore {
	return &cachingStore{
		backend:   backend,
		cacheDir:  cacheDir,
		fetchOnce: make(map[string]*sync.Once),
	}
}

func (c *cachingStore) localPath(dir, name string) string {
	return filepath.Join(c.cacheDir, dir, name)
}

func (c *cachingStore) Contains(ctx context.Context, file catalog.UpdateFile) bool {
	dir, name, ok := DigestKey(file)
	if !ok {
		return false
	}
	if _, err := os.Stat(c.localPath(dir, name)); err == nil {
		return true
	}
	return c.backend.exists(ctx, dir, name)
}

func (c *cachingStore) Get(ctx context.Context, file catalog.UpdateFile) (ReadSeekCloser, int64, error) {
	dir, name, ok := DigestKey(file)
	if !ok {
		return nil, 0, fmt.Errorf("file has no digest")
	}

	dest := c.localPath(dir, name)
	if err := c.ensureCached(ctx, dir, name, dest); err != nil {
		return nil, 0, err
	}

	f, err := os.Open(dest)
	if err != nil {
		return nil, 0, fmt.Errorf("open cached content: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat cached content: %w", err)
	}
	return f, info.Size(), nil
}

// ensureCached downloads dest exactly once even under concurrent Get
// calls for the same key.
func (c *cachingStore) ensureCached(ctx context.Context, dir, name, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return nil // cache hit, no re-fetch
	}

	key := dir + "/" + name
	c.mu.Lock()
	once, ok := c.fetchOnce[key]
	if !ok {
		once = &sync.Once{}
		c.fetchOnce[key] = once
	}
	c.mu.Unlock()

	var fetchErr error
	once.Do(func() {
		fetchErr = c.download(ctx, dir, name, dest)
	})

	c.mu.Lock()
	delete(c.fetchOnce, key)
	c.mu.Unlock()

	if fetchErr != nil {
		return fetchErr
	}
	if _, err := os.Stat(dest); err != nil {
		return fmt.Errorf("cache file missing after download: %w", err)
	}
	return nil
}

func (c *cachingStore) download(ctx context.Context, dir, name, dest string) error {
	rc, err := c.backend.fetch(ctx, dir, name)
	if err != nil {
		return fmt.Errorf("fetch remote content: %w", err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write cache temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close cache temp file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize cache file: %w", err)
	}

	log.Info("content downloaded to cache", "dir", dir, "name", name)
	return nil
}
