package content

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wsusd/wsusd/internal/catalog"
)

// containedPath ensures that the resolved path stays within basePath.
// Grounded on internal/backup/providers/local.go's traversal guard.
func containedPath(basePath, untrustedPath string) (string, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return "", fmt.Errorf("resolve base path: %w", err)
	}
	joined := filepath.Join(absBase, filepath.FromSlash(untrustedPath))
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if !strings.HasPrefix(absJoined, absBase+string(filepath.Separator)) && absJoined != absBase {
		return "", fmt.Errorf("path traversal detected: %q resolves outside base %q", untrustedPath, absBase)
	}
	return absJoined, nil
}

// LocalStore reads update files from a digest-named directory tree on
// disk: {BasePath}/{dir}/{name}, matching the Content Router's own key
// layout.
type LocalStore struct {
	BasePath string
}

func NewLocalStore(basePath string) *LocalStore {
	return &LocalStore{BasePath: filepath.Clean(basePath)}
}

func (s *LocalStore) pathFor(file catalog.UpdateFile) (string, error) {
	dir, name, ok := DigestKey(file)
	if !ok {
		return "", errors.New("file has no digest")
	}
	return containedPath(s.BasePath, filepath.Join(dir, name))
}

func (s *LocalStore) Contains(_ context.Context, file catalog.UpdateFile) bool {
	p, err := s.pathFor(file)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func (s *LocalStore) Get(_ context.Context, file catalog.UpdateFile) (ReadSeekCloser, int64, error) {
	p, err := s.pathFor(file)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, 0, fmt.Errorf("open content file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat content file: %w", err)
	}
	return f, info.Size(), nil
}
