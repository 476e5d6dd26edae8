// Package content implements the Content Router (spec.md §4.7) and the
// pluggable content-addressed Store backends (SPEC_FULL.md §4.15).
package content

import (
	"context"
	"io"

	"github.com/wsusd/wsusd/internal/catalog"
	"github.com/wsusd/wsusd/internal/logging"
)

var log = logging.L("content")

// ReadSeekCloser is a seekable stream of known length, satisfying
// http.ServeContent's requirements for ranged GET support.
type ReadSeekCloser interface {
	io.ReadSeekCloser
}

// Store is the content source's consumed interface (spec.md §6):
// Contains(UpdateFile) → bool, Get(UpdateFile) → seekable stream with
// known length.
type Store interface {
	Contains(ctx context.Context, file catalog.UpdateFile) bool
	Get(ctx context.Context, file catalog.UpdateFile) (stream ReadSeekCloser, size int64, err error)
}
