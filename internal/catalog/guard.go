package catalog

import (
	"errors"
	"sync"

	"github.com/wsusd/wsusd/internal/logging"
)

var log = logging.L("catalog")

// ErrCatalogUnavailable is returned when a read is attempted while no
// catalog has been published yet (spec.md §7, CatalogUnavailable).
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// Guard is the single reader/writer lock protecting the catalog and its
// derived indices as one unit (spec.md §4.3). Readers hold the lock for
// the duration of building their reply, including reading metadata
// streams. SetCatalog holds the write lock across the full re-index.
type Guard struct {
	mu  sync.RWMutex
	idx *Indices
}

func NewGuard() *Guard {
	return &Guard{idx: emptyIndices()}
}

// SetCatalog implements the Catalog Indexer (spec.md §4.1). snap may be nil
// to clear the catalog.
func (g *Guard) SetCatalog(snap *Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if snap == nil {
		g.idx = emptyIndices()
		log.Info("catalog cleared")
		return
	}

	g.idx = buildIndices(snap)
	log.Info("catalog swapped",
		"categories", len(snap.Categories),
		"updates", len(snap.Updates),
		"roots", len(snap.RootGuids),
		"nonLeaves", len(snap.NonLeafGuids),
		"leaves", len(snap.LeafGuids),
	)
}

// Read runs fn with the read lock held and the current Indices. Returns
// ErrCatalogUnavailable without calling fn if no catalog has been
// published.
func (g *Guard) Read(fn func(*Indices) error) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.idx == nil || g.idx.Snapshot == nil {
		return ErrCatalogUnavailable
	}
	return fn(g.idx)
}

// Published reports whether a non-nil catalog snapshot is currently live.
func (g *Guard) Published() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.idx != nil && g.idx.Snapshot != nil
}
