package catalog

import (
	"github.com/google/uuid"
	"github.com/wsusd/wsusd/internal/identity"
)

// Snapshot is an immutable view of the metadata source at one point in
// time: the category/update indices and the three GUID partitions. It
// never changes after construction; SetCatalog replaces the whole
// Snapshot rather than mutating one.
type Snapshot struct {
	Categories map[identity.Identity]*CategoryUpdate
	Updates    map[identity.Identity]*SoftwareUpdate
	Revisions  map[int32]identity.Identity

	RootGuids    []uuid.UUID
	NonLeafGuids []uuid.UUID
	LeafGuids    []uuid.UUID
}

// NewSnapshot pulls a full snapshot out of a MetadataSource.
func NewSnapshot(ms MetadataSource) *Snapshot {
	return &Snapshot{
		Categories:   ms.CategoriesIndex(),
		Updates:      ms.UpdatesIndex(),
		Revisions:    ms.GetIndex(),
		RootGuids:    ms.GetRootUpdates(),
		NonLeafGuids: ms.GetNonLeafUpdates(),
		LeafGuids:    ms.GetLeafUpdates(),
	}
}
