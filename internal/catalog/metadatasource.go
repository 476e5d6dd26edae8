package catalog

import (
	"github.com/google/uuid"
	"github.com/wsusd/wsusd/internal/identity"
)

// MetadataSource is the read-only interface the core consumes to build a
// Catalog snapshot. It is implemented by an external collaborator (the
// curated update store) and is out of this package's scope beyond the
// shape described in spec.md §6.
type MetadataSource interface {
	GetLeafUpdates() []uuid.UUID
	GetNonLeafUpdates() []uuid.UUID
	GetRootUpdates() []uuid.UUID
	CategoriesIndex() map[identity.Identity]*CategoryUpdate
	UpdatesIndex() map[identity.Identity]*SoftwareUpdate
	// GetIndex returns the catalog's own revision ordinal map.
	GetIndex() map[int32]identity.Identity
}
