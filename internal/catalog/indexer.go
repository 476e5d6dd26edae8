package catalog

import (
	"github.com/google/uuid"
	"github.com/wsusd/wsusd/internal/identity"
)

// Indices holds the derived lookups rebuilt on every catalog swap (C1).
type Indices struct {
	Snapshot *Snapshot

	// RevisionIndex is the catalog's own revision ordinal: int32 → Identity.
	RevisionIndex map[int32]identity.Identity

	// IdToLatestRevision maps a logical update ID to the revision number
	// of its newest known revision.
	IdToLatestRevision map[uuid.UUID]int32

	// IdToLatestIdentity maps a logical update ID to the Identity of its
	// newest known revision.
	IdToLatestIdentity map[uuid.UUID]identity.Identity

	// SoftwareLeafGuids is the ordered list of leaf GUIDs that resolve to
	// a Software update in UpdatesIndex.
	SoftwareLeafGuids []uuid.UUID
}

// emptyIndices is published when the catalog is cleared.
func emptyIndices() *Indices {
	return &Indices{
		RevisionIndex:      map[int32]identity.Identity{},
		IdToLatestRevision: map[uuid.UUID]int32{},
		IdToLatestIdentity: map[uuid.UUID]identity.Identity{},
		SoftwareLeafGuids:  nil,
	}
}

// buildIndices implements the Catalog Indexer (spec.md §4.1) steps 3-5.
// The caller (Guard.SetCatalog) holds the write lock across this call.
func buildIndices(snap *Snapshot) *Indices {
	idx := &Indices{
		Snapshot:      snap,
		RevisionIndex: snap.Revisions,
	}

	// Step 4: invert the revision map, group by ID, keep the largest
	// revision per group.
	idx.IdToLatestRevision = make(map[uuid.UUID]int32)
	idx.IdToLatestIdentity = make(map[uuid.UUID]identity.Identity)
	for _, id := range snap.Revisions {
		cur, ok := idx.IdToLatestRevision[id.ID]
		if !ok || id.Revision > cur {
			idx.IdToLatestRevision[id.ID] = id.Revision
			idx.IdToLatestIdentity[id.ID] = id
		}
	}

	// Step 5: GUIDs resolving to a Software update in UpdatesIndex,
	// intersected (order-preserving) with the leaf partition.
	softwareGuids := make(map[uuid.UUID]struct{})
	for id := range snap.Updates {
		softwareGuids[id.ID] = struct{}{}
	}
	idx.SoftwareLeafGuids = make([]uuid.UUID, 0, len(snap.LeafGuids))
	for _, g := range snap.LeafGuids {
		if _, ok := softwareGuids[g]; ok {
			idx.SoftwareLeafGuids = append(idx.SoftwareLeafGuids, g)
		}
	}

	return idx
}

// ResolveLatest looks up the latest Identity for a GUID and resolves it in
// CategoriesIndex, falling back to UpdatesIndex. Returns ok=false if the
// GUID is absent from IdToLatestIdentity (filtered out per spec.md §3's
// invariant) or present there but absent from both indices (a programmer
// error per the same invariant, surfaced as ok=false rather than a panic).
func (idx *Indices) ResolveLatest(g uuid.UUID) (Update, identity.Identity, bool) {
	id, ok := idx.IdToLatestIdentity[g]
	if !ok {
		return nil, identity.Identity{}, false
	}
	if cat, ok := idx.Snapshot.Categories[id]; ok {
		return cat, id, true
	}
	if sw, ok := idx.Snapshot.Updates[id]; ok {
		return sw, id, true
	}
	return nil, identity.Identity{}, false
}

// ResolveLatestCategory is like ResolveLatest but returns false unless the
// resolved update is a CategoryUpdate.
func (idx *Indices) ResolveLatestCategory(g uuid.UUID) (*CategoryUpdate, identity.Identity, bool) {
	id, ok := idx.IdToLatestIdentity[g]
	if !ok {
		return nil, identity.Identity{}, false
	}
	cat, ok := idx.Snapshot.Categories[id]
	if !ok {
		return nil, identity.Identity{}, false
	}
	return cat, id, true
}

// ResolveLatestSoftware is like ResolveLatest but returns false unless the
// resolved update is a SoftwareUpdate.
func (idx *Indices) ResolveLatestSoftware(g uuid.UUID) (*SoftwareUpdate, identity.Identity, bool) {
	id, ok := idx.IdToLatestIdentity[g]
	if !ok {
		return nil, identity.Identity{}, false
	}
	sw, ok := idx.Snapshot.Updates[id]
	if !ok {
		return nil, identity.Identity{}, false
	}
	return sw, id, true
}
