package offering

import (
	"github.com/google/uuid"
	"github.com/wsusd/wsusd/internal/catalog"
	"github.com/wsusd/wsusd/internal/identity"
)

// nonLeafCandidate pairs a resolved update (category or, for phase B,
// possibly a plain software update) with its Identity, avoiding a second
// index lookup in the non-leaf encoder.
type nonLeafCandidate struct {
	update catalog.Update
	id     identity.Identity
}

// softwareCandidate is the phase C/D equivalent, kept as the concrete
// SoftwareUpdate type since the software encoder and approval rules need
// IsBundle/IsBundled/BundleParents.
type softwareCandidate struct {
	update *catalog.SoftwareUpdate
	id     identity.Identity
}

// phaseRoots implements spec.md §4.4 phase A.
func (e *Engine) phaseRoots(idx *catalog.Indices, exclude map[uuid.UUID]struct{}) []nonLeafCandidate {
	out := make([]nonLeafCandidate, 0, phaseCollectLimit)
	for _, g := range idx.Snapshot.RootGuids {
		if _, skip := exclude[g]; skip {
			continue
		}
		cat, id, ok := idx.ResolveLatestCategory(g)
		if !ok {
			continue // unresolvable GUID silently filtered (spec.md §7)
		}
		if cat.IsSuperseded() {
			continue
		}
		out = append(out, nonLeafCandidate{cat, id})
		if len(out) == phaseCollectLimit {
			break
		}
	}
	return out
}

// phaseNonLeaves implements spec.md §4.4 phase B.
func (e *Engine) phaseNonLeaves(idx *catalog.Indices, exclude, installedNonLeaf map[uuid.UUID]struct{}) []nonLeafCandidate {
	out := make([]nonLeafCandidate, 0, phaseCollectLimit)
	for _, g := range idx.Snapshot.NonLeafGuids {
		if _, skip := exclude[g]; skip {
			continue
		}
		upd, id, ok := idx.ResolveLatest(g)
		if !ok {
			continue
		}
		if upd.IsSuperseded() {
			continue
		}
		if !upd.IsApplicable(installedNonLeaf) {
			continue
		}
		out = append(out, nonLeafCandidate{upd, id})
		if len(out) == phaseCollectLimit {
			break
		}
	}
	return out
}

// phaseBundles implements spec.md §4.4 phase C.
func (e *Engine) phaseBundles(idx *catalog.Indices, exclude, installedNonLeaf map[uuid.UUID]struct{}) []softwareCandidate {
	approved := make([]softwareCandidate, 0, phaseCollectLimit)
	var unapproved []identity.Identity

	for _, g := range idx.SoftwareLeafGuids {
		if _, skip := exclude[g]; skip {
			continue
		}
		sw, id, ok := idx.ResolveLatestSoftware(g)
		if !ok {
			continue
		}
		if sw.IsSuperseded() {
			continue
		}
		if !sw.IsApplicable(installedNonLeaf) {
			continue
		}
		if !sw.IsBundle() {
			continue
		}

		if e.approvals.Software.Contains(id) {
			approved = append(approved, softwareCandidate{sw, id})
			if len(approved) == phaseCollectLimit {
				break
			}
		} else {
			unapproved = append(unapproved, id)
		}
	}

	if len(unapproved) > 0 && e.bus != nil {
		e.bus.Publish(UnapprovedEvent{Phase: "bundle", Identities: unapproved})
	}

	return approved
}

// phaseLeafSoftware implements spec.md §4.4 phase D. Returns the capped
// approved candidate list plus the unfiltered (pre-cap-at-50, i.e. up to
// 51) count used to decide Truncated.
func (e *Engine) phaseLeafSoftware(idx *catalog.Indices, exclude, installedNonLeaf map[uuid.UUID]struct{}) ([]softwareCandidate, int) {
	approved := make([]softwareCandidate, 0, phaseCollectLimit)
	var unapproved []identity.Identity

	for _, g := range idx.SoftwareLeafGuids {
		if _, skip := exclude[g]; skip {
			continue
		}
		sw, id, ok := idx.ResolveLatestSoftware(g)
		if !ok {
			continue
		}
		if sw.IsSuperseded() {
			continue
		}
		if !sw.IsApplicable(installedNonLeaf) {
			continue
		}
		if sw.IsBundle() {
			continue // bundle containers excluded from phase D
		}

		isApproved := e.approvals.Software.Contains(id) ||
			(sw.IsBundled() && e.approvals.Software.ContainsAny(sw.BundleParents()))

		if isApproved {
			if len(approved) < phaseCollectLimit {
				approved = append(approved, softwareCandidate{sw, id})
			}
		} else {
			unapproved = append(unapproved, id)
		}
	}

	if len(unapproved) > 0 && e.bus != nil {
		e.bus.Publish(UnapprovedEvent{Phase: "leaf", Identities: unapproved})
	}

	unfilteredCount := len(approved)
	if len(approved) > MaxUpdatesInResponse {
		approved = approved[:MaxUpdatesInResponse]
	}
	return approved, unfilteredCount
}
