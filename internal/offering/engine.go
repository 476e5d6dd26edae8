// Package offering implements the Offering Engine (spec.md §4.4): the
// four-phase algorithm that turns a client's installed/cached state into
// the next batch of update offers.
package offering

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wsusd/wsusd/internal/catalog"
	"github.com/wsusd/wsusd/internal/fragment"
	"github.com/wsusd/wsusd/internal/logging"
)

var log = logging.L("offering")

// ErrUnknownRevision is returned when a client-supplied revision int is not
// present in RevisionIndex (spec.md §7).
var ErrUnknownRevision = errors.New("unknown revision")

// SyncParams is the client's sync request.
type SyncParams struct {
	SkipSoftwareSync         bool
	InstalledNonLeafUpdateIDs []int32
	OtherCachedUpdateIDs      []int32
}

// Engine runs SyncUpdates against a Guard-protected catalog, the approval
// sets, and the metadata fragmenter, publishing UnapprovedEvent on the Bus.
type Engine struct {
	guard      *catalog.Guard
	approvals  *catalog.Approvals
	fragmenter *fragment.Fragmenter
	bus        *Bus
}

func New(guard *catalog.Guard, approvals *catalog.Approvals, fragmenter *fragment.Fragmenter, bus *Bus) *Engine {
	return &Engine{guard: guard, approvals: approvals, fragmenter: fragmenter, bus: bus}
}

// SyncUpdates implements spec.md §4.4.
func (e *Engine) SyncUpdates(params SyncParams) (SyncInfo, error) {
	if params.SkipSoftwareSync {
		return skipSyncReply(), nil
	}

	var reply SyncInfo
	err := e.guard.Read(func(idx *catalog.Indices) error {
		installedNonLeafGuids, err := revisionsToGuids(idx, params.InstalledNonLeafUpdateIDs)
		if err != nil {
			return err
		}
		otherCachedGuids, err := revisionsToGuids(idx, params.OtherCachedUpdateIDs)
		if err != nil {
			return err
		}

		installedNonLeafSet := toSet(installedNonLeafGuids)
		excludeSet := toSet(append(append([]uuid.UUID{}, installedNonLeafGuids...), otherCachedGuids...))

		reply = SyncInfo{
			NewCookie:           NewCookie(),
			DriverSyncNotNeeded: "false",
		}

		if candidates := e.phaseRoots(idx, excludeSet); len(candidates) > 0 {
			reply.NewUpdates = encodeNonLeaf(candidates, idx, e.fragmenter)
			reply.Truncated = true
			return nil
		}

		if candidates := e.phaseNonLeaves(idx, excludeSet, installedNonLeafSet); len(candidates) > 0 {
			reply.NewUpdates = encodeNonLeaf(candidates, idx, e.fragmenter)
			reply.Truncated = true
			return nil
		}

		if candidates := e.phaseBundles(idx, excludeSet, installedNonLeafSet); len(candidates) > 0 {
			reply.NewUpdates = encodeSoftware(candidates, idx, e.fragmenter)
			reply.Truncated = true
			return nil
		}

		candidates, unfilteredCount := e.phaseLeafSoftware(idx, excludeSet, installedNonLeafSet)
		reply.NewUpdates = encodeSoftware(candidates, idx, e.fragmenter)
		reply.Truncated = unfilteredCount > MaxUpdatesInResponse

		return nil
	})
	if err != nil {
		return SyncInfo{}, err
	}
	return reply, nil
}

func revisionsToGuids(idx *catalog.Indices, revisions []int32) ([]uuid.UUID, error) {
	guids := make([]uuid.UUID, 0, len(revisions))
	for _, rev := range revisions {
		id, ok := idx.RevisionIndex[rev]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownRevision, rev)
		}
		guids = append(guids, id.ID)
	}
	return guids, nil
}

func toSet(guids []uuid.UUID) map[uuid.UUID]struct{} {
	s := make(map[uuid.UUID]struct{}, len(guids))
	for _, g := range guids {
		s[g] = struct{}{}
	}
	return s
}
