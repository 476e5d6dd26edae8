package offering

import (
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/wsusd/wsusd/internal/catalog"
	"github.com/wsusd/wsusd/internal/fragment"
	"github.com/wsusd/wsusd/internal/identity"
)

func openerFor(xmlDoc string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(xmlDoc)), nil
	}
}

const fixtureXML = `<Update><UpdateXml><Category/></UpdateXml></Update>`

type fixture struct {
	guard     *catalog.Guard
	approvals *catalog.Approvals
	bus       *Bus
	engine    *Engine

	rootCat      identity.Identity
	bundle       identity.Identity
	leafApproved identity.Identity
	leafPending  identity.Identity
}

// newFixture builds a minimal catalog with one root category and three
// leaf software updates: a bundle (always collected in phase C before any
// leaf is considered) and two plain leaves, one pre-approved and one not.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	rootCat := identity.New(uuid.New(), 1)
	bundle := identity.New(uuid.New(), 2)
	leafApproved := identity.New(uuid.New(), 3)
	leafPending := identity.New(uuid.New(), 4)

	cat := catalog.NewCategoryUpdate(rootCat, false, catalog.AlwaysTrue{}, openerFor(fixtureXML))
	bundleUpd := catalog.NewSoftwareUpdate(bundle, false, catalog.AlwaysTrue{}, nil, openerFor(fixtureXML), true, false, nil)
	approvedUpd := catalog.NewSoftwareUpdate(leafApproved, false, catalog.AlwaysTrue{}, nil, openerFor(fixtureXML), false, false, nil)
	pendingUpd := catalog.NewSoftwareUpdate(leafPending, false, catalog.AlwaysTrue{}, nil, openerFor(fixtureXML), false, false, nil)

	snap := &catalog.Snapshot{
		Categories: map[identity.Identity]*catalog.CategoryUpdate{rootCat: cat},
		Updates: map[identity.Identity]*catalog.SoftwareUpdate{
			bundle:       bundleUpd,
			leafApproved: approvedUpd,
			leafPending:  pendingUpd,
		},
		Revisions: map[int32]identity.Identity{
			1: rootCat, 2: bundle, 3: leafApproved, 4: leafPending,
		},
		RootGuids: []uuid.UUID{rootCat.ID},
		LeafGuids: []uuid.UUID{bundle.ID, leafApproved.ID, leafPending.ID},
	}

	guard := catalog.NewGuard()
	guard.SetCatalog(snap)

	approvals := catalog.NewApprovals()
	approvals.Software.Add(leafApproved)

	bus := NewBus()
	engine := New(guard, approvals, fragment.New(), bus)

	return &fixture{
		guard: guard, approvals: approvals, bus: bus, engine: engine,
		rootCat: rootCat, bundle: bundle, leafApproved: leafApproved, leafPending: leafPending,
	}
}

func TestSyncUpdatesSkipSoftwareSyncReturnsEmptyReply(t *testing.T) {
	f := newFixture(t)
	info, err := f.engine.SyncUpdates(SyncParams{SkipSoftwareSync: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.NewUpdates) != 0 || info.Truncated {
		t.Fatalf("skip-sync reply should be empty, got %+v", info)
	}
}

func TestSyncUpdatesOffersRootCategoryFirst(t *testing.T) {
	f := newFixture(t)
	info, err := f.engine.SyncUpdates(SyncParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.NewUpdates) != 1 {
		t.Fatalf("expected exactly the root category offered first, got %d updates", len(info.NewUpdates))
	}
	if !info.Truncated {
		t.Fatal("a non-empty phase-A/B/C result is always marked Truncated so the client re-syncs")
	}
}

func TestSyncUpdatesSkipsRootOnceInstalled(t *testing.T) {
	f := newFixture(t)
	// Approve the bundle so phase C has something to offer once the root
	// is excluded (phase C only ever returns approved bundles).
	f.approvals.Software.Add(f.bundle)

	info, err := f.engine.SyncUpdates(SyncParams{InstalledNonLeafUpdateIDs: []int32{1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	foundBundle := false
	for _, u := range info.NewUpdates {
		if u.ID == 2 {
			foundBundle = true
		}
	}
	if !foundBundle {
		t.Fatalf("expected the approved bundle to be offered once the root is excluded, got %+v", info.NewUpdates)
	}
}

func TestSyncUpdatesPublishesUnapprovedBundleEvent(t *testing.T) {
	f := newFixture(t)
	events, cancel := f.bus.Subscribe()
	defer cancel()

	// The bundle is left unapproved by the fixture, so phase C must
	// publish it on the bus instead of offering it.
	if _, err := f.engine.SyncUpdates(SyncParams{InstalledNonLeafUpdateIDs: []int32{1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Phase != "bundle" {
			t.Fatalf("phase = %q, want bundle", ev.Phase)
		}
		found := false
		for _, id := range ev.Identities {
			if id == f.bundle {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected the bundle identity in the unapproved event, got %+v", ev.Identities)
		}
	default:
		t.Fatal("expected an unapproved-bundle event to have been published")
	}
}

func TestSyncUpdatesLeafPhaseSeparatesApprovedFromPending(t *testing.T) {
	f := newFixture(t)
	events, cancel := f.bus.Subscribe()
	defer cancel()

	// Exclude the root and the bundle so phase D is reached.
	info, err := f.engine.SyncUpdates(SyncParams{InstalledNonLeafUpdateIDs: []int32{1}, OtherCachedUpdateIDs: []int32{2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	foundApproved := false
	for _, u := range info.NewUpdates {
		if u.ID == 3 {
			foundApproved = true
		}
		if u.ID == 4 {
			t.Fatal("the pending (unapproved) leaf should not appear in NewUpdates")
		}
	}
	if !foundApproved {
		t.Fatalf("expected the approved leaf to be offered, got %+v", info.NewUpdates)
	}

	select {
	case ev := <-events:
		if ev.Phase != "leaf" {
			t.Fatalf("phase = %q, want leaf", ev.Phase)
		}
		found := false
		for _, id := range ev.Identities {
			if id == f.leafPending {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected the pending leaf in the unapproved event, got %+v", ev.Identities)
		}
	default:
		t.Fatal("expected an unapproved-leaf event to have been published")
	}
}

func TestSyncUpdatesUnknownRevisionIsAnError(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.SyncUpdates(SyncParams{InstalledNonLeafUpdateIDs: []int32{999}})
	if err == nil {
		t.Fatal("expected an error for an unknown revision")
	}
}

func TestSyncUpdatesFailsWithoutPublishedCatalog(t *testing.T) {
	guard := catalog.NewGuard()
	engine := New(guard, catalog.NewApprovals(), fragment.New(), NewBus())
	_, err := engine.SyncUpdates(SyncParams{})
	if err != catalog.ErrCatalogUnavailable {
		t.Fatalf("err = %v, want ErrCatalogUnavailable", err)
	}
}

// manyIdentities returns n distinct identities starting at revision
// startRevision.
func manyIdentities(startRevision int32, n int) []identity.Identity {
	out := make([]identity.Identity, n)
	for i := range out {
		out[i] = identity.New(uuid.New(), startRevision+int32(i))
	}
	return out
}

// boundaryFixture builds a catalog with n candidates for the phase under
// test. For every phase but "roots" it also carries one extra root category
// at revision 1 for the caller to exclude via InstalledNonLeafUpdateIDs, so
// the sync reaches the phase under test; "roots" candidates are the root
// set itself, so no separate exclusion root is needed.
type boundaryFixture struct {
	guard     *catalog.Guard
	approvals *catalog.Approvals
	engine    *Engine
	root      identity.Identity
}

func newBoundaryFixture(t *testing.T, n int, phase string) (*boundaryFixture, []identity.Identity) {
	t.Helper()

	categories := map[identity.Identity]*catalog.CategoryUpdate{}
	updates := map[identity.Identity]*catalog.SoftwareUpdate{}
	revisions := map[int32]identity.Identity{}
	var rootGuids, nonLeafGuids, leafGuids []uuid.UUID

	approvals := catalog.NewApprovals()

	var root identity.Identity
	startRevision := int32(2)
	if phase != "roots" {
		root = identity.New(uuid.New(), 1)
		categories[root] = catalog.NewCategoryUpdate(root, false, catalog.AlwaysTrue{}, openerFor(fixtureXML))
		revisions[1] = root
		rootGuids = append(rootGuids, root.ID)
	} else {
		startRevision = 1
	}

	ids := manyIdentities(startRevision, n)

	switch phase {
	case "roots":
		for _, id := range ids {
			categories[id] = catalog.NewCategoryUpdate(id, false, catalog.AlwaysTrue{}, openerFor(fixtureXML))
			revisions[id.Revision] = id
			rootGuids = append(rootGuids, id.ID)
		}
	case "nonleaves":
		for _, id := range ids {
			categories[id] = catalog.NewCategoryUpdate(id, false, catalog.AlwaysTrue{}, openerFor(fixtureXML))
			revisions[id.Revision] = id
			nonLeafGuids = append(nonLeafGuids, id.ID)
		}
	case "bundles":
		for _, id := range ids {
			updates[id] = catalog.NewSoftwareUpdate(id, false, catalog.AlwaysTrue{}, nil, openerFor(fixtureXML), true, false, nil)
			revisions[id.Revision] = id
			leafGuids = append(leafGuids, id.ID)
			approvals.Software.Add(id)
		}
	case "leaves":
		for _, id := range ids {
			updates[id] = catalog.NewSoftwareUpdate(id, false, catalog.AlwaysTrue{}, nil, openerFor(fixtureXML), false, false, nil)
			revisions[id.Revision] = id
			leafGuids = append(leafGuids, id.ID)
			approvals.Software.Add(id)
		}
	default:
		t.Fatalf("unknown phase %q", phase)
	}

	snap := &catalog.Snapshot{
		Categories:   categories,
		Updates:      updates,
		Revisions:    revisions,
		RootGuids:    rootGuids,
		NonLeafGuids: nonLeafGuids,
		LeafGuids:    leafGuids,
	}

	guard := catalog.NewGuard()
	guard.SetCatalog(snap)

	engine := New(guard, approvals, fragment.New(), NewBus())

	return &boundaryFixture{guard: guard, approvals: approvals, engine: engine, root: root}, ids
}

func expectedReplyLen(n int) int {
	if n > MaxUpdatesInResponse {
		return MaxUpdatesInResponse
	}
	return n
}

func TestSyncUpdatesCapsRootsAtFifty(t *testing.T) {
	for _, n := range []int{MaxUpdatesInResponse, MaxUpdatesInResponse + 1} {
		f, _ := newBoundaryFixture(t, n, "roots")
		info, err := f.engine.SyncUpdates(SyncParams{})
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if len(info.NewUpdates) != expectedReplyLen(n) {
			t.Fatalf("n=%d: len(NewUpdates) = %d, want %d", n, len(info.NewUpdates), expectedReplyLen(n))
		}
		if !info.Truncated {
			t.Fatalf("n=%d: expected Truncated=true for a non-empty phase-A result", n)
		}
	}
}

func TestSyncUpdatesCapsNonLeavesAtFifty(t *testing.T) {
	for _, n := range []int{MaxUpdatesInResponse, MaxUpdatesInResponse + 1} {
		f, _ := newBoundaryFixture(t, n, "nonleaves")
		info, err := f.engine.SyncUpdates(SyncParams{InstalledNonLeafUpdateIDs: []int32{1}})
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if len(info.NewUpdates) != expectedReplyLen(n) {
			t.Fatalf("n=%d: len(NewUpdates) = %d, want %d", n, len(info.NewUpdates), expectedReplyLen(n))
		}
		if !info.Truncated {
			t.Fatalf("n=%d: expected Truncated=true for a non-empty phase-B result", n)
		}
	}
}

func TestSyncUpdatesCapsBundlesAtFifty(t *testing.T) {
	for _, n := range []int{MaxUpdatesInResponse, MaxUpdatesInResponse + 1} {
		f, _ := newBoundaryFixture(t, n, "bundles")
		info, err := f.engine.SyncUpdates(SyncParams{InstalledNonLeafUpdateIDs: []int32{1}})
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if len(info.NewUpdates) != expectedReplyLen(n) {
			t.Fatalf("n=%d: len(NewUpdates) = %d, want %d (phase C must cap at MaxUpdatesInResponse)", n, len(info.NewUpdates), expectedReplyLen(n))
		}
		if !info.Truncated {
			t.Fatalf("n=%d: expected Truncated=true for a non-empty phase-C result", n)
		}
	}
}

func TestSyncUpdatesCapsLeafSoftwareAtFiftyAndSetsTruncated(t *testing.T) {
	atLimit, _ := newBoundaryFixture(t, MaxUpdatesInResponse, "leaves")
	info, err := atLimit.engine.SyncUpdates(SyncParams{InstalledNonLeafUpdateIDs: []int32{1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.NewUpdates) != MaxUpdatesInResponse {
		t.Fatalf("at limit: len(NewUpdates) = %d, want %d", len(info.NewUpdates), MaxUpdatesInResponse)
	}
	if info.Truncated {
		t.Fatal("at exactly MaxUpdatesInResponse candidates, Truncated should be false")
	}

	overLimit, _ := newBoundaryFixture(t, MaxUpdatesInResponse+1, "leaves")
	info, err = overLimit.engine.SyncUpdates(SyncParams{InstalledNonLeafUpdateIDs: []int32{1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.NewUpdates) != MaxUpdatesInResponse {
		t.Fatalf("over limit: len(NewUpdates) = %d, want %d", len(info.NewUpdates), MaxUpdatesInResponse)
	}
	if !info.Truncated {
		t.Fatal("with 51 approved leaf candidates, Truncated should be true")
	}
}
