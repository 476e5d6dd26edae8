package catalog

import (
	"sync"

	"github.com/wsusd/wsusd/internal/identity"
)

// ApprovalSet (C2) is a thread-safe set of approved Identities, independent
// of catalog swaps. Membership is tested by full Identity (ID+Revision):
// approval is per-revision, not per logical update.
type ApprovalSet struct {
	mu       sync.RWMutex
	approved map[identity.Identity]struct{}
}

func NewApprovalSet() *ApprovalSet {
	return &ApprovalSet{approved: make(map[identity.Identity]struct{})}
}

func (s *ApprovalSet) Add(id identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approved[id] = struct{}{}
}

func (s *ApprovalSet) AddMany(ids []identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.approved[id] = struct{}{}
	}
}

// Remove removes id if present. Removing an absent member is a no-op, not
// an error (spec_full.md §7).
func (s *ApprovalSet) Remove(id identity.Identity) (existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed = s.approved[id]
	delete(s.approved, id)
	return existed
}

func (s *ApprovalSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approved = make(map[identity.Identity]struct{})
}

func (s *ApprovalSet) Contains(id identity.Identity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.approved[id]
	return ok
}

// ContainsAny reports whether any of ids is approved — used for the
// bundle-parent approval inheritance rule (spec.md §4.4, phase D).
func (s *ApprovalSet) ContainsAny(ids []identity.Identity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range ids {
		if _, ok := s.approved[id]; ok {
			return true
		}
	}
	return false
}

// List returns a snapshot of all currently approved Identities.
func (s *ApprovalSet) List() []identity.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]identity.Identity, 0, len(s.approved))
	for id := range s.approved {
		out = append(out, id)
	}
	return out
}

// Approvals bundles the two approval sets the Offering Engine consults:
// software and driver. Driver approvals exist for symmetry with §3's
// invariant list ("ApprovedSoftwareUpdates and ApprovedDriverUpdates") even
// though this implementation never affirmatively offers driver updates
// (spec.md §4.4).
type Approvals struct {
	Software *ApprovalSet
	Driver   *ApprovalSet
}

func NewApprovals() *Approvals {
	return &Approvals{Software: NewApprovalSet(), Driver: NewApprovalSet()}
}
