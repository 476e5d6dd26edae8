// Package identity defines the (ID, Revision) handle shared by every
// update, category, and approval record in the catalog.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// Identity is a pair (ID, Revision): a 128-bit update ID and the int32
// revision number of one particular revision of that logical update.
// Two updates sharing ID but differing in Revision are two revisions of
// the same logical update. Identity is comparable and usable as a map key.
type Identity struct {
	ID       uuid.UUID
	Revision int32
}

func New(id uuid.UUID, revision int32) Identity {
	return Identity{ID: id, Revision: revision}
}

func (i Identity) String() string {
	return fmt.Sprintf("%s/%d", i.ID, i.Revision)
}

func (i Identity) IsZero() bool {
	return i.ID == uuid.Nil && i.Revision == 0
}
