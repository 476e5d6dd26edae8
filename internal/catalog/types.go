package catalog

import (
	"io"

	"github.com/google/uuid"
	"github.com/wsusd/wsusd/internal/identity"
)

// PrerequisiteExpr is a boolean expression tree evaluated against a set of
// installed non-leaf GUIDs. It is owned by the metadata source's domain
// model; the core only evaluates it.
type PrerequisiteExpr interface {
	Evaluate(installed map[uuid.UUID]struct{}) bool
}

// AlwaysTrue is the trivial prerequisite expression satisfied by any
// installed set — used by root updates, which by definition have no
// prerequisites.
type AlwaysTrue struct{}

func (AlwaysTrue) Evaluate(map[uuid.UUID]struct{}) bool { return true }

// Digest identifies file content by a named hash algorithm.
type Digest struct {
	Algorithm string // e.g. "SHA1", "SHA256"
	Bytes     []byte
}

// FileURL is an upstream download location for a file, tied to one of its
// digests.
type FileURL struct {
	MuUrl        string
	DigestIndex  int
}

// UpdateFile is one downloadable payload attached to an update.
type UpdateFile struct {
	Digests []Digest
	URLs    []FileURL
}

// FirstDigest returns the file's first digest, or a zero Digest if none.
func (f UpdateFile) FirstDigest() Digest {
	if len(f.Digests) == 0 {
		return Digest{}
	}
	return f.Digests[0]
}

// Update is the polymorphic interface over catalog entries: category
// (detectoid/product/classification) and software updates. IsApplicable is
// an update-local predicate evaluated against the client's installed
// non-leaf set.
type Update interface {
	Identity() identity.Identity
	IsSuperseded() bool
	IsApplicable(installedNonLeaf map[uuid.UUID]struct{}) bool
	Prerequisites() PrerequisiteExpr
	Files() []UpdateFile
	// MetadataStream returns the update's full metadata XML document.
	// Callers must close the returned stream.
	MetadataStream() (io.ReadCloser, error)
}

// baseUpdate holds the fields shared by every Update variant.
type baseUpdate struct {
	id           identity.Identity
	superseded   bool
	prereqs      PrerequisiteExpr
	files        []UpdateFile
	streamOpener func() (io.ReadCloser, error)
}

func (b baseUpdate) Identity() identity.Identity { return b.id }
func (b baseUpdate) IsSuperseded() bool          { return b.superseded }
func (b baseUpdate) Prerequisites() PrerequisiteExpr {
	if b.prereqs == nil {
		return AlwaysTrue{}
	}
	return b.prereqs
}
func (b baseUpdate) Files() []UpdateFile { return b.files }
func (b baseUpdate) MetadataStream() (io.ReadCloser, error) {
	return b.streamOpener()
}
func (b baseUpdate) IsApplicable(installed map[uuid.UUID]struct{}) bool {
	return b.Prerequisites().Evaluate(installed)
}

// CategoryUpdate represents a detectoid, product category, or
// classification — never installable.
type CategoryUpdate struct {
	baseUpdate
}

func NewCategoryUpdate(id identity.Identity, superseded bool, prereqs PrerequisiteExpr, streamOpener func() (io.ReadCloser, error)) *CategoryUpdate {
	return &CategoryUpdate{baseUpdate{id: id, superseded: superseded, prereqs: prereqs, streamOpener: streamOpener}}
}

// SoftwareUpdate represents an installable software update, possibly a
// bundle aggregating children, or a child bundled under one or more
// parents.
type SoftwareUpdate struct {
	baseUpdate
	isBundle      bool
	isBundled     bool
	bundleParents []identity.Identity
}

func NewSoftwareUpdate(id identity.Identity, superseded bool, prereqs PrerequisiteExpr, files []UpdateFile, streamOpener func() (io.ReadCloser, error), isBundle, isBundled bool, bundleParents []identity.Identity) *SoftwareUpdate {
	return &SoftwareUpdate{
		baseUpdate:    baseUpdate{id: id, superseded: superseded, prereqs: prereqs, files: files, streamOpener: streamOpener},
		isBundle:      isBundle,
		isBundled:     isBundled,
		bundleParents: bundleParents,
	}
}

func (s *SoftwareUpdate) IsBundle() bool                      { return s.isBundle }
func (s *SoftwareUpdate) IsBundled() bool                     { return s.isBundled }
func (s *SoftwareUpdate) BundleParents() []identity.Identity { return s.bundleParents }
