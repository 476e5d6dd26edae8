// Package metadatasource implements a file-based catalog.MetadataSource
// (spec.md §6: the metadata source is an external collaborator, out of
// the core's scope beyond the interface shape). This adapter reads a
// JSON manifest plus one metadata XML document per update/category from
// a directory, so the rest of the system has something concrete to run
// against.
package metadatasource

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/wsusd/wsusd/internal/catalog"
	"github.com/wsusd/wsusd/internal/identity"
	"github.com/wsusd/wsusd/internal/logging"
)

var log = logging.L("metadatasource")

const manifestFileName = "manifest.json"

type manifestDigest struct {
	Algorithm string `json:"algorithm"`
	Hex       string `json:"hex"`
}

type manifestURL struct {
	MuUrl       string `json:"muUrl"`
	DigestIndex int    `json:"digestIndex"`
}

type manifestFile struct {
	Digests []manifestDigest `json:"digests"`
	URLs    []manifestURL    `json:"urls"`
}

type manifestIdentity struct {
	ID       string `json:"id"`
	Revision int32  `json:"revision"`
}

type manifestEntry struct {
	ID            string             `json:"id"`
	Revision      int32              `json:"revision"`
	Superseded    bool               `json:"superseded"`
	MetadataFile  string             `json:"metadataFile"`
	Requires      []string           `json:"requires"`
	IsBundle      bool               `json:"isBundle"`
	IsBundled     bool               `json:"isBundled"`
	BundleParents []manifestIdentity `json:"bundleParents"`
	Files         []manifestFile     `json:"files"`
}

type manifest struct {
	Categories   []manifestEntry `json:"categories"`
	Updates      []manifestEntry `json:"updates"`
	RootGuids    []string        `json:"rootGuids"`
	NonLeafGuids []string        `json:"nonLeafGuids"`
	LeafGuids    []string        `json:"leafGuids"`
}

// requiresExpr is satisfied when every listed GUID is present in the
// client's installed non-leaf set — the common case for prerequisites
// and the only shape this adapter's manifest format expresses.
type requiresExpr struct {
	guids []uuid.UUID
}

func (r requiresExpr) Evaluate(installed map[uuid.UUID]struct{}) bool {
	for _, g := range r.guids {
		if _, ok := installed[g]; !ok {
			return false
		}
	}
	return true
}

// Source is a catalog.MetadataSource backed by a directory of XML
// metadata documents and a manifest.json describing the catalog
// structure around them.
type Source struct {
	dir          string
	categories   map[identity.Identity]*catalog.CategoryUpdate
	updates      map[identity.Identity]*catalog.SoftwareUpdate
	revisions    map[int32]identity.Identity
	rootGuids    []uuid.UUID
	nonLeafGuids []uuid.UUID
	leafGuids    []uuid.UUID
}

// Load reads manifest.json from dir and builds a Source. dir may be a
// path to the manifest file itself or to its containing directory.
func Load(dir string) (*Source, error) {
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	data, err := os.ReadFile(filepath.Join(dir, manifestFileName))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	s := &Source{
		dir:        dir,
		categories: make(map[identity.Identity]*catalog.CategoryUpdate, len(m.Categories)),
		updates:    make(map[identity.Identity]*catalog.SoftwareUpdate, len(m.Updates)),
		revisions:  make(map[int32]identity.Identity, len(m.Categories)+len(m.Updates)),
	}

	for _, entry := range m.Categories {
		id, prereqs, err := s.parseIdentityAndPrereqs(entry)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", entry.ID, err)
		}
		s.categories[id] = catalog.NewCategoryUpdate(id, entry.Superseded, prereqs, s.opener(entry.MetadataFile))
		s.revisions[id.Revision] = id
	}

	for _, entry := range m.Updates {
		id, prereqs, err := s.parseIdentityAndPrereqs(entry)
		if err != nil {
			return nil, fmt.Errorf("update %s: %w", entry.ID, err)
		}
		files, err := parseFiles(entry.Files)
		if err != nil {
			return nil, fmt.Errorf("update %s files: %w", entry.ID, err)
		}
		var bundleParents []identity.Identity
		for _, bp := range entry.BundleParents {
			pid, err := uuid.Parse(bp.ID)
			if err != nil {
				return nil, fmt.Errorf("update %s bundle parent %s: %w", entry.ID, bp.ID, err)
			}
			bundleParents = append(bundleParents, identity.New(pid, bp.Revision))
		}
		s.updates[id] = catalog.NewSoftwareUpdate(id, entry.Superseded, prereqs, files, s.opener(entry.MetadataFile), entry.IsBundle, entry.IsBundled, bundleParents)
		s.revisions[id.Revision] = id
	}

	s.rootGuids, err = parseGuids(m.RootGuids)
	if err != nil {
		return nil, fmt.Errorf("rootGuids: %w", err)
	}
	s.nonLeafGuids, err = parseGuids(m.NonLeafGuids)
	if err != nil {
		return nil, fmt.Errorf("nonLeafGuids: %w", err)
	}
	s.leafGuids, err = parseGuids(m.LeafGuids)
	if err != nil {
		return nil, fmt.Errorf("leafGuids: %w", err)
	}

	log.Info("metadata source loaded", "dir", dir, "categories", len(s.categories), "updates", len(s.updates))
	return s, nil
}

func (s *Source) parseIdentityAndPrereqs(entry manifestEntry) (identity.Identity, catalog.PrerequisiteExpr, error) {
	id, err := uuid.Parse(entry.ID)
	if err != nil {
		return identity.Identity{}, nil, fmt.Errorf("parse id: %w", err)
	}

	if len(entry.Requires) == 0 {
		return identity.New(id, entry.Revision), catalog.AlwaysTrue{}, nil
	}

	guids, err := parseGuids(entry.Requires)
	if err != nil {
		return identity.Identity{}, nil, fmt.Errorf("parse requires: %w", err)
	}
	return identity.New(id, entry.Revision), requiresExpr{guids: guids}, nil
}

func (s *Source) opener(relPath string) func() (io.ReadCloser, error) {
	path := filepath.Join(s.dir, relPath)
	return func() (io.ReadCloser, error) {
		return os.Open(path)
	}
}

func parseFiles(entries []manifestFile) ([]catalog.UpdateFile, error) {
	files := make([]catalog.UpdateFile, 0, len(entries))
	for _, e := range entries {
		digests := make([]catalog.Digest, 0, len(e.Digests))
		for _, d := range e.Digests {
			b, err := hex.DecodeString(d.Hex)
			if err != nil {
				return nil, fmt.Errorf("decode digest %q: %w", d.Hex, err)
			}
			digests = append(digests, catalog.Digest{Algorithm: d.Algorithm, Bytes: b})
		}
		urls := make([]catalog.FileURL, 0, len(e.URLs))
		for _, u := range e.URLs {
			urls = append(urls, catalog.FileURL{MuUrl: u.MuUrl, DigestIndex: u.DigestIndex})
		}
		files = append(files, catalog.UpdateFile{Digests: digests, URLs: urls})
	}
	return files, nil
}

func parseGuids(strs []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(strs))
	for _, s := range strs {
		g, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *Source) GetLeafUpdates() []uuid.UUID    { return s.leafGuids }
func (s *Source) GetNonLeafUpdates() []uuid.UUID { return s.nonLeafGuids }
func (s *Source) GetRootUpdates() []uuid.UUID    { return s.rootGuids }

func (s *Source) CategoriesIndex() map[identity.Identity]*catalog.CategoryUpdate { return s.categories }
func (s *Source) UpdatesIndex() map[identity.Identity]*catalog.SoftwareUpdate    { return s.updates }
func (s *Source) GetIndex() map[int32]identity.Identity                         { return s.revisions }
