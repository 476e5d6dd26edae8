// Package extendedinfo implements the Extended Info Responder (spec.md
// §4.6): GetExtendedUpdateInfo and the cookie/config operations.
package extendedinfo

import (
	"errors"
	"fmt"
	"time"

	"github.com/wsusd/wsusd/internal/catalog"
	"github.com/wsusd/wsusd/internal/content"
	"github.com/wsusd/wsusd/internal/fragment"
	"github.com/wsusd/wsusd/internal/identity"
	"github.com/wsusd/wsusd/internal/logging"
	"github.com/wsusd/wsusd/internal/offering"
)

var log = logging.L("extendedinfo")

// ErrUnknownRevision mirrors offering.ErrUnknownRevision for the same
// failure mode in this operation.
var ErrUnknownRevision = errors.New("unknown revision")

// ErrNotImplemented is returned by the unimplemented operations
// (GetExtendedUpdateInfo2, GetFileLocations, GetTimestamps, RefreshCache,
// RegisterComputer, StartCategoryScan, SyncPrinterCatalog).
var ErrNotImplemented = errors.New("not implemented")

// InfoType selects which fragment kind to emit per requested update.
type InfoType string

const (
	InfoTypeExtended           InfoType = "Extended"
	InfoTypeLocalizedProperties InfoType = "LocalizedProperties"
)

// UpdateData is one emitted fragment.
type UpdateData struct {
	ID  int32
	Xml string
}

// FileLocation is one emitted file URL.
type FileLocation struct {
	FileDigest []byte
	Url        string
}

// ExtendedUpdateInfo is the GetExtendedUpdateInfo reply.
type ExtendedUpdateInfo struct {
	Updates       []UpdateData
	FileLocations []FileLocation
}

// Responder answers GetExtendedUpdateInfo and the cookie/config
// operations.
type Responder struct {
	guard       *catalog.Guard
	fragmenter  *fragment.Fragmenter
	contentRoot string // "" if no content source configured
	serverStart time.Time
	properties  any // loaded server configuration, surfaced verbatim
}

func New(guard *catalog.Guard, fragmenter *fragment.Fragmenter, contentRoot string, properties any) *Responder {
	return &Responder{
		guard:       guard,
		fragmenter:  fragmenter,
		contentRoot: contentRoot,
		serverStart: time.Now(),
		properties:  properties,
	}
}

// GetExtendedUpdateInfo implements spec.md §4.6 steps 1-4.
func (r *Responder) GetExtendedUpdateInfo(revisions []int32, infoTypes []InfoType, locales []string) (ExtendedUpdateInfo, error) {
	var reply ExtendedUpdateInfo

	err := r.guard.Read(func(idx *catalog.Indices) error {
		updates := make([]catalog.Update, 0, len(revisions))
		for _, rev := range revisions {
			id, ok := idx.RevisionIndex[rev]
			if !ok {
				return fmt.Errorf("%w: %d", ErrUnknownRevision, rev)
			}
			upd, resolvedOK := resolve(idx, id)
			if !resolvedOK {
				return fmt.Errorf("%w: %d", ErrUnknownRevision, rev)
			}
			updates = append(updates, upd)
		}

		wantsExtended := contains(infoTypes, InfoTypeExtended)
		wantsLocalized := contains(infoTypes, InfoTypeLocalizedProperties)

		for i, upd := range updates {
			rev := revisions[i]
			if wantsExtended {
				xml, err := r.fragmenter.Extended(upd)
				if err != nil {
					return fmt.Errorf("extended fragment for revision %d: %w", rev, err)
				}
				reply.Updates = append(reply.Updates, UpdateData{ID: rev, Xml: xml})
			}
			if wantsLocalized {
				xml, err := r.fragmenter.Localized(upd, locales)
				if err != nil {
					return fmt.Errorf("localized fragment for revision %d: %w", rev, err)
				}
				if xml != "" {
					reply.Updates = append(reply.Updates, UpdateData{ID: rev, Xml: xml})
				}
			}
		}

		reply.FileLocations = r.collectFileLocations(updates)
		return nil
	})
	if err != nil {
		return ExtendedUpdateInfo{}, err
	}
	return reply, nil
}

// collectFileLocations implements spec.md §4.6 step 4: the union of Files
// across the requested updates, deduplicated by identity.
func (r *Responder) collectFileLocations(updates []catalog.Update) []FileLocation {
	seen := make(map[identity.Identity]struct{})
	var locs []FileLocation

	for _, upd := range updates {
		id := upd.Identity()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		for _, f := range upd.Files() {
			d := f.FirstDigest()
			loc := FileLocation{FileDigest: d.Bytes}
			if r.contentRoot != "" {
				dir, name, ok := content.URLSegments(f)
				if ok {
					loc.Url = fmt.Sprintf("%s/Content/%s/%s", r.contentRoot, dir, name)
				}
			} else if len(f.URLs) > 0 {
				loc.Url = f.URLs[0].MuUrl
			}
			locs = append(locs, loc)
		}
	}
	return locs
}

func resolve(idx *catalog.Indices, id identity.Identity) (catalog.Update, bool) {
	if cat, ok := idx.Snapshot.Categories[id]; ok {
		return cat, true
	}
	if sw, ok := idx.Snapshot.Updates[id]; ok {
		return sw, true
	}
	return nil, false
}

func contains(types []InfoType, want InfoType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

// GetCookie always succeeds (spec.md §4.6).
func (r *Responder) GetCookie() offering.Cookie {
	return offering.NewCookie()
}

// AuthPlugInInfo is one entry in the Config reply's plugin list.
type AuthPlugInInfo struct {
	PlugInID    string
	ServiceUrl  string
	Parameter   string
}

// Config is the GetConfig/GetConfig2 reply.
type Config struct {
	LastChange              time.Time
	IsRegistrationRequired  bool
	AllowedEventIds         []int32
	AuthPlugInInfo          []AuthPlugInInfo
	Properties              any
}

// GetConfig implements spec.md §4.6's Config operations.
func (r *Responder) GetConfig() Config {
	return Config{
		LastChange:             r.serverStart,
		IsRegistrationRequired: false,
		AllowedEventIds:        nil,
		AuthPlugInInfo: []AuthPlugInInfo{
			{PlugInID: "PidValidator"},
			{PlugInID: "Anonymous"},
		},
		Properties: r.properties,
	}
}

// GetConfig2 always succeeds, same shape as GetConfig (spec.md §4.6).
func (r *Responder) GetConfig2() Config {
	return r.GetConfig()
}

// Unimplemented operations: spec.md §4.6's last paragraph.
func (r *Responder) GetExtendedUpdateInfo2() error { return fmt.Errorf("GetExtendedUpdateInfo2: %w", ErrNotImplemented) }
func (r *Responder) GetFileLocations() error       { return fmt.Errorf("GetFileLocations: %w", ErrNotImplemented) }
func (r *Responder) GetTimestamps() error          { return fmt.Errorf("GetTimestamps: %w", ErrNotImplemented) }
func (r *Responder) RefreshCache() error           { return fmt.Errorf("RefreshCache: %w", ErrNotImplemented) }
func (r *Responder) RegisterComputer() error       { return fmt.Errorf("RegisterComputer: %w", ErrNotImplemented) }
func (r *Responder) StartCategoryScan() error      { return fmt.Errorf("StartCategoryScan: %w", ErrNotImplemented) }
func (r *Responder) SyncPrinterCatalog() error     { return fmt.Errorf("SyncPrinterCatalog: %w", ErrNotImplemented) }
