// Package fragment implements the Metadata Fragmenter (spec.md §4.5): three
// pure transformations from an update's full metadata XML document to the
// core/extended/localized-properties XML strings the protocol layer needs.
//
// No XML-fragment or XPath library exists anywhere in the reference corpus
// (see DESIGN.md), so this is a thin façade over stdlib encoding/xml,
// matching spec.md's own framing ("a thin façade over a shared XML
// transformer").
package fragment

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sync"

	"github.com/wsusd/wsusd/internal/catalog"
	"github.com/wsusd/wsusd/internal/identity"
)

// document is the subset of an update's full metadata document this
// package cares about. The raw fields keep the inner bytes of UpdateXml
// and ExtendedProperties as they were; every other element is dropped.
type document struct {
	XMLName xml.Name
	Core    rawElement `xml:"UpdateXml"`
	Extended rawElement `xml:"ExtendedProperties"`
	Localized []localizedProperty `xml:"LocalizedPropertiesCollection>LocalizedProperties"`
}

type rawElement struct {
	Inner []byte `xml:",innerxml"`
}

type localizedProperty struct {
	Language    string `xml:"Language,attr"`
	Title       string `xml:"Title"`
	Description string `xml:"Description"`
}

type cacheEntry struct {
	core      string
	extended  string
	localized map[string]string
}

// Fragmenter extracts and memoizes the three fragments per Identity.
type Fragmenter struct {
	mu    sync.RWMutex
	cache map[identity.Identity]*cacheEntry
}

func New() *Fragmenter {
	return &Fragmenter{cache: make(map[identity.Identity]*cacheEntry)}
}

func (f *Fragmenter) entry(u catalog.Update) (*cacheEntry, error) {
	id := u.Identity()

	f.mu.RLock()
	if e, ok := f.cache[id]; ok {
		f.mu.RUnlock()
		return e, nil
	}
	f.mu.RUnlock()

	stream, err := u.MetadataStream()
	if err != nil {
		return nil, fmt.Errorf("open metadata stream for %s: %w", id, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read metadata stream for %s: %w", id, err)
	}

	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse metadata for %s: %w", id, err)
	}

	e := &cacheEntry{
		core:      string(bytes.TrimSpace(doc.Core.Inner)),
		extended:  string(bytes.TrimSpace(doc.Extended.Inner)),
		localized: make(map[string]string, len(doc.Localized)),
	}
	for _, lp := range doc.Localized {
		e.localized[lp.Language] = renderLocalized(lp)
	}

	f.mu.Lock()
	f.cache[id] = e
	f.mu.Unlock()

	return e, nil
}

func renderLocalized(lp localizedProperty) string {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	type out struct {
		XMLName     xml.Name `xml:"LocalizedProperties"`
		Language    string   `xml:"Language,attr"`
		Title       string   `xml:"Title"`
		Description string   `xml:"Description"`
	}
	_ = enc.Encode(out{Language: lp.Language, Title: lp.Title, Description: lp.Description})
	_ = enc.Flush()
	return buf.String()
}

// Core returns the minimal XML fragment needed to evaluate applicability
// and identity — the <Xml> field in offer replies.
func (f *Fragmenter) Core(u catalog.Update) (string, error) {
	e, err := f.entry(u)
	if err != nil {
		return "", err
	}
	return e.core, nil
}

// Extended returns supplementary metadata used after the update is
// selected for installation.
func (f *Fragmenter) Extended(u catalog.Update) (string, error) {
	e, err := f.entry(u)
	if err != nil {
		return "", err
	}
	return e.extended, nil
}

// Localized returns title/description for the first requested language
// that has localized data, in the order given. Returns "" if none of the
// requested languages have data.
func (f *Fragmenter) Localized(u catalog.Update, locales []string) (string, error) {
	e, err := f.entry(u)
	if err != nil {
		return "", err
	}
	for _, loc := range locales {
		if s, ok := e.localized[loc]; ok {
			return s, nil
		}
	}
	return "", nil
}

// Invalidate drops cached fragments for id, e.g. after a catalog reload
// that reuses the same Identity with different content (not expected in
// normal operation but kept cheap to be safe).
func (f *Fragmenter) Invalidate(id identity.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cache, id)
}
