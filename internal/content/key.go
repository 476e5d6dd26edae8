package content

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/wsusd/wsusd/internal/catalog"
)

// digestURLSegments computes the (directory, name) URL segments for a
// file per spec.md §4.7/§6: directory is the uppercase hex of the last
// byte of the file's first digest (1 or 2 hex chars, no padding); name is
// the full lowercase hex of that digest. This is the shape used when
// constructing a content URL to hand to the client (the Extended Info
// Responder in internal/extendedinfo).
func digestURLSegments(file catalog.UpdateFile) (dir, name string, ok bool) {
	d := file.FirstDigest()
	if len(d.Bytes) == 0 {
		return "", "", false
	}
	last := d.Bytes[len(d.Bytes)-1]
	dir = strings.TrimLeft(strings.ToUpper(hex.EncodeToString([]byte{last})), "0")
	if dir == "" {
		dir = "0"
	}
	name = hex.EncodeToString(d.Bytes)
	return dir, name, true
}

// DigestKey computes the same (directory, name) pair as digestURLSegments
// but lowercased on both segments, for case-insensitive map lookups (the
// Content Router matches incoming request paths against this key).
func DigestKey(file catalog.UpdateFile) (dir, name string, ok bool) {
	dir, name, ok = digestURLSegments(file)
	if !ok {
		return "", "", false
	}
	return strings.ToLower(dir), strings.ToLower(name), true
}

// URLSegments returns the directory/name pair as they should appear in a
// content URL handed to the client: directory uppercase, name lowercase.
func URLSegments(file catalog.UpdateFile) (dir, name string, ok bool) {
	return digestURLSegments(file)
}

// firstDigestBase64 is used to dedup files sharing an identical first
// digest when building the router's lookup map.
func firstDigestBase64(file catalog.UpdateFile) string {
	d := file.FirstDigest()
	return base64.StdEncoding.EncodeToString(d.Bytes)
}
