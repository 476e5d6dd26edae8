package content

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/wsusd/wsusd/internal/catalog"
	"github.com/wsusd/wsusd/internal/identity"
)

func fileWithDigest(digestHex string) catalog.UpdateFile {
	b := make([]byte, len(digestHex)/2)
	for i := range b {
		b[i] = byte(i + 1)
	}
	return catalog.UpdateFile{Digests: []catalog.Digest{{Algorithm: "SHA1", Bytes: b}}}
}

func TestDigestKeyIsLowercaseAndStable(t *testing.T) {
	f := fileWithDigest("0102030405")
	dir, name, ok := DigestKey(f)
	if !ok {
		t.Fatal("expected DigestKey to succeed for a file with a digest")
	}
	if dir != "05" && dir != "5" {
		t.Fatalf("dir = %q, want the lowercase hex of the last digest byte", dir)
	}
	for _, c := range dir + name {
		if c >= 'A' && c <= 'Z' {
			t.Fatalf("DigestKey should be fully lowercase, got dir=%q name=%q", dir, name)
		}
	}
}

func TestDigestKeyFailsWithoutDigest(t *testing.T) {
	if _, _, ok := DigestKey(catalog.UpdateFile{}); ok {
		t.Fatal("expected DigestKey to fail for a file with no digests")
	}
}

func TestRouterServesKnownFileFromLocalStore(t *testing.T) {
	dir := t.TempDir()
	file := fileWithDigest("0102030405")
	fileDir, fileName, ok := DigestKey(file)
	if !ok {
		t.Fatal("fixture file should have a digest")
	}

	if err := os.MkdirAll(filepath.Join(dir, fileDir), 0755); err != nil {
		t.Fatal(err)
	}
	content := []byte("payload-bytes")
	if err := os.WriteFile(filepath.Join(dir, fileDir, fileName), content, 0644); err != nil {
		t.Fatal(err)
	}

	store := NewLocalStore(dir)
	router := NewRouter(store)

	upd := catalog.NewSoftwareUpdate(
		identity.New(uuid.New(), 1), false, catalog.AlwaysTrue{},
		[]catalog.UpdateFile{file}, nil, false, false, nil,
	)
	router.Build([]catalog.Update{upd})

	req := httptest.NewRequest("GET", "/Content/"+fileDir+"/"+fileName, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	got, _ := io.ReadAll(rec.Body)
	if string(got) != string(content) {
		t.Fatalf("body = %q, want %q", got, content)
	}
}

func TestRouterReturnsNotFoundForUnknownFile(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	router := NewRouter(store)

	req := httptest.NewRequest("GET", "/Content/ab/unknown.cab", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestParseContentPathRejectsMalformedPaths(t *testing.T) {
	cases := []string{"/Content/", "/Content/onlydir", "/wrong/prefix/x", "/Content//name"}
	for _, p := range cases {
		if _, _, ok := parseContentPath(p); ok {
			t.Fatalf("expected parseContentPath(%q) to fail", p)
		}
	}
}
