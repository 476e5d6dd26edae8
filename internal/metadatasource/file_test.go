package metadatasource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func writeManifest(t *testing.T, dir, catID, updID string) {
	t.Helper()
	catXML := `<UpdateXml><Category/></UpdateXml>`
	updXML := `<UpdateXml><SoftwareUpdate/></UpdateXml>`
	if err := os.WriteFile(filepath.Join(dir, "cat.xml"), []byte(catXML), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "upd.xml"), []byte(updXML), 0644); err != nil {
		t.Fatal(err)
	}

	manifestJSON := `{
		"categories": [{"id":"` + catID + `","revision":1,"metadataFile":"cat.xml"}],
		"updates": [{"id":"` + updID + `","revision":2,"metadataFile":"upd.xml","requires":["` + catID + `"]}],
		"rootGuids": ["` + catID + `"],
		"nonLeafGuids": [],
		"leafGuids": ["` + updID + `"]
	}`
	if err := os.WriteFile(filepath.Join(dir, manifestFileName), []byte(manifestJSON), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadBuildsIndices(t *testing.T) {
	dir := t.TempDir()
	catID := uuid.New().String()
	updID := uuid.New().String()
	writeManifest(t, dir, catID, updID)

	src, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if len(src.CategoriesIndex()) != 1 {
		t.Fatalf("categories = %d, want 1", len(src.CategoriesIndex()))
	}
	if len(src.UpdatesIndex()) != 1 {
		t.Fatalf("updates = %d, want 1", len(src.UpdatesIndex()))
	}
	if len(src.GetRootUpdates()) != 1 {
		t.Fatalf("root updates = %d, want 1", len(src.GetRootUpdates()))
	}
	if len(src.GetLeafUpdates()) != 1 {
		t.Fatalf("leaf updates = %d, want 1", len(src.GetLeafUpdates()))
	}

	revIdx := src.GetIndex()
	if _, ok := revIdx[2]; !ok {
		t.Fatal("revision 2 missing from GetIndex")
	}
}

func TestLoadAcceptsManifestFilePath(t *testing.T) {
	dir := t.TempDir()
	catID := uuid.New().String()
	updID := uuid.New().String()
	writeManifest(t, dir, catID, updID)

	src, err := Load(filepath.Join(dir, manifestFileName))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(src.CategoriesIndex()) != 1 {
		t.Fatal("expected one category when loading via manifest file path")
	}
}

func TestUpdatePrerequisiteRequiresInstalledCategory(t *testing.T) {
	dir := t.TempDir()
	catID := uuid.New().String()
	updID := uuid.New().String()
	writeManifest(t, dir, catID, updID)

	src, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	var upd = src.UpdatesIndex()
	for _, u := range upd {
		if u.IsApplicable(map[uuid.UUID]struct{}{}) {
			t.Fatal("update should not be applicable without its prerequisite installed")
		}
		catUUID, _ := uuid.Parse(catID)
		if !u.IsApplicable(map[uuid.UUID]struct{}{catUUID: {}}) {
			t.Fatal("update should be applicable once its prerequisite is installed")
		}
	}
}

func TestLoadMissingManifestReturnsError(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}
