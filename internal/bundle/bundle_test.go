package bundle

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func projectFS() fstest.MapFS {
	return fstest.MapFS{
		"content/site.txt":                 {Data: []byte("Title: Test\n")},
		"content/1_photography/album.txt":  {Data: []byte("Title: Photography\n")},
		"content/1_photography/sunset.jpg": {Data: []byte("jpegbytes")},
		"users/admin/user.txt":             {Data: []byte("Email: admin@example.com\n\n----\n\nRole: admin\n")},
		"blueprints/pages/album.yml":       {Data: []byte("title: Album\n")},
		"quarry.toml":                      {Data: []byte("base_url = \"https://example.com\"\n")},
		".DS_Store":                        {Data: []byte("junk")},
		"content/.cache/thumb.jpg":         {Data: []byte("junk")},
	}
}

func TestBuildManifest(t *testing.T) {
	m, err := BuildManifest(projectFS(), "v1")
	if err != nil {
		t.Fatalf("BuildManifest: %v", err)
	}
	if m.Schema != ManifestSchema {
		t.Errorf("schema: got %q", m.Schema)
	}
	if m.Version != "v1" {
		t.Errorf("version: got %q", m.Version)
	}
	if m.Summary.TotalFiles != 6 {
		t.Errorf("total files: want 6, got %d", m.Summary.TotalFiles)
	}
	for _, f := range m.Files {
		if strings.Contains(f.Path, ".cache") || strings.HasPrefix(f.Path, ".") {
			t.Errorf("dotfile leaked into manifest: %s", f.Path)
		}
		if len(f.SHA256) != 64 {
			t.Errorf("bad digest for %s: %q", f.Path, f.SHA256)
		}
	}
}

func TestBuildManifest_EmptyProject(t *testing.T) {
	_, err := BuildManifest(fstest.MapFS{}, "")
	if err == nil {
		t.Fatal("want error for empty project")
	}
}

func TestExportExtractRoundtrip(t *testing.T) {
	bundlePath := filepath.Join(t.TempDir(), "site.tar.gz")

	m, hash, err := ExportFile(projectFS(), "v2", bundlePath)
	if err != nil {
		t.Fatalf("ExportFile: %v", err)
	}
	if len(hash) != 64 {
		t.Fatalf("bundle hash: got %q", hash)
	}

	dst := filepath.Join(t.TempDir(), "extracted")
	got, err := Extract(bundlePath, dst)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Version != "v2" {
		t.Errorf("version: got %q", got.Version)
	}
	if got.Summary.TotalFiles != m.Summary.TotalFiles {
		t.Errorf("file count: export %d, extract %d", m.Summary.TotalFiles, got.Summary.TotalFiles)
	}

	data, err := os.ReadFile(filepath.Join(dst, "content", "site.txt"))
	if err != nil {
		t.Fatalf("extracted file: %v", err)
	}
	if string(data) != "Title: Test\n" {
		t.Errorf("content: got %q", data)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	bundlePath := filepath.Join(t.TempDir(), "site.tar.gz")
	if _, _, err := ExportFile(projectFS(), "", bundlePath); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "extracted")
	m, err := Extract(bundlePath, dst)
	if err != nil {
		t.Fatal(err)
	}

	// modified file
	if err := os.WriteFile(filepath.Join(dst, "content", "site.txt"), []byte("Title: Evil\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.Verify(os.DirFS(dst)); err == nil {
		t.Fatal("want digest mismatch error")
	}
}

func TestVerifyDetectsUnlistedFile(t *testing.T) {
	bundlePath := filepath.Join(t.TempDir(), "site.tar.gz")
	if _, _, err := ExportFile(projectFS(), "", bundlePath); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "extracted")
	m, err := Extract(bundlePath, dst)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dst, "content", "smuggled.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	err = m.Verify(os.DirFS(dst))
	if err == nil || !strings.Contains(err.Error(), "unlisted") {
		t.Fatalf("want unlisted file error, got %v", err)
	}
}

// writeHostileBundle writes a tar.gz with an escaping path.
func writeHostileBundle(t *testing.T, path, entryName string) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{Name: entryName, Mode: 0o644, Size: 4}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte("evil")); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	for _, name := range []string{"../evil.txt", "/etc/evil.txt"} {
		bundlePath := filepath.Join(t.TempDir(), "hostile.tar.gz")
		writeHostileBundle(t, bundlePath, name)

		_, err := Extract(bundlePath, filepath.Join(t.TempDir(), "out"))
		if err == nil {
			t.Fatalf("entry %q: want extraction error", name)
		}
	}
}

func TestSanitizeTarPath(t *testing.T) {
	dst := t.TempDir()

	if _, err := sanitizeTarPath(dst, "content/site.txt"); err != nil {
		t.Errorf("clean path rejected: %v", err)
	}
	if _, err := sanitizeTarPath(dst, "../escape"); err == nil {
		t.Error("parent traversal accepted")
	}
	if _, err := sanitizeTarPath(dst, "/abs/path"); err == nil {
		t.Error("absolute path accepted")
	}
	if _, err := sanitizeTarPath(dst, "a/../../escape"); err == nil {
		t.Error("nested traversal accepted")
	}
}
