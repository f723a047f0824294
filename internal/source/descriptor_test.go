package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSources(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDescriptors_sortedByPriority(t *testing.T) {
	path := writeSources(t, `
sources:
  - name: backup
    kind: playlist
    priority: 5
    urls: ["http://b/playlist.m3u"]
  - name: primary
    kind: playlist
    priority: 1
    urls: ["http://a/playlist.m3u", "http://a2/playlist.m3u"]
  - name: guide
    kind: guide
    priority: 2
    directory: true
    file_patterns: ["*.xml", "*.xml.gz"]
    urls: ["http://g/listing/"]
`)
	got, err := LoadDescriptors(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 sources; got %d", len(got))
	}
	if got[0].Name != "primary" || got[1].Name != "guide" || got[2].Name != "backup" {
		t.Errorf("order = %s, %s, %s", got[0].Name, got[1].Name, got[2].Name)
	}
	if len(got[0].URLs) != 2 {
		t.Errorf("primary urls = %v", got[0].URLs)
	}
	if !got[1].IsDirectory || len(got[1].FilePatterns) != 2 {
		t.Errorf("guide = %+v", got[1])
	}
}

func TestLoadDescriptors_rejectsDuplicateNames(t *testing.T) {
	path := writeSources(t, `
sources:
  - name: x
    kind: playlist
    urls: ["http://a"]
  - name: x
    kind: playlist
    urls: ["http://b"]
`)
	_, err := LoadDescriptors(path)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate-name error; got %v", err)
	}
}

func TestLoadDescriptors_rejectsDirectoryWithoutPatterns(t *testing.T) {
	path := writeSources(t, `
sources:
  - name: d
    kind: guide
    directory: true
    urls: ["http://g/"]
`)
	if _, err := LoadDescriptors(path); err == nil {
		t.Error("expected error for directory source without file_patterns")
	}
}

func TestLoadDescriptors_rejectsUnknownKind(t *testing.T) {
	path := writeSources(t, `
sources:
  - name: x
    kind: torrent
    urls: ["http://a"]
`)
	if _, err := LoadDescriptors(path); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestDefaultDescriptors_valid(t *testing.T) {
	if err := validate(DefaultDescriptors()); err != nil {
		t.Errorf("built-in defaults must validate: %v", err)
	}
}
