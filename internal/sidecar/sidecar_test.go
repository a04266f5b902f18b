package sidecar

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/csarwi/publishom/internal/core"
)

func sample() (core.ReleaseVersion, *core.IncludedSet) {
	release := core.Classify("/src", "OM 15.4.31").Version
	mod := time.Date(2024, 3, 1, 12, 0, 0, 500, time.FixedZone("CET", 3600))
	return release, &core.IncludedSet{
		TopFolder: release.Name,
		Files: []core.IncludedFile{
			{RelativePath: "docs/c.txt", Size: 3, ModTime: mod},
			{RelativePath: "om-apps/omofficeaddin/_universal/a.txt", Size: 4, ModTime: mod},
		},
	}
}

func TestPathsFor(t *testing.T) {
	p := PathsFor("/out", "OM15.4.31")
	want := []string{
		filepath.Join("/out", "OM15.4.31.zip"),
		filepath.Join("/out", "OM15.4.31.manifest.json"),
		filepath.Join("/out", "OM15.4.31.sha256"),
	}
	for i, got := range p.All() {
		if got != want[i] {
			t.Errorf("path %d: expected %q, got %q", i, want[i], got)
		}
	}
}

func TestManifest_WriteAndRead(t *testing.T) {
	release, set := sample()
	path := filepath.Join(t.TempDir(), "OM15.4.31.manifest.json")
	generated := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

	if err := WriteManifest(path, NewManifest(release, set, generated)); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, want := range []string{
		`"topFolder": "OM 15.4.31"`,
		`"fileCount": 2`,
		`"totalBytes": 7`,
		`"generatedUtc": "2024-04-01T08:00:00Z"`,
		`"lastModifiedUtc": "2024-03-01T11:00:00.0000005Z"`,
		`"path": "om-apps/omofficeaddin/_universal/a.txt"`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("manifest missing %s:\n%s", want, data)
		}
	}

	m, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.FileCount != 2 || m.Files[0].Path != "docs/c.txt" || m.SourcePath != release.SourcePath {
		t.Fatalf("unexpected manifest %+v", m)
	}
}

func TestManifest_EmptySetSerializesEmptyArray(t *testing.T) {
	release, _ := sample()
	path := filepath.Join(t.TempDir(), "m.json")
	if err := WriteManifest(path, NewManifest(release, &core.IncludedSet{TopFolder: release.Name}, time.Now())); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"files": []`) {
		t.Fatalf("expected empty files array, got:\n%s", data)
	}
	if !strings.Contains(string(data), `"fileCount": 0`) {
		t.Fatalf("expected zero file count, got:\n%s", data)
	}
}

func TestReadManifest_RejectsInconsistentDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.json")
	doc := `{"sourcePath":"/s","topFolder":"OM 15.4.31","fileCount":3,"totalBytes":0,"generatedUtc":"2024-01-01T00:00:00Z","files":[]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadManifest(path); err == nil {
		t.Fatal("expected validation error")
	}

	if err := os.WriteFile(path, []byte(`{"topFolder":"x","unknown":1}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadManifest(path); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestFingerprint_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "OM15.4.31.sha256")

	fp, err := ReadFingerprint(path)
	if err != nil || fp != "" {
		t.Fatalf("expected empty fingerprint for missing file, got %q, %v", fp, err)
	}

	want := core.Fingerprint(strings.Repeat("ab", 32))
	if err := WriteFingerprint(path, want); err != nil {
		t.Fatalf("WriteFingerprint: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != want.String()+"\n" {
		t.Fatalf("unexpected file content %q", data)
	}

	got, err := ReadFingerprint(path)
	if err != nil {
		t.Fatalf("ReadFingerprint: %v", err)
	}
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	if err := WriteFingerprint(path, ""); err == nil {
		t.Fatal("expected error for empty fingerprint")
	}
}

func TestReadFingerprint_ToleratesForeignLineEndings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "OM15.4.31.sha256")
	if err := os.WriteFile(path, []byte("ABCDEF\r\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFingerprint(path)
	if err != nil {
		t.Fatalf("ReadFingerprint: %v", err)
	}
	if got != "abcdef" {
		t.Fatalf("expected normalized digest, got %q", got)
	}
}

func TestBaseOf(t *testing.T) {
	cases := map[string]string{
		"OM15.4.31.zip":           "OM15.4.31",
		"OM15.4.31.manifest.json": "OM15.4.31",
		"OM15.4.31.sha256":        "OM15.4.31",
		AliasName:                 "OM_latest",
	}
	for name, want := range cases {
		got, ok := BaseOf(name)
		if !ok || got != want {
			t.Errorf("BaseOf(%q) = %q, %v; want %q", name, got, ok, want)
		}
	}
	for _, name := range []string{"notes.txt", ".zip", "OM15.4.31.json"} {
		if _, ok := BaseOf(name); ok {
			t.Errorf("BaseOf(%q) should not match", name)
		}
	}
}
