// Package sidecar reads and writes the metadata files published next to each
// release archive.
package sidecar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/csarwi/publishom/internal/core"
	"github.com/csarwi/publishom/internal/durable"
)

// Artifact suffixes, appended to a release base name such as "OM15.4.31".
const (
	ArchiveExt     = ".zip"
	ManifestExt    = ".manifest.json"
	FingerprintExt = ".sha256"
)

// AliasName is the fixed name of the latest-stable archive copy.
const AliasName = "OM_latest.zip"

// BaseOf splits an artifact file name into its release base name. ok is false
// for names that carry none of the artifact suffixes.
func BaseOf(name string) (base string, ok bool) {
	for _, ext := range []string{ManifestExt, FingerprintExt, ArchiveExt} {
		if strings.HasSuffix(name, ext) && len(name) > len(ext) {
			return strings.TrimSuffix(name, ext), true
		}
	}
	return "", false
}

// Paths names the artifact triple of one release in an output directory.
type Paths struct {
	Archive     string
	Manifest    string
	Fingerprint string
}

// PathsFor returns the artifact paths for base inside outputDir.
func PathsFor(outputDir, base string) Paths {
	return Paths{
		Archive:     filepath.Join(outputDir, base+ArchiveExt),
		Manifest:    filepath.Join(outputDir, base+ManifestExt),
		Fingerprint: filepath.Join(outputDir, base+FingerprintExt),
	}
}

// All returns the three paths.
func (p Paths) All() []string {
	return []string{p.Archive, p.Manifest, p.Fingerprint}
}

// ManifestFile is one entry of a manifest.
type ManifestFile struct {
	Path            string    `json:"path"`
	Length          int64     `json:"length"`
	LastModifiedUTC time.Time `json:"lastModifiedUtc"`
}

// Manifest describes the contents of a release archive.
type Manifest struct {
	SourcePath   string         `json:"sourcePath"`
	TopFolder    string         `json:"topFolder"`
	FileCount    int            `json:"fileCount"`
	TotalBytes   int64          `json:"totalBytes"`
	GeneratedUTC time.Time      `json:"generatedUtc"`
	Files        []ManifestFile `json:"files"`
}

// NewManifest builds the manifest for set. generated is stored in UTC.
func NewManifest(release core.ReleaseVersion, set *core.IncludedSet, generated time.Time) Manifest {
	m := Manifest{
		SourcePath:   release.SourcePath,
		TopFolder:    release.Name,
		GeneratedUTC: generated.UTC(),
		Files:        []ManifestFile{},
	}
	if set == nil {
		return m
	}
	for _, f := range set.Files {
		m.Files = append(m.Files, ManifestFile{
			Path:            f.RelativePath,
			Length:          f.Size,
			LastModifiedUTC: f.ModTime.UTC(),
		})
	}
	m.FileCount = len(m.Files)
	m.TotalBytes = set.TotalBytes()
	return m
}

// Validate checks the manifest's internal consistency.
func (m Manifest) Validate() error {
	var errs []error
	if strings.TrimSpace(m.TopFolder) == "" {
		errs = append(errs, errors.New("topFolder is required"))
	}
	if m.Files == nil {
		errs = append(errs, errors.New("files must be an array (not null)"))
	}
	if m.FileCount != len(m.Files) {
		errs = append(errs, fmt.Errorf("fileCount %d does not match %d files", m.FileCount, len(m.Files)))
	}
	var total int64
	for i, f := range m.Files {
		if f.Path == "" {
			errs = append(errs, fmt.Errorf("files[%d].path is required", i))
		}
		total += f.Length
	}
	if total != m.TotalBytes {
		errs = append(errs, fmt.Errorf("totalBytes %d does not match sum %d", m.TotalBytes, total))
	}
	return errors.Join(errs...)
}

// WriteManifest atomically writes m to path.
func WriteManifest(path string, m Manifest) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	data, err := jsonMarshalStable(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := durable.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads and validates a manifest.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	if err := readJSONStrict(path, &m); err != nil {
		return Manifest{}, err
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("invalid manifest on disk: %w", err)
	}
	return m, nil
}

// WriteFingerprint atomically writes fp as a single line.
func WriteFingerprint(path string, fp core.Fingerprint) error {
	if fp == "" {
		return errors.New("fingerprint is empty")
	}
	if err := durable.WriteFile(path, []byte(fp.String()+"\n"), 0o644); err != nil {
		return fmt.Errorf("write fingerprint: %w", err)
	}
	return nil
}

// ReadFingerprint returns the persisted fingerprint, or "" when none exists.
func ReadFingerprint(path string) (core.Fingerprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return core.Fingerprint(strings.ToLower(strings.TrimSpace(string(data)))), nil
}

func jsonMarshalStable(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func readJSONStrict(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure no trailing junk.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}
