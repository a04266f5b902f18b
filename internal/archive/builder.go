package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/csarwi/publishom/internal/core"
	"github.com/csarwi/publishom/internal/durable"
)

// Builder produces one release archive:
//
//  1. write a list file into the local temp directory
//  2. run the engine with the release's parent as working directory,
//     writing a local temp archive
//  3. move the local archive to "<final>.tmp.<uuid>" beside the final path
//  4. wait until the staged file is visible on the destination
//  5. rename the staged file over the final path
//
// Building locally keeps the engine away from network latency and from
// partial-write visibility on shared storage.
type Builder struct {
	Archiver Archiver

	// TempDir is the local scratch directory; empty means os.TempDir().
	TempDir string

	// Level is the compression level passed to the engine.
	Level int

	// VisibilityAttempts and VisibilityInterval bound the wait in step 4.
	VisibilityAttempts int
	VisibilityInterval time.Duration

	Logger *log.Logger
}

// Preflight checks the engine's external precondition, if any.
func (b *Builder) Preflight() error {
	if b.Archiver == nil {
		return errors.New("no archiver configured")
	}
	if p, ok := b.Archiver.(Preflighter); ok {
		return p.Preflight()
	}
	return nil
}

// Build archives set, rooted at release.Name, into finalPath.
func (b *Builder) Build(ctx context.Context, release core.ReleaseVersion, set *core.IncludedSet, finalPath string) error {
	if set.Empty() {
		return fmt.Errorf("refusing to archive empty release %q", release.Name)
	}

	tempDir := b.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	// The archiver runs in the release's parent directory, so its list file
	// and output must not be relative to ours.
	tempDir, err := filepath.Abs(tempDir)
	if err != nil {
		return fmt.Errorf("resolving temp dir: %w", err)
	}
	id := uuid.NewString()
	listFile := filepath.Join(tempDir, "publishom-"+id+".lst")
	localArchive := filepath.Join(tempDir, "publishom-"+id+".zip")
	defer func() {
		_ = os.Remove(listFile)
		_ = os.Remove(localArchive)
	}()

	if err := WriteListFile(listFile, set); err != nil {
		return fmt.Errorf("writing list file: %w", err)
	}

	req := Request{
		WorkDir:  filepath.Dir(release.SourcePath),
		ListFile: listFile,
		Output:   localArchive,
		Level:    b.Level,
	}
	start := time.Now()
	b.logger().Debug("running archiver", "engine", b.Archiver.Name(), "files", len(set.Files), "list", listFile)
	if err := b.Archiver.Archive(ctx, req); err != nil {
		return err
	}
	ok, err := durable.Exists(localArchive)
	if err != nil {
		return fmt.Errorf("checking archiver output: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoOutput, localArchive)
	}
	b.logger().Debug("archiver finished", "engine", b.Archiver.Name(), "elapsed", time.Since(start).Round(time.Millisecond))

	staged := finalPath + durable.TempMarker + id
	if err := durable.Move(localArchive, staged); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("staging archive: %w", err)
	}
	if err := durable.WaitVisible(ctx, staged, b.VisibilityAttempts, b.VisibilityInterval); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("staging archive: %w", err)
	}
	if err := durable.Replace(staged, finalPath); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("publishing archive: %w", err)
	}
	return nil
}

func (b *Builder) logger() *log.Logger {
	if b.Logger == nil {
		return log.Default()
	}
	return b.Logger
}
