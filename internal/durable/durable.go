// Package durable implements crash-safe file publication.
//
// Every externally visible file is produced under a unique temp name in the
// destination directory and renamed into place. A crash leaves at most a
// stray "<name>.tmp.*" file next to an unchanged previous version.
package durable

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// TempMarker separates a final file name from the random suffix of its
// in-flight temp files.
const TempMarker = ".tmp."

// IsTempFor reports whether name is an in-flight temp file of final.
func IsTempFor(name, final string) bool {
	return strings.HasPrefix(name, final+TempMarker)
}

// Write creates path by streaming fill into a temp file in the same
// directory, syncing it, and renaming it over path.
//
// Either the rename completes or the temp file is removed, on every exit path
// including a failing or panicking fill.
func Write(path string, perm os.FileMode, fill func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, base+TempMarker+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := fill(tmp); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := Replace(tmpName, path); err != nil {
		return err
	}
	committed = true
	syncDir(dir)
	return nil
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	return Write(path, perm, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
}

// CopyFile atomically replaces dst with a copy of src.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	return Write(dst, info.Mode().Perm(), func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// Replace renames staged over final.
//
// Some network filesystems refuse to rename over an existing file; in that
// case final is removed first and the rename retried. A crash between the two
// steps leaves final missing, which the next run treats as "rebuild".
func Replace(staged, final string) error {
	err := os.Rename(staged, final)
	if err == nil {
		return nil
	}
	if _, statErr := os.Stat(final); statErr != nil {
		return err
	}
	if rmErr := os.Remove(final); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return fmt.Errorf("removing %s before replace: %w", filepath.Base(final), rmErr)
	}
	return os.Rename(staged, final)
}

// Move relocates src to dst. A plain rename is tried first; when src and dst
// live on different volumes the file is copied and src removed.
//
// dst is written directly, so callers must pass a temp name they own.
func Move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		_ = in.Close()
		return err
	}
	_, copyErr := io.Copy(out, in)
	syncErr := out.Sync()
	closeErr := out.Close()
	_ = in.Close()
	if err := errors.Join(copyErr, syncErr, closeErr); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

// Exists reports whether path exists as a regular file.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// syncDir is best-effort: directories cannot be synced on every platform.
func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	defer f.Close()
	_ = f.Sync()
}
