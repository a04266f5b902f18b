package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// Builtin is an in-process zip engine. It consumes the same list file as the
// external utility and produces the same entry layout, with '/' separators
// as the zip format requires.
type Builtin struct{}

// NewBuiltin creates the in-process engine.
func NewBuiltin() *Builtin {
	return &Builtin{}
}

// Name identifies the engine in logs.
func (b *Builtin) Name() string {
	return "builtin"
}

// Archive writes req.Output from the entries in req.ListFile.
func (b *Builtin) Archive(ctx context.Context, req Request) error {
	entries, err := ReadListFile(req.ListFile)
	if err != nil {
		return fmt.Errorf("reading list file: %w", err)
	}

	out, err := os.OpenFile(req.Output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)
	level := req.Level
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	writeErr := func() error {
		for _, rel := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := addFile(zw, filepath.Join(req.WorkDir, rel), filepath.ToSlash(rel), level); err != nil {
				return fmt.Errorf("adding %s: %w", rel, err)
			}
		}
		return zw.Close()
	}()
	closeErr := out.Close()
	if writeErr != nil {
		_ = os.Remove(req.Output)
		return writeErr
	}
	return closeErr
}

func addFile(zw *zip.Writer, path, name string, level int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	if level == 0 {
		hdr.Method = zip.Store
	}

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
