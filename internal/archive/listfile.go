package archive

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/csarwi/publishom/internal/core"
)

// ListEntries returns the list file lines for set: one path per included file
// relative to the release's parent directory, using the native separator.
func ListEntries(set *core.IncludedSet) []string {
	out := make([]string, 0, len(set.Files))
	for _, f := range set.Files {
		out = append(out, set.TopFolder+string(filepath.Separator)+filepath.FromSlash(f.RelativePath))
	}
	return out
}

// WriteListFile writes set's entries to path as UTF-8 with CRLF line
// endings. Names are written byte-for-byte as the OS reported them.
func WriteListFile(path string, set *core.IncludedSet) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, line := range ListEntries(set) {
		if _, err := w.WriteString(line + "\r\n"); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadListFile parses a list file written by WriteListFile.
func ReadListFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}
	return out, nil
}
