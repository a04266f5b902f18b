package core

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Reserved subtree whose contents are excluded from packaging, except for the
// nested UniversalDir which is packaged again.
const (
	AddinParentDir = "om-apps"
	AddinDir       = "omofficeaddin"
	UniversalDir   = "_universal"
)

// InclusionResolver selects the files of a release that must be packaged.
//
// Every regular file is included, except files beneath
// om-apps/omofficeaddin. Files beneath om-apps/omofficeaddin/_universal are
// included again. Segments are compared case-insensitively and exactly, so
// "om-apps/omofficeaddin2" is an ordinary directory.
type InclusionResolver struct{}

// NewInclusionResolver creates a new InclusionResolver.
func NewInclusionResolver() *InclusionResolver {
	return &InclusionResolver{}
}

// Resolve walks release.SourcePath and returns the included files sorted by
// relative path. An empty set is a valid result.
//
// Symlinks and other non-regular entries are never included. Any error while
// walking the tree is returned; a partial listing is never produced.
func (r *InclusionResolver) Resolve(release ReleaseVersion) (*IncludedSet, error) {
	root := release.SourcePath
	set := &IncludedSet{TopFolder: release.Name, Files: []IncludedFile{}}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if prunable(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !Included(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		set.Files = append(set.Files, IncludedFile{
			AbsolutePath: path,
			RelativePath: rel,
			Size:         info.Size(),
			ModTime:      info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating %q: %w", release.Name, err)
	}

	// Do not rely on walk order.
	sort.Slice(set.Files, func(i, j int) bool {
		return set.Files[i].RelativePath < set.Files[j].RelativePath
	})
	return set, nil
}

// Included reports whether a file at the given release-relative path is
// packaged. Both '/' and '\' are accepted as separators.
func Included(relPath string) bool {
	segs := splitSegments(relPath)
	if len(segs) == 0 {
		return false
	}
	dirs := segs[:len(segs)-1]

	i := addinIndex(dirs)
	if i < 0 {
		return true
	}
	// dirs[i] is om-apps, dirs[i+1] is omofficeaddin; the file is only
	// re-included when the next directory is _universal.
	return len(dirs) > i+2 && strings.EqualFold(dirs[i+2], UniversalDir)
}

// prunable reports whether a directory can be skipped entirely: it lies in
// the excluded zone and is not on the path to the inclusion zone.
func prunable(relDir string) bool {
	segs := splitSegments(relDir)
	i := addinIndex(segs)
	if i < 0 || len(segs) <= i+2 {
		return false
	}
	return !strings.EqualFold(segs[i+2], UniversalDir)
}

// addinIndex returns the index of the first "om-apps" segment directly
// followed by "omofficeaddin", or -1.
func addinIndex(segs []string) int {
	for i := 0; i+1 < len(segs); i++ {
		if strings.EqualFold(segs[i], AddinParentDir) && strings.EqualFold(segs[i+1], AddinDir) {
			return i
		}
	}
	return -1
}

func splitSegments(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' })
}
