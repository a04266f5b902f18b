package core

import "time"

// IncludedFile is a single file selected for packaging.
type IncludedFile struct {
	// AbsolutePath is the OS path of the file.
	AbsolutePath string

	// RelativePath is relative to the release root, always '/'-separated.
	RelativePath string

	// Size is the file length in bytes.
	Size int64

	// ModTime is the last modification time in UTC.
	ModTime time.Time
}

// IncludedSet is the complete set of files selected for one release.
// Files are always sorted by RelativePath.
type IncludedSet struct {
	// TopFolder is the release folder name, the root of every archive entry.
	TopFolder string

	Files []IncludedFile
}

// Empty reports whether nothing was selected.
func (s *IncludedSet) Empty() bool {
	return s == nil || len(s.Files) == 0
}

// TotalBytes sums the sizes of all files in the set.
func (s *IncludedSet) TotalBytes() int64 {
	if s == nil {
		return 0
	}
	var total int64
	for _, f := range s.Files {
		total += f.Size
	}
	return total
}
