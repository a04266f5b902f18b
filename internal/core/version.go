package core

import (
	"strconv"
	"strings"
)

const (
	// MinimumMajor is the lowest major version that is published.
	MinimumMajor = 15

	// UnstableMarker is the final component text reserved for unstable builds.
	UnstableMarker = "9999"

	// ArtifactPrefix prefixes every published base name.
	ArtifactPrefix = "OM"
)

// ReleaseVersion identifies one source release folder.
//
// Values are produced only by Classify; a folder that fails classification
// is never partially represented.
type ReleaseVersion struct {
	// Name is the original folder name, e.g. "OM 15.4.31".
	Name string

	// VersionText is the normalized dotted form, e.g. "15.4.31".
	VersionText string

	// Tuple holds the 3 or 4 numeric components used for ordering.
	Tuple []int

	// SourcePath is the absolute path of the release tree.
	SourcePath string

	// Unstable is true when the final component is the reserved marker.
	Unstable bool
}

func (v ReleaseVersion) canonical() bool {
	return v.Name == "OM "+v.VersionText
}

// BaseName is the output base name shared by the archive and its sidecars.
func (v ReleaseVersion) BaseName() string {
	return ArtifactPrefix + v.VersionText
}

// String returns the folder name.
func (v ReleaseVersion) String() string {
	return v.Name
}

// CompareTuples compares two version tuples numerically, component by
// component. A tuple that is a strict prefix of the other sorts first.
func CompareTuples(a, b []int) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func formatTuple(tuple []int) string {
	parts := make([]string, len(tuple))
	for i, n := range tuple {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}
