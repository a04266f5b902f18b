package core

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// releaseNamePattern matches "OM" + whitespace + 3 or 4 unsigned integer groups.
var releaseNamePattern = regexp.MustCompile(`^OM\s+(\d+)\.(\d+)\.(\d+)(?:\.(\d+))?$`)

var artifactBasePattern = regexp.MustCompile(`^OM\d+(?:\.\d+){2,3}$`)

// IsArtifactBase reports whether base has the shape of a published base
// name, e.g. "OM15.4.1" or "OM15.4.1.9999". Other files in the output
// directory belong to someone else.
func IsArtifactBase(base string) bool {
	return artifactBasePattern.MatchString(base)
}

// Verdict is the outcome of classifying a single directory name.
type Verdict string

const (
	// VerdictAccepted means the folder is a publishable release.
	VerdictAccepted Verdict = "accepted"

	// VerdictNotRelease means the name does not look like a release at all.
	VerdictNotRelease Verdict = "not-release"

	// VerdictRejected means the name looks like a release but is excluded.
	VerdictRejected Verdict = "rejected"
)

// Classification is the tagged result of Classify.
//
// Version is only meaningful when Verdict is VerdictAccepted; Reason is only
// set when Verdict is VerdictRejected.
type Classification struct {
	Name    string
	Verdict Verdict
	Version ReleaseVersion
	Reason  string
}

// Accepted reports whether the classification produced a release.
func (c Classification) Accepted() bool {
	return c.Verdict == VerdictAccepted
}

// Classify decides whether a directory name under sourceRoot is a release.
//
// It is a pure function of its arguments and never touches the filesystem.
func Classify(sourceRoot, name string) Classification {
	m := releaseNamePattern.FindStringSubmatch(name)
	if m == nil {
		return Classification{Name: name, Verdict: VerdictNotRelease}
	}

	groups := m[1:]
	if groups[3] == "" {
		groups = groups[:3]
	}

	tuple := make([]int, 0, len(groups))
	for _, g := range groups {
		n, err := strconv.ParseInt(g, 10, 64)
		if err != nil || n > math.MaxInt32 {
			return Classification{
				Name:    name,
				Verdict: VerdictRejected,
				Reason:  fmt.Sprintf("component %q is not a valid version number", g),
			}
		}
		tuple = append(tuple, int(n))
	}

	if tuple[0] < MinimumMajor {
		return Classification{
			Name:    name,
			Verdict: VerdictRejected,
			Reason:  fmt.Sprintf("major version %d is below %d", tuple[0], MinimumMajor),
		}
	}

	return Classification{
		Name:    name,
		Verdict: VerdictAccepted,
		Version: ReleaseVersion{
			Name:        name,
			VersionText: formatTuple(tuple),
			Tuple:       tuple,
			SourcePath:  filepath.Join(sourceRoot, name),
			Unstable:    groups[len(groups)-1] == UnstableMarker,
		},
	}
}

// SortDescending orders releases newest first by numeric tuple comparison.
// Ties (e.g. "OM 15.4.1" and "OM  15.4.01") fall back to the folder name.
func SortDescending(versions []ReleaseVersion) {
	sort.SliceStable(versions, func(i, j int) bool {
		if c := CompareTuples(versions[i].Tuple, versions[j].Tuple); c != 0 {
			return c > 0
		}
		return versions[i].Name < versions[j].Name
	})
}

// Discovery is the result of scanning a source root.
type Discovery struct {
	// Releases holds the accepted releases, newest first.
	Releases []ReleaseVersion

	// Classifications holds the verdict for every directory entry:
	// accepted releases first (newest first), then the rest by name.
	Classifications []Classification
}

// Discover lists the directories directly beneath sourceRoot and classifies
// each one. Plain files are ignored.
func Discover(sourceRoot string) (*Discovery, error) {
	entries, err := os.ReadDir(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("reading source root: %w", err)
	}

	var accepted []ReleaseVersion
	var others []Classification
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		c := Classify(sourceRoot, e.Name())
		if c.Accepted() {
			accepted = append(accepted, c.Version)
			continue
		}
		others = append(others, c)
	}

	accepted, dups := dedupeBaseNames(accepted)
	others = append(others, dups...)

	SortDescending(accepted)
	sort.SliceStable(others, func(i, j int) bool { return others[i].Name < others[j].Name })

	d := &Discovery{Releases: accepted}
	d.Classifications = make([]Classification, 0, len(accepted)+len(others))
	for _, v := range accepted {
		d.Classifications = append(d.Classifications, Classification{Name: v.Name, Verdict: VerdictAccepted, Version: v})
	}
	d.Classifications = append(d.Classifications, others...)
	return d, nil
}

// dedupeBaseNames keeps one release per output base name. Folder names such
// as "OM 15.4.1" and "OM 15.4.01" normalize to the same artifacts; the
// canonical spelling wins, otherwise the smallest folder name. The losers
// are returned as rejections.
func dedupeBaseNames(accepted []ReleaseVersion) ([]ReleaseVersion, []Classification) {
	winners := make(map[string]ReleaseVersion, len(accepted))
	for _, v := range accepted {
		cur, ok := winners[v.BaseName()]
		if !ok || preferred(v, cur) {
			winners[v.BaseName()] = v
		}
	}
	if len(winners) == len(accepted) {
		return accepted, nil
	}

	kept := make([]ReleaseVersion, 0, len(winners))
	var dups []Classification
	for _, v := range accepted {
		w := winners[v.BaseName()]
		if w.Name == v.Name {
			kept = append(kept, v)
			continue
		}
		dups = append(dups, Classification{
			Name:    v.Name,
			Verdict: VerdictRejected,
			Reason:  "duplicate of " + w.Name,
		})
	}
	return kept, dups
}

func preferred(a, b ReleaseVersion) bool {
	ac, bc := a.canonical(), b.canonical()
	if ac != bc {
		return ac
	}
	return a.Name < b.Name
}

// LatestStable returns the greatest release that is not unstable.
// releases must already be sorted newest first.
func LatestStable(releases []ReleaseVersion) (ReleaseVersion, bool) {
	for _, v := range releases {
		if !v.Unstable {
			return v, true
		}
	}
	return ReleaseVersion{}, false
}

// ExpectedBaseNames returns the set of output base names the releases own.
func ExpectedBaseNames(releases []ReleaseVersion) map[string]struct{} {
	out := make(map[string]struct{}, len(releases))
	for _, v := range releases {
		out[v.BaseName()] = struct{}{}
	}
	return out
}
