package publish

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/csarwi/publishom/internal/core"
	"github.com/csarwi/publishom/internal/durable"
	"github.com/csarwi/publishom/internal/sidecar"
	"github.com/csarwi/publishom/internal/trace"
)

// CleanupResult lists what a sweep removed and what it failed to remove.
type CleanupResult struct {
	// Orphans are the base names whose release no longer exists.
	Orphans []string
	// Removed holds file names deleted from the output directory.
	Removed []string
	// Failed holds file names that could not be deleted.
	Failed []string
}

// Reconciler removes artifacts that no discovered release owns.
//
// Only names of the form "OM<versionText>" with an artifact suffix, and
// in-flight temp files of such names, are considered; the alias and anything else in
// the output directory are never touched. Deletion is best effort: failures
// are logged and the sweep continues.
//
// Callers must hold the output directory lock, since temp files of expected
// releases are swept as well.
type Reconciler struct {
	OutputDir string
	Logger    *log.Logger
	Trace     trace.Sink

	removeFile func(string) error
}

// Sweep deletes orphaned artifacts and leftover temp files.
func (r *Reconciler) Sweep(expected map[string]struct{}) CleanupResult {
	var res CleanupResult
	entries, err := os.ReadDir(r.OutputDir)
	if err != nil {
		r.logger().Warn("listing output directory", "dir", r.OutputDir, "err", err)
		return res
	}

	orphans := map[string][]string{}
	var leftovers []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if final, ok := tempFinal(name); ok {
			if final == sidecar.AliasName || owned(final) {
				leftovers = append(leftovers, name)
			}
			continue
		}
		if name == sidecar.AliasName {
			continue
		}
		base, ok := sidecar.BaseOf(name)
		if !ok || !core.IsArtifactBase(base) {
			continue
		}
		if _, keep := expected[base]; keep {
			continue
		}
		orphans[base] = append(orphans[base], name)
	}

	// Temp files of orphans go with them.
	var rest []string
	for _, name := range leftovers {
		final, _ := tempFinal(name)
		if base, ok := sidecar.BaseOf(final); ok {
			if _, known := orphans[base]; known {
				orphans[base] = append(orphans[base], name)
				continue
			}
		}
		rest = append(rest, name)
	}

	bases := make([]string, 0, len(orphans))
	for base := range orphans {
		bases = append(bases, base)
	}
	sort.Strings(bases)
	for _, base := range bases {
		names := orphans[base]
		sort.Strings(names)
		removed := r.remove(&res, names)
		res.Orphans = append(res.Orphans, base)
		r.logger().Info("removed orphaned release artifacts", "base", base, "files", len(removed))
		trace.SafeRecord(r.Trace, trace.TraceEvent{Kind: trace.EventOrphanRemoved, Version: base, Artifacts: removed})
	}

	sort.Strings(rest)
	if removed := r.remove(&res, rest); len(removed) > 0 {
		r.logger().Info("removed leftover temp files", "files", len(removed))
	}
	return res
}

func (r *Reconciler) remove(res *CleanupResult, names []string) []string {
	var removed []string
	for _, name := range names {
		err := r.removeFn()(filepath.Join(r.OutputDir, name))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			r.logger().Warn("could not remove", "file", name, "err", err)
			res.Failed = append(res.Failed, name)
			continue
		}
		removed = append(removed, name)
		res.Removed = append(res.Removed, name)
	}
	return removed
}

func (r *Reconciler) removeFn() func(string) error {
	if r.removeFile == nil {
		return os.Remove
	}
	return r.removeFile
}

func (r *Reconciler) logger() *log.Logger {
	if r.Logger == nil {
		return log.Default()
	}
	return r.Logger
}

// tempFinal returns the final name a temp file was staged for.
func tempFinal(name string) (string, bool) {
	i := strings.Index(name, durable.TempMarker)
	if i <= 0 {
		return "", false
	}
	final := name[:i]
	if !durable.IsTempFor(name, final) {
		return "", false
	}
	return final, true
}

func owned(final string) bool {
	base, ok := sidecar.BaseOf(final)
	return ok && core.IsArtifactBase(base)
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}
