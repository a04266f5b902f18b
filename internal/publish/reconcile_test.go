package publish

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/csarwi/publishom/internal/trace"
)

func TestReconciler_RemovesOrphanTriples(t *testing.T) {
	out := t.TempDir()
	writeTree(t, out, map[string]string{
		"OM15.4.31.zip":          "z",
		"OM15.4.9.zip":           "z",
		"OM15.4.9.manifest.json": "{}",
		"OM15.4.9.sha256":        "h",
		"OM_latest.zip":          "z",
	})

	rec := trace.NewRecorder()
	r := &Reconciler{OutputDir: out, Logger: log.New(io.Discard), Trace: rec}
	res := r.Sweep(map[string]struct{}{"OM15.4.31": {}})

	require.Equal(t, []string{"OM15.4.31.zip", "OM_latest.zip"}, outputNames(t, out))
	require.Equal(t, []string{"OM15.4.9"}, res.Orphans)
	require.ElementsMatch(t, []string{"OM15.4.9.zip", "OM15.4.9.manifest.json", "OM15.4.9.sha256"}, res.Removed)
	require.Empty(t, res.Failed)

	events := rec.Snapshot()
	require.Len(t, events, 1)
	require.Equal(t, trace.EventOrphanRemoved, events[0].Kind)
	require.Equal(t, "OM15.4.9", events[0].Version)
}

func TestReconciler_SweepsTempLeftovers(t *testing.T) {
	out := t.TempDir()
	writeTree(t, out, map[string]string{
		"OM15.4.31.zip":                   "z",
		"OM15.4.31.zip.tmp.5f0c":          "staged",
		"OM15.4.31.manifest.json.tmp.123": "partial",
		"OM_latest.zip.tmp.9":             "partial",
		"unrelated.txt.tmp.1":             "keep",
	})

	r := &Reconciler{OutputDir: out, Logger: log.New(io.Discard)}
	res := r.Sweep(map[string]struct{}{"OM15.4.31": {}})

	require.Empty(t, res.Orphans)
	require.Equal(t, []string{"OM15.4.31.zip", "unrelated.txt.tmp.1"}, outputNames(t, out))
}

func TestReconciler_LeavesForeignOMFilesAlone(t *testing.T) {
	out := t.TempDir()
	writeTree(t, out, map[string]string{
		"OM15.4.31.zip":              "z",
		"OM15.4.9.zip":               "z",
		"OMNI.zip":                   "foreign",
		"OM_notes.sha256":            "foreign",
		"OM-readme.manifest.json":    "foreign",
		"OM15.4.zip":                 "foreign",
		"OMNI.zip.tmp.1":             "foreign",
		"OM15.4.9.sha256.tmp.77":     "partial",
		"OM15.4.9.1.2.manifest.json": "foreign",
	})

	r := &Reconciler{OutputDir: out, Logger: log.New(io.Discard)}
	res := r.Sweep(map[string]struct{}{"OM15.4.31": {}})

	require.Equal(t, []string{"OM15.4.9"}, res.Orphans)
	require.ElementsMatch(t, []string{"OM15.4.9.zip", "OM15.4.9.sha256.tmp.77"}, res.Removed)
	require.Equal(t, []string{
		"OM-readme.manifest.json",
		"OM15.4.31.zip",
		"OM15.4.9.1.2.manifest.json",
		"OM15.4.zip",
		"OMNI.zip",
		"OMNI.zip.tmp.1",
		"OM_notes.sha256",
	}, outputNames(t, out))
}

func TestReconciler_ContinuesPastFailedRemoval(t *testing.T) {
	out := t.TempDir()
	writeTree(t, out, map[string]string{
		"OM15.4.31.zip":          "z",
		"OM15.4.8.zip":           "z",
		"OM15.4.9.zip":           "z",
		"OM15.4.9.manifest.json": "{}",
		"OM15.4.9.sha256":        "h",
	})

	stuck := filepath.Join(out, "OM15.4.8.zip")
	var buf bytes.Buffer
	r := &Reconciler{
		OutputDir: out,
		Logger:    log.New(&buf),
		removeFile: func(path string) error {
			if path == stuck {
				return &os.PathError{Op: "remove", Path: path, Err: os.ErrPermission}
			}
			return os.Remove(path)
		},
	}
	res := r.Sweep(map[string]struct{}{"OM15.4.31": {}})

	require.Equal(t, []string{"OM15.4.8", "OM15.4.9"}, res.Orphans)
	require.Equal(t, []string{"OM15.4.8.zip"}, res.Failed)
	require.ElementsMatch(t, []string{"OM15.4.9.zip", "OM15.4.9.manifest.json", "OM15.4.9.sha256"}, res.Removed)
	require.Equal(t, []string{"OM15.4.31.zip", "OM15.4.8.zip"}, outputNames(t, out))
	require.Contains(t, buf.String(), "could not remove")
	require.Contains(t, buf.String(), "OM15.4.8.zip")
}

func TestTempFinal(t *testing.T) {
	final, ok := tempFinal("OM15.4.31.zip.tmp.abc")
	require.True(t, ok)
	require.Equal(t, "OM15.4.31.zip", final)

	_, ok = tempFinal("OM15.4.31.zip")
	require.False(t, ok)
	_, ok = tempFinal(".tmp.x")
	require.False(t, ok)
}
