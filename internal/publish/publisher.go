// Package publish runs the incremental publish pipeline: classify release
// folders, rebuild archives whose fingerprint changed, refresh the
// latest-stable alias and remove artifacts of vanished releases.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/csarwi/publishom/internal/archive"
	"github.com/csarwi/publishom/internal/core"
	"github.com/csarwi/publishom/internal/durable"
	"github.com/csarwi/publishom/internal/lock"
	"github.com/csarwi/publishom/internal/sidecar"
	"github.com/csarwi/publishom/internal/state"
	"github.com/csarwi/publishom/internal/trace"
)

// State is the outcome of one version's pass.
//
//	Discovered -> {SkippedNoFiles | SkippedUnchanged | Rebuilt} -> Done
//
// A version is done once its VersionResult is in Result.Versions; a failing
// version never gets there.
type State string

const (
	StateSkippedNoFiles   State = "SkippedNoFiles"
	StateSkippedUnchanged State = "SkippedUnchanged"
	StateRebuilt          State = "Rebuilt"
)

// Rebuild reasons, recorded in the trace.
const (
	ReasonNoPreviousFingerprint = "NoPreviousFingerprint"
	ReasonFingerprintChanged    = "FingerprintChanged"
	ReasonArchiveMissing        = "ArchiveMissing"
)

// VersionResult describes what happened to one release.
type VersionResult struct {
	Version     core.ReleaseVersion
	Outcome     State
	Reason      string
	Fingerprint core.Fingerprint
	Files       int
	Bytes       int64
}

// Result summarizes a completed run.
type Result struct {
	RunID    string
	Versions []VersionResult
	// Rejected counts release-like folders that were not published.
	Rejected int
	Alias    AliasResult
	Cleanup  CleanupResult
	// ReconcileSkipped is set when no release was discovered and the output
	// directory was left alone.
	ReconcileSkipped bool
	TraceHash        string
}

// Count returns how many versions ended in outcome.
func (r *Result) Count(outcome State) int {
	n := 0
	for _, v := range r.Versions {
		if v.Outcome == outcome {
			n++
		}
	}
	return n
}

// Options configures a Publisher.
type Options struct {
	SourceRoot string
	OutputDir  string

	Builder  *archive.Builder
	Resolver *core.InclusionResolver
	Hasher   *core.FingerprintHasher

	Logger *log.Logger

	// Trace receives decision events; TracePath, when set, receives the
	// canonical trace at the end of the run.
	Trace     trace.Sink
	TracePath string

	// Now stamps manifests; defaults to time.Now.
	Now func() time.Time
}

// Publisher publishes every release under SourceRoot into OutputDir.
// It is not safe for concurrent use; concurrent processes are excluded by
// the output directory lock.
type Publisher struct {
	opts     Options
	logger   *log.Logger
	recorder *trace.Recorder
	sink     trace.Sink
	store    *state.Store
}

// New validates opts and returns a Publisher.
func New(opts Options) (*Publisher, error) {
	if opts.SourceRoot == "" {
		return nil, errors.New("source root is required")
	}
	if opts.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	if opts.Builder == nil {
		return nil, errors.New("archive builder is required")
	}
	var err error
	if opts.SourceRoot, err = filepath.Abs(opts.SourceRoot); err != nil {
		return nil, fmt.Errorf("resolving source root: %w", err)
	}
	if opts.OutputDir, err = filepath.Abs(opts.OutputDir); err != nil {
		return nil, fmt.Errorf("resolving output directory: %w", err)
	}
	if opts.Resolver == nil {
		opts.Resolver = core.NewInclusionResolver()
	}
	if opts.Hasher == nil {
		opts.Hasher = core.NewFingerprintHasher()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.Builder.Logger == nil {
		opts.Builder.Logger = logger
	}
	store, err := state.NewStore(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	return &Publisher{opts: opts, logger: logger, store: store}, nil
}

// Run executes one publish pass.
//
// The archive engine is checked before the output directory is touched.
// Any enumeration, archive or sidecar failure stops the run; the returned
// *Error carries the failing stage.
func (p *Publisher) Run(ctx context.Context) (*Result, error) {
	if err := p.preflight(); err != nil {
		return nil, err
	}

	l, err := lock.Acquire(p.store.LockPath())
	if err != nil {
		return nil, failure(state.FailureClassPrecondition, "", err)
	}
	defer func() {
		if err := l.Release(); err != nil {
			p.logger.Warn("releasing lock", "path", l.Path(), "err", err)
		}
	}()

	p.recorder = trace.NewRecorder()
	p.sink = trace.Tee(p.recorder, p.opts.Trace)
	res := &Result{RunID: state.NewRunID()}
	run := state.Run{RunID: res.RunID, StartTime: p.opts.Now().UTC(), Status: state.RunStatusRunning}
	if err := p.store.SaveRun(run); err != nil {
		return nil, failure(state.FailureClassSystem, "", err)
	}

	runErr := p.run(ctx, res)
	p.finish(run, res, runErr)
	if runErr != nil {
		return res, runErr
	}
	return res, nil
}

func (p *Publisher) preflight() error {
	info, err := os.Stat(p.opts.SourceRoot)
	if err != nil {
		return failure(state.FailureClassPrecondition, "", fmt.Errorf("source root: %w", err))
	}
	if !info.IsDir() {
		return failure(state.FailureClassPrecondition, "", fmt.Errorf("source root %s is not a directory", p.opts.SourceRoot))
	}
	if err := p.opts.Builder.Preflight(); err != nil {
		return failure(state.FailureClassPrecondition, "", err)
	}
	if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
		return failure(state.FailureClassPrecondition, "", fmt.Errorf("output directory: %w", err))
	}
	return nil
}

func (p *Publisher) run(ctx context.Context, res *Result) error {
	discovery, err := core.Discover(p.opts.SourceRoot)
	if err != nil {
		return failure(state.FailureClassEnumeration, "", err)
	}
	for _, c := range discovery.Classifications {
		if c.Verdict == core.VerdictRejected {
			p.logger.Debug("ignoring folder", "name", c.Name, "reason", c.Reason)
			p.record(trace.TraceEvent{Kind: trace.EventVersionRejected, Version: c.Name, Reason: c.Reason})
		}
	}
	res.Rejected = p.recorder.Count(trace.EventVersionRejected)
	p.logger.Info("discovered releases", "count", len(discovery.Releases), "rejected", res.Rejected, "source", p.opts.SourceRoot)

	for _, release := range discovery.Releases {
		if err := ctx.Err(); err != nil {
			return failure(state.FailureClassSystem, "", err)
		}
		vr, err := p.publishVersion(ctx, release)
		if err != nil {
			return err
		}
		res.Versions = append(res.Versions, vr)
	}

	alias, err := p.updateAlias(discovery.Releases, res.Versions)
	res.Alias = alias
	if err != nil {
		return err
	}

	if len(discovery.Releases) == 0 {
		res.ReconcileSkipped = true
		p.logger.Warn("no releases found, leaving output directory untouched", "source", p.opts.SourceRoot)
		return nil
	}
	res.Cleanup = p.reconciler().Sweep(core.ExpectedBaseNames(discovery.Releases))
	return nil
}

func (p *Publisher) publishVersion(ctx context.Context, release core.ReleaseVersion) (VersionResult, error) {
	vr := VersionResult{Version: release}
	logger := p.logger.With("version", release.Name)

	set, err := p.opts.Resolver.Resolve(release)
	if err != nil {
		return vr, failure(state.FailureClassEnumeration, release.Name, err)
	}
	paths := sidecar.PathsFor(p.opts.OutputDir, release.BaseName())
	fp := p.opts.Hasher.Compute(set)
	vr.Fingerprint = fp
	vr.Files = len(set.Files)
	vr.Bytes = set.TotalBytes()

	if set.Empty() {
		if err := p.publishEmpty(release, set, paths, fp, logger); err != nil {
			return vr, err
		}
		vr.Outcome = StateSkippedNoFiles
		p.record(trace.TraceEvent{Kind: trace.EventVersionSkippedNoFiles, Version: release.Name})
		return vr, nil
	}

	previous, err := sidecar.ReadFingerprint(paths.Fingerprint)
	if err != nil {
		return vr, failure(state.FailureClassSidecar, release.Name, fmt.Errorf("reading fingerprint: %w", err))
	}
	archivePresent, err := durable.Exists(paths.Archive)
	if err != nil {
		return vr, failure(state.FailureClassArchive, release.Name, err)
	}

	switch {
	case previous == "":
		vr.Reason = ReasonNoPreviousFingerprint
	case previous != fp:
		vr.Reason = ReasonFingerprintChanged
	case !archivePresent:
		vr.Reason = ReasonArchiveMissing
	default:
		vr.Outcome = StateSkippedUnchanged
		logger.Info("unchanged", "files", vr.Files, "size", humanize.Bytes(uint64(vr.Bytes)))
		p.record(trace.TraceEvent{Kind: trace.EventVersionUnchanged, Version: release.Name})
		return vr, nil
	}

	logger.Info("rebuilding", "reason", vr.Reason, "files", vr.Files, "size", humanize.Bytes(uint64(vr.Bytes)))
	start := time.Now()
	if err := p.opts.Builder.Build(ctx, release, set, paths.Archive); err != nil {
		return vr, failure(state.FailureClassArchive, release.Name, err)
	}
	if err := sidecar.WriteManifest(paths.Manifest, sidecar.NewManifest(release, set, p.opts.Now())); err != nil {
		return vr, failure(state.FailureClassSidecar, release.Name, err)
	}
	if err := sidecar.WriteFingerprint(paths.Fingerprint, fp); err != nil {
		return vr, failure(state.FailureClassSidecar, release.Name, err)
	}

	vr.Outcome = StateRebuilt
	logger.Info("rebuilt", "archive", paths.Archive, "elapsed", time.Since(start).Round(time.Millisecond))
	p.record(trace.TraceEvent{
		Kind:      trace.EventVersionRebuilt,
		Version:   release.Name,
		Reason:    vr.Reason,
		Artifacts: baseNames(paths.All()),
	})
	return vr, nil
}

// publishEmpty makes the "nothing included" state explicit: the stale archive
// goes away and an empty manifest plus the empty-set fingerprint remain.
// Sidecars already describing the empty state are left as they are.
func (p *Publisher) publishEmpty(release core.ReleaseVersion, set *core.IncludedSet, paths sidecar.Paths, fp core.Fingerprint, logger *log.Logger) error {
	if err := os.Remove(paths.Archive); err == nil {
		logger.Info("removed archive of release without included files", "archive", paths.Archive)
	} else if !errors.Is(err, os.ErrNotExist) {
		return failure(state.FailureClassArchive, release.Name, fmt.Errorf("removing stale archive: %w", err))
	}

	previous, err := sidecar.ReadFingerprint(paths.Fingerprint)
	if err != nil {
		return failure(state.FailureClassSidecar, release.Name, fmt.Errorf("reading fingerprint: %w", err))
	}
	manifestPresent, err := durable.Exists(paths.Manifest)
	if err != nil {
		return failure(state.FailureClassSidecar, release.Name, err)
	}
	if previous == fp && manifestPresent {
		logger.Debug("no included files, sidecars current")
		return nil
	}

	logger.Warn("no included files")
	if err := sidecar.WriteManifest(paths.Manifest, sidecar.NewManifest(release, set, p.opts.Now())); err != nil {
		return failure(state.FailureClassSidecar, release.Name, err)
	}
	if err := sidecar.WriteFingerprint(paths.Fingerprint, fp); err != nil {
		return failure(state.FailureClassSidecar, release.Name, err)
	}
	return nil
}

func (p *Publisher) finish(run state.Run, res *Result, runErr error) {
	finished := p.opts.Now().UTC()
	run.FinishTime = &finished
	run.Status = state.RunStatusSucceeded
	if runErr != nil {
		run.Status = state.RunStatusFailed
		var pe *Error
		if !errors.As(runErr, &pe) {
			pe = &Error{Class: state.FailureClassSystem, Err: runErr}
		}
		run.Failure = pe.record()
	}
	if err := p.store.SaveRun(run); err != nil {
		p.logger.Warn("recording run state", "err", err)
	}

	tr := p.recorder.Trace(trace.ReleaseSetHash(setNames(res)))
	if h, err := tr.Hash(); err == nil {
		res.TraceHash = h
	}
	if p.opts.TracePath != "" {
		if _, err := trace.WriteFile(p.opts.TracePath, tr); err != nil {
			p.logger.Warn("writing trace", "path", p.opts.TracePath, "err", err)
		}
	}
}

func (p *Publisher) record(e trace.TraceEvent) {
	trace.SafeRecord(p.sink, e)
}

func (p *Publisher) reconciler() *Reconciler {
	return &Reconciler{OutputDir: p.opts.OutputDir, Logger: p.logger, Trace: p.sink}
}

func setNames(res *Result) []string {
	names := make([]string, 0, len(res.Versions))
	for _, v := range res.Versions {
		names = append(names, v.Version.BaseName())
	}
	return names
}
