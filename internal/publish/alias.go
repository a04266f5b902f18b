package publish

import (
	"path/filepath"

	"github.com/csarwi/publishom/internal/core"
	"github.com/csarwi/publishom/internal/durable"
	"github.com/csarwi/publishom/internal/sidecar"
	"github.com/csarwi/publishom/internal/state"
	"github.com/csarwi/publishom/internal/trace"
)

// Alias reasons, recorded in the trace.
const (
	AliasReasonRebuilt         = "LatestRebuilt"
	AliasReasonMissing         = "AliasMissing"
	AliasReasonProvenance      = "ProvenanceChanged"
	AliasReasonCurrent         = "Current"
	AliasReasonNoStableVersion = "NoStableVersion"
	AliasReasonArchiveMissing  = "ArchiveMissing"
	AliasReasonNoIncludedFiles = "NoIncludedFiles"
)

// AliasResult describes the alias decision of a run.
type AliasResult struct {
	Updated bool
	// Version is the release the alias mirrors after the run, if any.
	Version string
	Reason  string
}

// updateAlias copies the greatest stable release's archive to AliasName.
//
// The copy is refreshed when that release was rebuilt in this run, when the
// alias file is missing, or when the recorded provenance names a different
// release or fingerprint. Without a stable release, or without its archive,
// the existing alias is left untouched and a warning is logged.
func (p *Publisher) updateAlias(releases []core.ReleaseVersion, results []VersionResult) (AliasResult, error) {
	latest, ok := core.LatestStable(releases)
	if !ok {
		p.logger.Warn("no stable release, alias left untouched", "alias", sidecar.AliasName)
		return p.keepAlias(AliasResult{Reason: AliasReasonNoStableVersion}), nil
	}

	var vr VersionResult
	for _, r := range results {
		if r.Version.Name == latest.Name {
			vr = r
			break
		}
	}
	if vr.Outcome == StateSkippedNoFiles {
		p.logger.Warn("latest stable release has no included files, alias left untouched", "version", latest.Name)
		return p.keepAlias(AliasResult{Version: latest.Name, Reason: AliasReasonNoIncludedFiles}), nil
	}

	src := sidecar.PathsFor(p.opts.OutputDir, latest.BaseName()).Archive
	present, err := durable.Exists(src)
	if err != nil {
		return AliasResult{}, failure(state.FailureClassArchive, latest.Name, err)
	}
	if !present {
		p.logger.Warn("archive of latest stable release missing, alias left untouched", "version", latest.Name, "archive", src)
		return p.keepAlias(AliasResult{Version: latest.Name, Reason: AliasReasonArchiveMissing}), nil
	}

	dst := filepath.Join(p.opts.OutputDir, sidecar.AliasName)
	want := state.Alias{Version: latest.Name, Fingerprint: vr.Fingerprint.String()}

	reason := ""
	aliasPresent, err := durable.Exists(dst)
	if err != nil {
		return AliasResult{}, failure(state.FailureClassArchive, latest.Name, err)
	}
	recorded, known := p.store.LoadAlias()
	switch {
	case vr.Outcome == StateRebuilt:
		reason = AliasReasonRebuilt
	case !aliasPresent:
		reason = AliasReasonMissing
	case !known || recorded != want:
		reason = AliasReasonProvenance
	}
	if reason == "" {
		p.logger.Debug("alias current", "version", latest.Name)
		return p.keepAlias(AliasResult{Version: latest.Name, Reason: AliasReasonCurrent}), nil
	}

	if err := durable.CopyFile(src, dst); err != nil {
		return AliasResult{}, failure(state.FailureClassArchive, latest.Name, err)
	}
	if err := p.store.SaveAlias(want); err != nil {
		p.logger.Warn("recording alias provenance", "err", err)
	}
	p.logger.Info("alias updated", "alias", sidecar.AliasName, "version", latest.Name, "reason", reason)
	p.record(trace.TraceEvent{
		Kind:      trace.EventAliasUpdated,
		Version:   latest.Name,
		Reason:    reason,
		Artifacts: []string{sidecar.AliasName},
	})
	return AliasResult{Updated: true, Version: latest.Name, Reason: reason}, nil
}

func (p *Publisher) keepAlias(r AliasResult) AliasResult {
	p.record(trace.TraceEvent{Kind: trace.EventAliasKept, Version: r.Version, Reason: r.Reason})
	return r
}
