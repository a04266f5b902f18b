package trace

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// PublishTrace is the canonical, deterministic record of a publish run's
// decisions.
//
// Invariants:
//   - Captures the identity of the release set and the list of decisions.
//   - Contains logical decisions only: no timestamps, durations, run IDs,
//     absolute paths or error strings.
//
// Canonical representation:
//   - Events are sorted via Canonicalize() using a fully-specified ordering.
//   - JSON serialization uses a custom marshaler to fix field order and omit
//     absent optional fields.
//
// Two runs that took the same decisions over the same release set produce
// byte-identical canonical JSON. The trace is observational only and never
// affects publishing.
type PublishTrace struct {
	ReleaseSetHash string
	Events         []TraceEvent
}

// TraceEventKind is the stable, canonical discriminator for TraceEvent.
// The string values are part of the trace's canonical bytes; do not rename.
type TraceEventKind string

const (
	EventVersionRejected       TraceEventKind = "VersionRejected"
	EventVersionSkippedNoFiles TraceEventKind = "VersionSkippedNoFiles"
	EventVersionUnchanged      TraceEventKind = "VersionUnchanged"
	EventVersionRebuilt        TraceEventKind = "VersionRebuilt"
	EventAliasUpdated          TraceEventKind = "AliasUpdated"
	EventAliasKept             TraceEventKind = "AliasKept"
	EventOrphanRemoved         TraceEventKind = "OrphanRemoved"
)

// TraceEvent is a single logical decision.
//
// Optional fields must be set deterministically:
//   - Empty slices are normalized to nil (omitted in JSON).
//   - Artifacts are sorted.
type TraceEvent struct {
	Kind TraceEventKind

	// Version names the release (folder name) or orphan base name the event
	// refers to.
	Version string

	// Reason is a stable, logical reason code (e.g. "FingerprintChanged",
	// "ArchiveMissing", "NoStableVersion").
	Reason string

	// Artifacts lists output file names touched by the decision.
	Artifacts []string
}

// ReleaseSetHash derives the trace identity from the published base names.
func ReleaseSetHash(baseNames []string) string {
	sorted := make([]string, len(baseNames))
	copy(sorted, baseNames)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}

// Validate checks basic invariants and returns a descriptive error.
func (t *PublishTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.ReleaseSetHash == "" {
		return errors.New("releaseSetHash is required")
	}
	for i := range t.Events {
		e := t.Events[i]
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if requiresVersion(e.Kind) && e.Version == "" {
			return fmt.Errorf("events[%d].version is required for kind %q", i, e.Kind)
		}
		for j, a := range e.Artifacts {
			if a == "" {
				return fmt.Errorf("events[%d].artifacts[%d] is empty", i, j)
			}
		}
	}
	return nil
}

func requiresVersion(kind TraceEventKind) bool {
	switch kind {
	case EventAliasKept:
		return false
	default:
		return true
	}
}

// Canonicalize normalizes and sorts the trace into its canonical form.
//
// Canonicalization rules:
//   - Artifacts are copied and sorted.
//   - Empty Artifacts slices are normalized to nil.
//   - Events are stably sorted by (kindOrder, version, reason, artifactsLex).
func (t *PublishTrace) Canonicalize() {
	if t == nil {
		return
	}
	for i := range t.Events {
		if len(t.Events[i].Artifacts) == 0 {
			t.Events[i].Artifacts = nil
			continue
		}
		art := make([]string, len(t.Events[i].Artifacts))
		copy(art, t.Events[i].Artifacts)
		sort.Strings(art)
		t.Events[i].Artifacts = art
	}

	sort.SliceStable(t.Events, func(i, j int) bool {
		a := t.Events[i]
		b := t.Events[j]

		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Version != b.Version {
			return a.Version < b.Version
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		return compareStringSlices(a.Artifacts, b.Artifacts)
	})
}

func kindOrder(k TraceEventKind) int {
	switch k {
	case EventVersionRejected:
		return 10
	case EventVersionSkippedNoFiles:
		return 20
	case EventVersionUnchanged:
		return 30
	case EventVersionRebuilt:
		return 40
	case EventAliasUpdated:
		return 50
	case EventAliasKept:
		return 60
	case EventOrphanRemoved:
		return 70
	default:
		return 1000
	}
}

func compareStringSlices(a, b []string) bool {
	// nil and empty are treated identically by Canonicalize (empties are normalized to nil).
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] == b[i] {
			continue
		}
		return a[i] < b[i]
	}
	return len(a) < len(b)
}

// CanonicalJSON returns the canonical JSON encoding of the trace.
// It canonicalizes a copy of the trace to avoid mutating the caller's slices.
func (t PublishTrace) CanonicalJSON() ([]byte, error) {
	copyTrace := PublishTrace{ReleaseSetHash: t.ReleaseSetHash}
	copyTrace.Events = make([]TraceEvent, len(t.Events))
	copy(copyTrace.Events, t.Events)
	copyTrace.Canonicalize()
	if err := copyTrace.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&copyTrace)
}

// Hash returns the deterministic trace hash (sha256 hex) of the canonical JSON bytes.
func (t PublishTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// MarshalJSON ensures canonical field ordering and omission rules.
func (t PublishTrace) MarshalJSON() ([]byte, error) {
	if t.ReleaseSetHash == "" {
		return nil, errors.New("releaseSetHash is required")
	}
	var buf bytes.Buffer
	buf.WriteByte('{')

	buf.WriteString("\"releaseSetHash\":")
	rh, _ := json.Marshal(t.ReleaseSetHash)
	buf.Write(rh)
	buf.WriteByte(',')

	buf.WriteString("\"events\":[")
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteByte(']')

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON ensures canonical field ordering and omission of empty optional fields.
func (e TraceEvent) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var artifacts []string
	if len(e.Artifacts) > 0 {
		artifacts = make([]string, len(e.Artifacts))
		copy(artifacts, e.Artifacts)
		sort.Strings(artifacts)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')

	// kind (always first)
	buf.WriteString("\"kind\":")
	kb, _ := json.Marshal(string(e.Kind))
	buf.Write(kb)

	if e.Version != "" {
		buf.WriteString(",\"version\":")
		vb, _ := json.Marshal(e.Version)
		buf.Write(vb)
	}

	if e.Reason != "" {
		buf.WriteString(",\"reason\":")
		rb, _ := json.Marshal(e.Reason)
		buf.Write(rb)
	}

	if len(artifacts) > 0 {
		buf.WriteString(",\"artifacts\":[")
		for i := range artifacts {
			if i > 0 {
				buf.WriteByte(',')
			}
			ab, _ := json.Marshal(artifacts[i])
			buf.Write(ab)
		}
		buf.WriteByte(']')
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
