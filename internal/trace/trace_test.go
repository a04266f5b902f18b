package trace

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestCanonicalTraceStability_ByteForByte(t *testing.T) {
	trace1 := PublishTrace{
		ReleaseSetHash: "set-abc",
		Events: []TraceEvent{
			{Kind: EventVersionRebuilt, Version: "OM 15.4.31", Reason: "FingerprintChanged", Artifacts: []string{"OM15.4.31.zip", "OM15.4.31.manifest.json"}},
			{Kind: EventVersionUnchanged, Version: "OM 15.3.2"},
			{Kind: EventAliasUpdated, Version: "OM 15.4.31", Artifacts: []string{"OM_latest.zip"}},
		},
	}

	trace2 := PublishTrace{
		ReleaseSetHash: "set-abc",
		Events: []TraceEvent{
			{Kind: EventAliasUpdated, Version: "OM 15.4.31", Artifacts: []string{"OM_latest.zip"}},
			{Kind: EventVersionUnchanged, Version: "OM 15.3.2"},
			{Kind: EventVersionRebuilt, Version: "OM 15.4.31", Reason: "FingerprintChanged", Artifacts: []string{"OM15.4.31.manifest.json", "OM15.4.31.zip"}},
		},
	}

	b1, err := trace1.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (1): %v", err)
	}
	b2, err := trace2.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (2): %v", err)
	}

	if !bytes.Equal(b1, b2) {
		t.Fatalf("expected identical bytes\n1=%s\n2=%s", string(b1), string(b2))
	}
}

func TestCanonicalOrdering_KindThenVersion(t *testing.T) {
	tr := PublishTrace{
		ReleaseSetHash: "set-abc",
		Events: []TraceEvent{
			{Kind: EventOrphanRemoved, Version: "OM15.4.9"},
			{Kind: EventVersionRebuilt, Version: "OM 15.4.31"},
			{Kind: EventVersionRebuilt, Version: "OM 15.4.30"},
			{Kind: EventVersionRejected, Version: "OM 14.9.9", Reason: "MajorTooLow"},
		},
	}
	b, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	expected := `{"releaseSetHash":"set-abc","events":[` +
		`{"kind":"VersionRejected","version":"OM 14.9.9","reason":"MajorTooLow"},` +
		`{"kind":"VersionRebuilt","version":"OM 15.4.30"},` +
		`{"kind":"VersionRebuilt","version":"OM 15.4.31"},` +
		`{"kind":"OrphanRemoved","version":"OM15.4.9"}]}`
	if string(b) != expected {
		t.Fatalf("unexpected canonical bytes\nexpected=%s\nactual  =%s", expected, string(b))
	}
}

func TestCanonicalJSON_DoesNotMutateCaller(t *testing.T) {
	artifacts := []string{"b", "a"}
	tr := PublishTrace{
		ReleaseSetHash: "s",
		Events: []TraceEvent{
			{Kind: EventOrphanRemoved, Version: "OM15.4.9", Artifacts: artifacts},
			{Kind: EventVersionRebuilt, Version: "OM 15.4.31"},
		},
	}
	if _, err := tr.CanonicalJSON(); err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	if tr.Events[0].Kind != EventOrphanRemoved || artifacts[0] != "b" {
		t.Fatalf("caller's trace was mutated: %+v", tr.Events)
	}
}

func TestHash_Deterministic(t *testing.T) {
	tr1 := PublishTrace{ReleaseSetHash: "s", Events: []TraceEvent{{Kind: EventVersionUnchanged, Version: "OM 15.4.31"}}}
	tr2 := PublishTrace{ReleaseSetHash: "s", Events: []TraceEvent{{Kind: EventVersionUnchanged, Version: "OM 15.4.31"}}}

	h1, err := tr1.Hash()
	if err != nil {
		t.Fatalf("hash (1): %v", err)
	}
	h2, err := tr2.Hash()
	if err != nil {
		t.Fatalf("hash (2): %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected identical hash, got %q != %q", h1, h2)
	}

	tr3 := PublishTrace{ReleaseSetHash: "s", Events: []TraceEvent{{Kind: EventVersionRebuilt, Version: "OM 15.4.31"}}}
	h3, err := tr3.Hash()
	if err != nil {
		t.Fatalf("hash (3): %v", err)
	}
	if h3 == h1 {
		t.Fatal("different decisions must hash differently")
	}
}

func TestEventArtifacts_CanonicalizedAndOmittedWhenEmpty(t *testing.T) {
	tr := PublishTrace{
		ReleaseSetHash: "s",
		Events: []TraceEvent{
			{Kind: EventVersionSkippedNoFiles, Version: "OM 15.1.0", Artifacts: []string{}},
			{Kind: EventOrphanRemoved, Version: "OM15.4.9", Artifacts: []string{"OM15.4.9.zip", "OM15.4.9.manifest.json"}},
		},
	}
	b, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	expected := `{"releaseSetHash":"s","events":[` +
		`{"kind":"VersionSkippedNoFiles","version":"OM 15.1.0"},` +
		`{"kind":"OrphanRemoved","version":"OM15.4.9","artifacts":["OM15.4.9.manifest.json","OM15.4.9.zip"]}]}`
	if string(b) != expected {
		t.Fatalf("unexpected canonical bytes\nexpected=%s\nactual  =%s", expected, string(b))
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		tr   PublishTrace
		ok   bool
	}{
		{"missing set hash", PublishTrace{}, false},
		{"missing kind", PublishTrace{ReleaseSetHash: "s", Events: []TraceEvent{{Version: "v"}}}, false},
		{"version event without version", PublishTrace{ReleaseSetHash: "s", Events: []TraceEvent{{Kind: EventVersionRebuilt}}}, false},
		{"alias kept without version", PublishTrace{ReleaseSetHash: "s", Events: []TraceEvent{{Kind: EventAliasKept, Reason: "NoStableVersion"}}}, true},
		{"empty artifact", PublishTrace{ReleaseSetHash: "s", Events: []TraceEvent{{Kind: EventOrphanRemoved, Version: "v", Artifacts: []string{""}}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.tr.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestReleaseSetHash_OrderIndependent(t *testing.T) {
	a := ReleaseSetHash([]string{"OM15.4.31", "OM15.3.2"})
	b := ReleaseSetHash([]string{"OM15.3.2", "OM15.4.31"})
	if a != b {
		t.Fatalf("expected order-independent hash, got %q != %q", a, b)
	}
	if a == ReleaseSetHash([]string{"OM15.3.2"}) {
		t.Fatal("different sets must hash differently")
	}
}

func TestRecorder_TraceIsCanonicalAndInert(t *testing.T) {
	r := NewRecorder()
	SafeRecord(r, TraceEvent{Kind: EventVersionRebuilt, Version: "OM 15.4.31"})
	SafeRecord(r, TraceEvent{Kind: EventVersionRejected, Version: "OM 14.0.0"})
	SafeRecord(nil, TraceEvent{Kind: EventVersionRejected, Version: "ignored"})
	NopSink{}.Record(TraceEvent{Kind: EventVersionRebuilt})

	var nilRecorder *Recorder
	nilRecorder.Record(TraceEvent{Kind: EventVersionRebuilt})

	tr := r.Trace("s")
	if len(tr.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(tr.Events))
	}
	if tr.Events[0].Kind != EventVersionRejected {
		t.Fatalf("expected canonical order, got %+v", tr.Events)
	}
	if len(r.Snapshot()) != 2 {
		t.Fatal("Trace must not consume recorded events")
	}
}

func TestTee_FansOutAndSurvivesPanics(t *testing.T) {
	a := NewRecorder()
	b := NewRecorder()
	sink := Tee(a, nil, panickingSink{}, b)

	sink.Record(TraceEvent{Kind: EventVersionRebuilt, Version: "OM 15.4.31"})
	sink.Record(TraceEvent{Kind: EventVersionUnchanged, Version: "OM 15.4.9"})

	if a.Count(EventVersionRebuilt) != 1 || b.Count(EventVersionUnchanged) != 1 {
		t.Fatalf("expected both recorders to receive every event: a=%v b=%v", a.Snapshot(), b.Snapshot())
	}
	if a.Count(EventOrphanRemoved) != 0 {
		t.Fatal("unexpected count for unrecorded kind")
	}
}

func TestRecorder_CopiesArtifacts(t *testing.T) {
	r := NewRecorder()
	artifacts := []string{"OM15.4.9.zip"}
	r.Record(TraceEvent{Kind: EventOrphanRemoved, Version: "OM15.4.9", Artifacts: artifacts})
	artifacts[0] = "changed"

	if got := r.Snapshot()[0].Artifacts[0]; got != "OM15.4.9.zip" {
		t.Fatalf("recorder observed caller mutation: %q", got)
	}
}

type panickingSink struct{}

func (panickingSink) Record(TraceEvent) { panic("sink") }

func TestSafeRecord_SwallowsPanics(t *testing.T) {
	SafeRecord(panickingSink{}, TraceEvent{Kind: EventVersionRebuilt, Version: "v"})
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json")
	tr := PublishTrace{ReleaseSetHash: "s", Events: []TraceEvent{{Kind: EventVersionUnchanged, Version: "OM 15.4.31"}}}

	h, err := WriteFile(path, tr)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want, _ := tr.CanonicalJSON()
	if string(data) != string(want)+"\n" {
		t.Fatalf("unexpected file content %q", data)
	}
	if h != ComputeTraceHash(want) {
		t.Fatalf("hash mismatch: %s", h)
	}
	if ComputeTraceHash(nil) != "" {
		t.Fatal("empty encoding must hash to empty string")
	}
}
