package trace

import "sync"

// Sink receives decision events as they are made.
//
// Record is fire-and-forget: it must not block for long, and a panicking
// implementation never affects publishing when called through SafeRecord.
type Sink interface {
	Record(event TraceEvent)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(TraceEvent) {}

// SafeRecord delivers event to s. Panics raised by the sink are swallowed.
func SafeRecord(s Sink, event TraceEvent) {
	if s == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.Record(event)
}

// Tee returns a sink that forwards every event to each non-nil sink. A
// failing sink does not prevent delivery to the others.
func Tee(sinks ...Sink) Sink {
	var out teeSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type teeSink []Sink

func (t teeSink) Record(event TraceEvent) {
	for _, s := range t {
		SafeRecord(s, event)
	}
}

// Recorder keeps the events of one run in memory. It is safe for concurrent
// use.
type Recorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

func NewRecorder() *Recorder { return &Recorder{} }

// Record stores a copy of event; later changes to the caller's Artifacts
// slice are not observed.
func (r *Recorder) Record(event TraceEvent) {
	if r == nil {
		return
	}
	if len(event.Artifacts) > 0 {
		event.Artifacts = append([]string(nil), event.Artifacts...)
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Snapshot returns the recorded events in recording order.
func (r *Recorder) Snapshot() []TraceEvent {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TraceEvent(nil), r.events...)
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind TraceEventKind) int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Trace returns the canonical trace of everything recorded so far, keyed by
// the given release set hash.
func (r *Recorder) Trace(releaseSetHash string) PublishTrace {
	tr := PublishTrace{ReleaseSetHash: releaseSetHash, Events: r.Snapshot()}
	tr.Canonicalize()
	return tr
}
