package sequencer

import (
	"sync"
	"time"

	"github.com/cbegin/pianoseq-go/internal/notation"
)

// DefaultVelocity is the note-on velocity used when none is configured.
const DefaultVelocity = 96

// Sink receives dispatched notes. Calls are made while the clock holds its
// lock, so implementations must not block.
type Sink interface {
	NoteOn(pitch notation.Pitch, track notation.TrackID, velocity int)
	NoteOff(pitch notation.Pitch, track notation.TrackID)
}

// MultiSink fans every note out to several sinks in registration order.
// It implements Sink.
type MultiSink struct {
	mu    sync.Mutex
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		m.Add(s)
	}
	return m
}

// Add registers a sink. Nil sinks are ignored.
func (m *MultiSink) Add(s Sink) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// Sinks returns a snapshot of the registered sinks.
func (m *MultiSink) Sinks() []Sink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sink, len(m.sinks))
	copy(out, m.sinks)
	return out
}

func (m *MultiSink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sinks)
}

func (m *MultiSink) NoteOn(pitch notation.Pitch, track notation.TrackID, velocity int) {
	for _, s := range m.Sinks() {
		s.NoteOn(pitch, track, velocity)
	}
}

func (m *MultiSink) NoteOff(pitch notation.Pitch, track notation.TrackID) {
	for _, s := range m.Sinks() {
		s.NoteOff(pitch, track)
	}
}

type DispatchKind int

const (
	DispatchOff DispatchKind = iota
	DispatchOn
)

func (k DispatchKind) String() string {
	if k == DispatchOn {
		return "on"
	}
	return "off"
}

// Dispatch is one call recorded by a Recorder. At is measured from the
// Recorder's creation.
type Dispatch struct {
	Kind     DispatchKind
	Pitch    notation.Pitch
	Track    notation.TrackID
	Velocity int
	At       time.Duration
}

// Recorder is a Sink that keeps every call in order.
type Recorder struct {
	mu     sync.Mutex
	start  time.Time
	events []Dispatch
}

func NewRecorder() *Recorder {
	return &Recorder{start: time.Now()}
}

func (r *Recorder) NoteOn(pitch notation.Pitch, track notation.TrackID, velocity int) {
	r.record(Dispatch{Kind: DispatchOn, Pitch: pitch, Track: track, Velocity: velocity})
}

func (r *Recorder) NoteOff(pitch notation.Pitch, track notation.TrackID) {
	r.record(Dispatch{Kind: DispatchOff, Pitch: pitch, Track: track})
}

func (r *Recorder) record(d Dispatch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.start.IsZero() {
		r.start = time.Now()
	}
	d.At = time.Since(r.start)
	r.events = append(r.events, d)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Dispatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Dispatch, len(r.events))
	copy(out, r.events)
	return out
}

// Ons returns only the note-on calls.
func (r *Recorder) Ons() []Dispatch {
	var out []Dispatch
	for _, d := range r.Events() {
		if d.Kind == DispatchOn {
			out = append(out, d)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.start = time.Now()
}
