package sequencer

import (
	"container/heap"
	"errors"
	"sort"

	"github.com/cbegin/pianoseq-go/internal/notation"
	"github.com/cbegin/pianoseq-go/internal/timeline"
)

// EventKind identifies lifecycle events reported by the Clock.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventPlaybackEnded
)

type Options struct {
	// Velocity for every note-on. Zero selects DefaultVelocity.
	Velocity int
}

type noteKey struct {
	track int
	seq   int
}

func keyOf(n timeline.ScheduledNote) noteKey { return noteKey{track: n.TrackIndex, seq: n.Seq} }

type action struct {
	beat notation.Beats
	kind DispatchKind
	note timeline.ScheduledNote
}

// actionQueue orders by beat; at equal beats note-offs go first, then track
// order, then declaration order.
type actionQueue []action

func (q actionQueue) Len() int { return len(q) }
func (q actionQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if c := a.beat.Cmp(b.beat); c != 0 {
		return c < 0
	}
	if a.kind != b.kind {
		return a.kind == DispatchOff
	}
	if a.note.TrackIndex != b.note.TrackIndex {
		return a.note.TrackIndex < b.note.TrackIndex
	}
	return a.note.Seq < b.note.Seq
}
func (q actionQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *actionQueue) Push(x interface{}) { *q = append(*q, x.(action)) }
func (q *actionQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Sequencer is the deterministic dispatch core: it knows what is due at a
// given beat and sends it to the sink. It does not keep time and is not safe
// for concurrent use; Clock drives it in real time and offline rendering
// drives it per audio block.
type Sequencer struct {
	song     *notation.Song
	tl       *timeline.Timeline
	sink     Sink
	velocity int
	queue    actionQueue
	sounding map[noteKey]timeline.ScheduledNote
	fired    map[noteKey]bool
	pos      notation.Beats
}

func New(song *notation.Song, bpm float64, sink Sink) (*Sequencer, error) {
	return NewWithOptions(song, bpm, sink, Options{})
}

func NewWithOptions(song *notation.Song, bpm float64, sink Sink, opts Options) (*Sequencer, error) {
	if song == nil {
		return nil, errors.New("sequencer: nil song")
	}
	tl, err := timeline.Build(song, bpm)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = NewMultiSink()
	}
	vel := opts.Velocity
	if vel <= 0 {
		vel = DefaultVelocity
	}
	if vel > 127 {
		vel = 127
	}
	s := &Sequencer{
		song:     song,
		tl:       tl,
		sink:     sink,
		velocity: vel,
	}
	s.Reset()
	return s, nil
}

func (s *Sequencer) Song() *notation.Song { return s.song }

func (s *Sequencer) Timeline() *timeline.Timeline { return s.tl }

func (s *Sequencer) BPM() float64 { return s.tl.BPM }

// Position is the latest beat dispatched so far.
func (s *Sequencer) Position() notation.Beats { return s.pos }

// Length is the song length in beats.
func (s *Sequencer) Length() notation.Beats { return s.tl.Length }

// Sounding reports how many notes are currently on.
func (s *Sequencer) Sounding() int { return len(s.sounding) }

// NextDue returns the beat of the earliest pending action.
func (s *Sequencer) NextDue() (notation.Beats, bool) {
	if len(s.queue) == 0 {
		return notation.Beats{}, false
	}
	return s.queue[0].beat, true
}

// Done reports whether every note has been started and released.
func (s *Sequencer) Done() bool { return len(s.queue) == 0 }

// DispatchUntil sends every action due at or before beat and returns how many
// reached the sink.
func (s *Sequencer) DispatchUntil(beat notation.Beats) int {
	n := 0
	for len(s.queue) > 0 && s.queue[0].beat.Cmp(beat) <= 0 {
		a := heap.Pop(&s.queue).(action)
		key := keyOf(a.note)
		switch a.kind {
		case DispatchOn:
			s.fired[key] = true
			s.sounding[key] = a.note
			s.sink.NoteOn(a.note.Pitch, a.note.Track, s.velocity)
			heap.Push(&s.queue, action{beat: a.note.EndBeat, kind: DispatchOff, note: a.note})
			n++
		case DispatchOff:
			// Notes silenced by a pause are already off.
			if _, ok := s.sounding[key]; !ok {
				continue
			}
			delete(s.sounding, key)
			s.sink.NoteOff(a.note.Pitch, a.note.Track)
			n++
		}
	}
	if beat.Cmp(s.pos) > 0 {
		s.pos = beat
	}
	return n
}

// Silence sends note-off for every sounding note. The notes are not restarted
// later; their scheduled note-offs become no-ops.
func (s *Sequencer) Silence() int {
	notes := make([]timeline.ScheduledNote, 0, len(s.sounding))
	for _, n := range s.sounding {
		notes = append(notes, n)
	}
	sortNotes(notes)
	for _, n := range notes {
		s.sink.NoteOff(n.Pitch, n.Track)
	}
	s.sounding = make(map[noteKey]timeline.ScheduledNote)
	return len(notes)
}

// Reset silences everything and rewinds to beat zero.
func (s *Sequencer) Reset() {
	if len(s.sounding) > 0 {
		s.Silence()
	}
	s.sounding = make(map[noteKey]timeline.ScheduledNote)
	s.fired = make(map[noteKey]bool)
	s.pos = notation.Beats{}
	s.queue = make(actionQueue, 0, len(s.tl.Notes))
	for _, n := range s.tl.Notes {
		s.queue = append(s.queue, action{beat: n.StartBeat, kind: DispatchOn, note: n})
	}
	heap.Init(&s.queue)
}

// SetTempo rebuilds the timeline at bpm. Notes already started keep sounding
// until their scheduled end; notes not yet started are requeued. Nothing that
// has already sounded is started again.
func (s *Sequencer) SetTempo(bpm float64) error {
	tl, err := timeline.Build(s.song, bpm)
	if err != nil {
		return err
	}
	s.tl = tl
	q := make(actionQueue, 0, len(tl.Notes))
	for _, n := range tl.Notes {
		key := keyOf(n)
		if !s.fired[key] {
			q = append(q, action{beat: n.StartBeat, kind: DispatchOn, note: n})
			continue
		}
		if _, ok := s.sounding[key]; ok {
			s.sounding[key] = n
			q = append(q, action{beat: n.EndBeat, kind: DispatchOff, note: n})
		}
	}
	heap.Init(&q)
	s.queue = q
	return nil
}

// TrackProgress is how far playback has reached within one track, counted in
// events.
type TrackProgress struct {
	ID     notation.TrackID
	Played int
	Total  int
}

// Progress reports per-track progress at the current position.
func (s *Sequencer) Progress() []TrackProgress {
	return s.ProgressAt(s.pos)
}

func (s *Sequencer) ProgressAt(beat notation.Beats) []TrackProgress {
	out := make([]TrackProgress, 0, len(s.tl.Tracks))
	for _, tt := range s.tl.Tracks {
		out = append(out, TrackProgress{ID: tt.ID, Played: tt.EventsStarted(beat), Total: len(tt.Starts)})
	}
	return out
}

func sortNotes(notes []timeline.ScheduledNote) {
	sort.Slice(notes, func(i, j int) bool { return timeline.Less(notes[i], notes[j]) })
}
