// Package timeline turns parsed tracks into absolutely timed notes.
package timeline

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cbegin/pianoseq-go/internal/notation"
)

var ErrBadTempo = errors.New("tempo must be positive")

// ScheduledNote is one sounding note with absolute start and end times.
// Start and End are seconds; StartBeat and EndBeat are the exact positions
// they were derived from.
type ScheduledNote struct {
	Pitch      notation.Pitch
	Track      notation.TrackID
	TrackIndex int
	Seq        int
	Start      float64
	End        float64
	StartBeat  notation.Beats
	EndBeat    notation.Beats
}

func (n ScheduledNote) Duration() float64 { return n.End - n.Start }

type TrackTimeline struct {
	ID    notation.TrackID
	Index int
	Notes []ScheduledNote
	// Starts holds the start beat of every event, rests included.
	Starts []notation.Beats
	Length notation.Beats
}

// EventsStarted counts the events of the track that start at or before beat.
func (t TrackTimeline) EventsStarted(beat notation.Beats) int {
	return sort.Search(len(t.Starts), func(i int) bool { return t.Starts[i].Cmp(beat) > 0 })
}

type Timeline struct {
	BPM    float64
	Notes  []ScheduledNote
	Tracks []TrackTimeline
	// Length is the longest track length in beats.
	Length notation.Beats
}

// Seconds is the wall-clock length of the song at the timeline's tempo.
func (t *Timeline) Seconds() float64 { return t.Length.Seconds(t.BPM) }

func (t *Timeline) Duration() time.Duration {
	return time.Duration(t.Seconds() * float64(time.Second))
}

// Track returns the per-track timeline for id.
func (t *Timeline) Track(id notation.TrackID) (TrackTimeline, bool) {
	for _, tt := range t.Tracks {
		if tt.ID == id {
			return tt, true
		}
	}
	return TrackTimeline{}, false
}

// BuildTrack walks a beat cursor over the track's events. Control events are
// expected to have been removed already and are skipped if present.
func BuildTrack(track notation.Track, index int, bpm float64) TrackTimeline {
	out := TrackTimeline{
		ID:     track.ID,
		Index:  index,
		Notes:  make([]ScheduledNote, 0, len(track.Events)),
		Starts: make([]notation.Beats, 0, len(track.Events)),
	}
	var cursor notation.Beats
	emit := func(p notation.Pitch, d notation.Beats) {
		end := cursor.Add(d)
		out.Notes = append(out.Notes, ScheduledNote{
			Pitch:      p,
			Track:      track.ID,
			TrackIndex: index,
			Seq:        len(out.Notes),
			Start:      cursor.Seconds(bpm),
			End:        end.Seconds(bpm),
			StartBeat:  cursor,
			EndBeat:    end,
		})
	}
	for _, ev := range track.Events {
		switch ev.Kind {
		case notation.EventNote:
			emit(ev.Pitch, ev.Duration)
		case notation.EventSharedChord:
			for _, p := range ev.Pitches {
				emit(p, ev.Duration)
			}
		case notation.EventPerNoteChord:
			for _, n := range ev.Notes {
				emit(n.Pitch, n.Duration)
			}
		case notation.EventRest:
		default:
			continue
		}
		out.Starts = append(out.Starts, cursor)
		cursor = cursor.Add(ev.Span())
	}
	out.Length = cursor
	return out
}

// Build schedules every track of song at bpm and merges the results into a
// single start-ordered list.
func Build(song *notation.Song, bpm float64) (*Timeline, error) {
	if !(bpm > 0) {
		return nil, fmt.Errorf("build timeline at %v bpm: %w", bpm, ErrBadTempo)
	}
	tl := &Timeline{BPM: bpm}
	if song == nil {
		return tl, nil
	}
	tl.Tracks = make([]TrackTimeline, 0, len(song.Tracks))
	for i, tr := range song.Tracks {
		tt := BuildTrack(tr, i, bpm)
		tl.Length = notation.MaxBeats(tl.Length, tt.Length)
		tl.Tracks = append(tl.Tracks, tt)
	}
	tl.Notes = Merge(tl.Tracks...)
	return tl, nil
}

// Less orders notes by start beat, then track index, then emission order.
func Less(a, b ScheduledNote) bool {
	if c := a.StartBeat.Cmp(b.StartBeat); c != 0 {
		return c < 0
	}
	if a.TrackIndex != b.TrackIndex {
		return a.TrackIndex < b.TrackIndex
	}
	return a.Seq < b.Seq
}

type cursor struct {
	notes []ScheduledNote
	pos   int
}

type mergeHeap []*cursor

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return Less(h[i].notes[h[i].pos], h[j].notes[h[j].pos]) }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(*cursor)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Merge performs a k-way merge of already start-ordered track timelines.
func Merge(tracks ...TrackTimeline) []ScheduledNote {
	total := 0
	h := make(mergeHeap, 0, len(tracks))
	for _, tt := range tracks {
		total += len(tt.Notes)
		if len(tt.Notes) > 0 {
			h = append(h, &cursor{notes: tt.Notes})
		}
	}
	heap.Init(&h)
	out := make([]ScheduledNote, 0, total)
	for h.Len() > 0 {
		c := h[0]
		out = append(out, c.notes[c.pos])
		c.pos++
		if c.pos == len(c.notes) {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	return out
}
