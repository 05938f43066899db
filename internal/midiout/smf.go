package midiout

import (
	"fmt"
	"io"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/pianoseq-go/internal/notation"
	"github.com/cbegin/pianoseq-go/internal/timeline"
)

// Resolution is the SMF time division in ticks per quarter note.
const Resolution = 960

type smfEvent struct {
	tick int64
	on   bool
	note timeline.ScheduledNote
}

// WriteSMF writes tl as a format 1 Standard MIDI File: a conductor track with
// the tempo, then one track per hand. Note-ons carry velocity, note-offs
// carry ReleaseVelocity.
func WriteSMF(w io.Writer, tl *timeline.Timeline, velocity int) error {
	if velocity < 1 || velocity > 127 {
		return fmt.Errorf("write SMF: velocity %d out of range", velocity)
	}
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(Resolution)

	var conductor smf.Track
	conductor.Add(0, smf.MetaTrackSequenceName("pianoseq"))
	conductor.Add(0, smf.MetaTempo(tl.BPM))
	conductor.Close(0)
	if err := s.Add(conductor); err != nil {
		return fmt.Errorf("write SMF: %w", err)
	}

	for _, tt := range tl.Tracks {
		events := make([]smfEvent, 0, 2*len(tt.Notes))
		for _, n := range tt.Notes {
			events = append(events,
				smfEvent{tick: n.StartBeat.Ticks(Resolution), on: true, note: n},
				smfEvent{tick: n.EndBeat.Ticks(Resolution), on: false, note: n},
			)
		}
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].tick != events[j].tick {
				return events[i].tick < events[j].tick
			}
			return !events[i].on && events[j].on
		})

		var tr smf.Track
		tr.Add(0, smf.MetaTrackSequenceName(trackName(tt.ID)))
		var last int64
		for _, ev := range events {
			delta := uint32(ev.tick - last)
			last = ev.tick
			key := uint8(ev.note.Pitch)
			if ev.on {
				tr.Add(delta, midi.NoteOn(0, key, uint8(velocity)))
			} else {
				tr.Add(delta, midi.NoteOffVelocity(0, key, ReleaseVelocity))
			}
		}
		end := tt.Length.Ticks(Resolution)
		if end < last {
			end = last
		}
		tr.Close(uint32(end - last))
		if err := s.Add(tr); err != nil {
			return fmt.Errorf("write SMF: %w", err)
		}
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("write SMF: %w", err)
	}
	return nil
}

func trackName(id notation.TrackID) string {
	switch id {
	case notation.Left:
		return "Left hand"
	case notation.Right:
		return "Right hand"
	default:
		return string(id)
	}
}

// NoteEvent is a note read back from a Standard MIDI File.
type NoteEvent struct {
	Track    int
	Key      uint8
	Velocity uint8
	On       bool
	Tick     int64
}

// ReadSMF returns the tempo and every note-on/off of an SMF, in file order.
func ReadSMF(r io.Reader) (float64, []NoteEvent, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return 0, nil, fmt.Errorf("read SMF: %w", err)
	}
	bpm := 120.0
	var out []NoteEvent
	for ti, tr := range s.Tracks {
		var abs int64
		for _, ev := range tr {
			abs += int64(ev.Delta)
			var ch, key, vel uint8
			var tempo float64
			switch {
			case ev.Message.GetMetaTempo(&tempo):
				bpm = tempo
			case ev.Message.GetNoteOn(&ch, &key, &vel):
				out = append(out, NoteEvent{Track: ti, Key: key, Velocity: vel, On: true, Tick: abs})
			case ev.Message.GetNoteOff(&ch, &key, &vel):
				out = append(out, NoteEvent{Track: ti, Key: key, Velocity: vel, On: false, Tick: abs})
			}
		}
	}
	return bpm, out, nil
}
