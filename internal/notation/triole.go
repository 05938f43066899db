package notation

// trioleGroup is the number of sounding events one Triolé marker compresses.
const trioleGroup = 3

// TrioleFactor is the compression applied to each event of a Triolé group:
// three events take the time of two.
var TrioleFactor = NewBeats(2, 3)

// RescaleTriplets applies every Triolé marker to the next three non-control
// events and drops the markers. A marker seen while a group is still open
// starts a new group once the open one is complete. A group cut short by the
// end of the track still scales the events it did collect. events is not
// modified.
func RescaleTriplets(events []Event) []Event {
	out := make([]Event, 0, len(events))
	remaining, queued := 0, 0
	for _, ev := range events {
		if ev.IsControl() {
			if remaining == 0 {
				remaining = trioleGroup
			} else {
				queued++
			}
			continue
		}
		if remaining > 0 {
			ev = scaleEvent(ev, TrioleFactor)
			remaining--
			if remaining == 0 && queued > 0 {
				queued--
				remaining = trioleGroup
			}
		}
		out = append(out, ev)
	}
	return out
}

func scaleEvent(ev Event, f Beats) Event {
	switch ev.Kind {
	case EventPerNoteChord:
		notes := make([]ChordNote, len(ev.Notes))
		for i, n := range ev.Notes {
			notes[i] = ChordNote{Pitch: n.Pitch, Duration: n.Duration.Mul(f)}
		}
		ev.Notes = notes
	default:
		ev.Duration = ev.Duration.Mul(f)
	}
	return ev
}
