package sequencer

import (
	"fmt"
	"sort"
	"strings"
)

// Status is a snapshot of playback. Position and Length are in beats.
type Status struct {
	State    State
	BPM      float64
	Position float64
	Length   float64
	Tracks   []TrackProgress
}

// String renders the one-line status, e.g. "Playing L:3/10 R:5/12", or
// "Ready" when nothing is playing.
func (s Status) String() string {
	var verb string
	switch s.State {
	case StatePlaying:
		verb = "Playing"
	case StatePaused:
		verb = "Paused"
	default:
		return "Ready"
	}
	if len(s.Tracks) == 0 {
		return verb
	}
	tracks := make([]TrackProgress, len(s.Tracks))
	copy(tracks, s.Tracks)
	sort.SliceStable(tracks, func(i, j int) bool { return tracks[i].ID < tracks[j].ID })
	parts := make([]string, 0, len(tracks)+1)
	parts = append(parts, verb)
	for _, tp := range tracks {
		played := tp.Played
		if played > tp.Total {
			played = tp.Total
		}
		parts = append(parts, fmt.Sprintf("%s:%d/%d", tp.ID, played, tp.Total))
	}
	return strings.Join(parts, " ")
}
