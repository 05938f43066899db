package sequencer

import (
	"fmt"
	"testing"

	"github.com/cbegin/pianoseq-go/internal/notation"
)

func newSeq(t *testing.T, text string, bpm float64, sink Sink) *Sequencer {
	t.Helper()
	song, err := notation.Parse(text)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	seq, err := New(song, bpm, sink)
	if err != nil {
		t.Fatalf("new sequencer failed: %v", err)
	}
	return seq
}

func describe(ds []Dispatch) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, fmt.Sprintf("%s %d %s", d.Kind, d.Pitch, d.Track))
	}
	return out
}

func expectDispatches(t *testing.T, got []Dispatch, want []string) {
	t.Helper()
	g := describe(got)
	if len(g) != len(want) {
		t.Fatalf("dispatches = %q, want %q", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("dispatches = %q, want %q", g, want)
		}
	}
}

func beats(n, d int64) notation.Beats { return notation.NewBeats(n, d) }

func TestDispatchOrderAtEqualBeats(t *testing.T) {
	rec := NewRecorder()
	seq := newSeq(t, "R: C4:q C4:q\nL: C2:h", 120, rec)

	if n := seq.DispatchUntil(beats(0, 1)); n != 2 {
		t.Fatalf("dispatched %d at beat 0, want 2", n)
	}
	next, ok := seq.NextDue()
	if !ok || !next.Equal(beats(1, 1)) {
		t.Fatalf("next due = %v (%v), want 1", next, ok)
	}
	seq.DispatchUntil(beats(2, 1))
	if !seq.Done() {
		t.Fatal("expected queue to be drained")
	}
	expectDispatches(t, rec.Events(), []string{
		"on 60 R", "on 36 L",
		"off 60 R", "on 60 R",
		"off 60 R", "off 36 L",
	})
}

func TestDispatchUsesVelocity(t *testing.T) {
	rec := NewRecorder()
	seq := newSeq(t, "C4:q", 120, rec)
	seq.DispatchUntil(beats(0, 1))
	if ons := rec.Ons(); len(ons) != 1 || ons[0].Velocity != DefaultVelocity {
		t.Fatalf("unexpected ons %+v", ons)
	}

	rec.Reset()
	song, _ := notation.Parse("C4:q")
	seq, err := NewWithOptions(song, 120, rec, Options{Velocity: 300})
	if err != nil {
		t.Fatalf("new sequencer failed: %v", err)
	}
	seq.DispatchUntil(beats(0, 1))
	if ons := rec.Ons(); ons[0].Velocity != 127 {
		t.Fatalf("velocity = %d, want clamp to 127", ons[0].Velocity)
	}
}

func TestSilenceDoesNotRestartNotes(t *testing.T) {
	rec := NewRecorder()
	seq := newSeq(t, "R: C4:h D4:q\nL: C2:q", 120, rec)
	seq.DispatchUntil(beats(0, 1))
	if seq.Sounding() != 2 {
		t.Fatalf("sounding = %d, want 2", seq.Sounding())
	}
	if n := seq.Silence(); n != 2 {
		t.Fatalf("silenced %d, want 2", n)
	}
	seq.DispatchUntil(beats(10, 1))
	expectDispatches(t, rec.Events(), []string{
		"on 60 R", "on 36 L",
		"off 60 R", "off 36 L",
		"on 62 R", "off 62 R",
	})
}

func TestSetTempoKeepsSoundedNotes(t *testing.T) {
	rec := NewRecorder()
	seq := newSeq(t, "C4:q D4:q E4:q", 120, rec)
	seq.DispatchUntil(beats(1, 2))
	if err := seq.SetTempo(60); err != nil {
		t.Fatalf("set tempo failed: %v", err)
	}
	if seq.BPM() != 60 || seq.Timeline().Notes[1].Start != 1 {
		t.Fatalf("timeline not rebuilt: bpm=%v start=%v", seq.BPM(), seq.Timeline().Notes[1].Start)
	}
	seq.DispatchUntil(beats(10, 1))
	expectDispatches(t, rec.Events(), []string{
		"on 60 R", "off 60 R",
		"on 62 R", "off 62 R",
		"on 64 R", "off 64 R",
	})
	if err := seq.SetTempo(0); err == nil {
		t.Fatal("expected error for zero tempo")
	}
}

func TestResetRewinds(t *testing.T) {
	rec := NewRecorder()
	seq := newSeq(t, "C4:q D4:q", 120, rec)
	seq.DispatchUntil(beats(1, 1))
	seq.Reset()
	if !seq.Position().IsZero() || seq.Sounding() != 0 {
		t.Fatalf("reset left pos=%v sounding=%d", seq.Position(), seq.Sounding())
	}
	rec.Reset()
	seq.DispatchUntil(beats(2, 1))
	if len(rec.Ons()) != 2 {
		t.Fatalf("expected both notes again, got %q", describe(rec.Events()))
	}
}

func TestProgressAndStatusString(t *testing.T) {
	seq := newSeq(t, "R: C4:q rr D4:q\nL: C2:h", 120, nil)
	seq.DispatchUntil(beats(1, 1))
	st := Status{State: StatePlaying, Tracks: seq.Progress()}
	if got := st.String(); got != "Playing L:1/1 R:2/3" {
		t.Fatalf("status = %q", got)
	}
	st.State = StatePaused
	if got := st.String(); got != "Paused L:1/1 R:2/3" {
		t.Fatalf("status = %q", got)
	}
	st.State = StateIdle
	if got := st.String(); got != "Ready" {
		t.Fatalf("status = %q", got)
	}
}

func TestMultiSinkFansOutInOrder(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	m := NewMultiSink(a, nil, b)
	if m.Len() != 2 {
		t.Fatalf("len = %d, want 2", m.Len())
	}
	m.NoteOn(60, notation.Right, 96)
	m.NoteOff(60, notation.Right)
	for _, r := range []*Recorder{a, b} {
		expectDispatches(t, r.Events(), []string{"on 60 R", "off 60 R"})
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(nil, 120, nil); err == nil {
		t.Fatal("expected error for nil song")
	}
	song, _ := notation.Parse("C4:q")
	if _, err := New(song, -1, nil); err == nil {
		t.Fatal("expected error for negative tempo")
	}
}
