package sequencer

import (
	"errors"
	"testing"
	"time"

	"github.com/cbegin/pianoseq-go/internal/notation"
)

func newClock(t *testing.T, text string, bpm float64, rec *Recorder, opts ...ClockOption) *Clock {
	t.Helper()
	c := NewClock(newSeq(t, text, bpm, rec), opts...)
	t.Cleanup(c.Close)
	return c
}

func waitEvent(t *testing.T, ch <-chan EventKind, want EventKind) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("event = %v, want %v", got, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for event %v", want)
	}
}

func TestClockPlaysToEnd(t *testing.T) {
	rec := NewRecorder()
	events := make(chan EventKind, 4)
	// 10ms per beat.
	c := newClock(t, "C4:q D4:q E4:q", 6000, rec, WithEventHandler(func(k EventKind, _ uint64) { events <- k }))
	if err := c.Play(); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	waitEvent(t, events, EventPlaybackEnded)
	expectDispatches(t, rec.Events(), []string{
		"on 60 R", "off 60 R",
		"on 62 R", "off 62 R",
		"on 64 R", "off 64 R",
	})
	ons := rec.Ons()
	if gap := ons[2].At - ons[0].At; gap < 15*time.Millisecond {
		t.Fatalf("notes fired too early: gap %v", gap)
	}
	if c.State() != StateIdle {
		t.Fatalf("state = %v, want idle", c.State())
	}
	if got := c.Status().String(); got != "Ready" {
		t.Fatalf("status = %q, want Ready", got)
	}
}

func TestClockNoNoteOnAfterStop(t *testing.T) {
	rec := NewRecorder()
	// 50ms per beat.
	c := newClock(t, "C4:q D4:q E4:q F4:q G4:q A4:q B4:q C5:q D5:q E5:q", 1200, rec)
	if err := c.Play(); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	time.Sleep(120 * time.Millisecond)
	c.Stop()
	after := len(rec.Events())
	ons := len(rec.Ons())
	if ons == 0 || ons >= 10 {
		t.Fatalf("unexpected note-on count %d at stop", ons)
	}
	if offs := after - ons; offs != ons {
		t.Fatalf("stop left notes sounding: %d ons, %d offs", ons, offs)
	}
	time.Sleep(200 * time.Millisecond)
	if got := len(rec.Events()); got != after {
		t.Fatalf("dispatches after stop: %q", describe(rec.Events()[after:]))
	}
	if c.State() != StateIdle {
		t.Fatalf("state = %v, want idle", c.State())
	}
}

func TestClockPauseResume(t *testing.T) {
	rec := NewRecorder()
	events := make(chan EventKind, 4)
	c := newClock(t, "C4:q D4:q E4:q F4:q", 1200, rec, WithEventHandler(func(k EventKind, _ uint64) { events <- k }))
	if err := c.Play(); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	time.Sleep(70 * time.Millisecond)
	if !c.Pause() {
		t.Fatal("pause reported not playing")
	}
	if c.Pause() {
		t.Fatal("second pause should be a no-op")
	}
	pos := c.Position()
	paused := len(rec.Events())
	if pos.Sign() <= 0 || pos.Cmp(notation.NewBeats(4, 1)) >= 0 {
		t.Fatalf("paused position = %v", pos)
	}
	time.Sleep(100 * time.Millisecond)
	if !c.Position().Equal(pos) || len(rec.Events()) != paused {
		t.Fatal("clock advanced while paused")
	}
	if c.Status().State != StatePaused {
		t.Fatalf("state = %v, want paused", c.Status().State)
	}
	if !c.Resume() {
		t.Fatal("resume reported not paused")
	}
	waitEvent(t, events, EventPlaybackEnded)
	if ons := rec.Ons(); len(ons) != 4 {
		t.Fatalf("expected each note started once, got %q", describe(ons))
	}
}

func TestClockTempoChangeWhilePlaying(t *testing.T) {
	rec := NewRecorder()
	events := make(chan EventKind, 4)
	c := newClock(t, "C4:q D4:q E4:q F4:q G4:q A4:q B4:q C5:q", 600, rec, WithEventHandler(func(k EventKind, _ uint64) { events <- k }))
	if err := c.Play(); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	before := c.Position()
	if err := c.SetTempo(6000); err != nil {
		t.Fatalf("set tempo failed: %v", err)
	}
	if c.Position().Cmp(before) < 0 {
		t.Fatalf("position jumped back from %v to %v", before, c.Position())
	}
	if c.Timeline().BPM != 6000 {
		t.Fatalf("timeline bpm = %v", c.Timeline().BPM)
	}
	waitEvent(t, events, EventPlaybackEnded)
	ons := rec.Ons()
	want := []notation.Pitch{60, 62, 64, 65, 67, 69, 71, 72}
	if len(ons) != len(want) {
		t.Fatalf("ons = %q", describe(ons))
	}
	for i, p := range want {
		if ons[i].Pitch != p {
			t.Fatalf("ons = %q", describe(ons))
		}
	}
	if err := c.SetTempo(-5); err == nil {
		t.Fatal("expected error for negative tempo")
	}
}

func TestClockEventsCarryRunID(t *testing.T) {
	runs := make(chan uint64, 4)
	c := newClock(t, "C4:q", 6000, NewRecorder(), WithEventHandler(func(k EventKind, run uint64) {
		if k == EventPlaybackEnded {
			runs <- run
		}
	}))
	if c.Run() != 0 {
		t.Fatalf("run before play = %d, want 0", c.Run())
	}
	for want := uint64(1); want <= 2; want++ {
		if err := c.Play(); err != nil {
			t.Fatalf("play failed: %v", err)
		}
		select {
		case got := <-runs:
			if got != want || c.Run() != want {
				t.Fatalf("event run = %d, clock run = %d, want %d", got, c.Run(), want)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for playback end")
		}
	}
}

func TestClockLoops(t *testing.T) {
	rec := NewRecorder()
	events := make(chan EventKind, 16)
	c := newClock(t, "C4:q", 6000, rec, WithLoop(true), WithEventHandler(func(k EventKind, _ uint64) {
		select {
		case events <- k:
		default:
		}
	}))
	if err := c.Play(); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	waitEvent(t, events, EventLoopCompleted)
	waitEvent(t, events, EventLoopCompleted)
	c.Stop()
	if len(rec.Ons()) < 2 {
		t.Fatalf("expected the note to repeat, got %q", describe(rec.Events()))
	}
}

func TestClockReplaceAndClose(t *testing.T) {
	rec := NewRecorder()
	c := NewClock(newSeq(t, "C4:w", 120, rec))
	if err := c.Play(); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := c.Replace(newSeq(t, "D4:q", 120, rec)); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	expectDispatches(t, rec.Events(), []string{"on 60 R", "off 60 R"})
	if c.Timeline().Notes[0].Pitch != 62 {
		t.Fatal("replace did not install the new song")
	}
	c.Close()
	if err := c.Play(); !errors.Is(err, ErrClosed) {
		t.Fatalf("play after close = %v, want ErrClosed", err)
	}
	if c.State() != StateStopped {
		t.Fatalf("state = %v, want stopped", c.State())
	}
}
