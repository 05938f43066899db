package tone

import (
	"math"
	"testing"

	"github.com/cbegin/pianoseq-go/internal/effects"
	"github.com/cbegin/pianoseq-go/internal/notation"
)

func peak(buf []float32, channel int) float64 {
	var m float64
	for i := channel; i < len(buf); i += 2 {
		if a := math.Abs(float64(buf[i])); a > m {
			m = a
		}
	}
	return m
}

func TestNoteOnProducesSound(t *testing.T) {
	e := New(48000, DefaultParams())
	buf := make([]float32, 2048*2)
	e.Process(buf)
	if peak(buf, 0) != 0 {
		t.Fatal("expected silence before any note")
	}
	e.NoteOn(60, notation.Right, 96)
	e.Process(buf)
	if peak(buf, 0) == 0 || peak(buf, 1) == 0 {
		t.Fatal("expected audio after note on")
	}
	if e.ActiveVoiceCount() != 1 {
		t.Fatalf("active voices = %d, want 1", e.ActiveVoiceCount())
	}
	for _, s := range buf {
		if s > 1 || s < -1 || math.IsNaN(float64(s)) {
			t.Fatalf("sample out of range: %v", s)
		}
	}
}

func TestNoteOffReleasesVoice(t *testing.T) {
	e := New(48000, DefaultParams())
	buf := make([]float32, 4800*2)
	e.NoteOn(72, notation.Right, 96)
	e.Process(buf)
	e.NoteOff(72, notation.Left)
	e.Process(buf)
	if e.ActiveVoiceCount() != 1 {
		t.Fatal("note off on another track should not release the voice")
	}
	e.NoteOff(72, notation.Right)
	// Longest release is one second.
	for i := 0; i < 12; i++ {
		e.Process(buf)
	}
	if e.ActiveVoiceCount() != 0 {
		t.Fatalf("active voices = %d after release, want 0", e.ActiveVoiceCount())
	}
}

func TestHandsArePanned(t *testing.T) {
	left := New(48000, DefaultParams())
	right := New(48000, DefaultParams())
	bufL := make([]float32, 4096*2)
	bufR := make([]float32, 4096*2)
	left.NoteOn(48, notation.Left, 96)
	right.NoteOn(48, notation.Right, 96)
	left.Process(bufL)
	right.Process(bufR)
	if peak(bufL, 0) <= peak(bufL, 1) {
		t.Fatalf("left hand should favour left channel: %v/%v", peak(bufL, 0), peak(bufL, 1))
	}
	if peak(bufR, 1) <= peak(bufR, 0) {
		t.Fatalf("right hand should favour right channel: %v/%v", peak(bufR, 0), peak(bufR, 1))
	}
}

func TestVoiceStealingIsBounded(t *testing.T) {
	params := DefaultParams()
	params.Voices = 4
	e := New(48000, params)
	for p := notation.Pitch(40); p < 60; p++ {
		e.NoteOn(p, notation.Right, 96)
	}
	buf := make([]float32, 256*2)
	e.Process(buf)
	if e.ActiveVoiceCount() != 4 {
		t.Fatalf("active voices = %d, want 4", e.ActiveVoiceCount())
	}
}

func TestFullQueueDropsWithoutBlocking(t *testing.T) {
	params := DefaultParams()
	params.QueueSize = 2
	e := New(48000, params)
	for i := 0; i < 5; i++ {
		e.NoteOn(60, notation.Right, 96)
	}
	if e.Dropped() != 3 {
		t.Fatalf("dropped = %d, want 3", e.Dropped())
	}
}

func TestEnvelopeDependsOnRegister(t *testing.T) {
	bass := envelopeFor(notation.LowestKey)
	treble := envelopeFor(notation.HighestKey)
	if bass.release <= treble.release || bass.attack <= treble.attack {
		t.Fatalf("bass envelope %+v should be slower than treble %+v", bass, treble)
	}
	if math.Abs(bass.release-1.0) > 1e-9 || math.Abs(treble.release-0.2) > 1e-9 {
		t.Fatalf("unexpected release range %v..%v", treble.release, bass.release)
	}
}

func TestMixChainFollowsParams(t *testing.T) {
	if n := New(48000, DefaultParams()).fx.Len(); n != 3 {
		t.Fatalf("default chain has %d effects, want 3", n)
	}
	dry := DefaultParams()
	dry.Room.Wet = 0
	dry.EQ = effects.EQParams{Low: 1, Mid: 1, High: 1, LowFreq: 250, HighFreq: 4000}
	dry.Limit = false
	if n := New(48000, dry).fx.Len(); n != 0 {
		t.Fatalf("dry chain has %d effects, want 0", n)
	}
}

func TestRoomTailOutlivesVoices(t *testing.T) {
	e := New(48000, DefaultParams())
	buf := make([]float32, 4800*2)
	e.NoteOn(84, notation.Right, 110)
	e.Process(buf)
	e.NoteOff(84, notation.Right)
	for e.ActiveVoiceCount() > 0 {
		e.Process(buf)
	}
	e.Process(buf[:64])
	if peak(buf[:64], 1) == 0 {
		t.Fatal("expected the room to ring after the last voice ended")
	}
}
