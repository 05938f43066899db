package pianoseq

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/cbegin/pianoseq-go/internal/midiout"
)

func TestRenderSamplesLengthAndSound(t *testing.T) {
	song, err := Parse("R: C4:q rr E4:q\nL: C3:h")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	samples, err := RenderSamples(song, 120, 48000, 0)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	// 3 beats at 120 bpm is 1.5s, plus the release tail.
	wantFrames := int(48000 * (1.5 + ReleaseTail))
	if len(samples) != wantFrames*2 {
		t.Fatalf("got %d samples, want %d", len(samples), wantFrames*2)
	}
	var peakFirst, peakRest float64
	for i, s := range samples {
		a := math.Abs(float64(s))
		if i < 48000 { // first half second
			peakFirst = math.Max(peakFirst, a)
		}
		if i >= 2*24000 && i < 2*48000 { // the rest, second half second
			peakRest = math.Max(peakRest, a)
		}
	}
	if peakFirst == 0 {
		t.Fatal("expected sound in the first beat")
	}
	if peakRest == 0 {
		t.Fatal("left hand half note should still sound during the rest")
	}
}

func TestRenderSamplesFixedLength(t *testing.T) {
	song, _ := Parse("C4:w")
	samples, err := RenderSamples(song, 120, 8000, 0.25)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if len(samples) != 2*2000 {
		t.Fatalf("got %d samples, want 4000", len(samples))
	}
	if _, err := RenderSamples(song, 0, 8000, 1); err == nil {
		t.Fatal("expected error for zero tempo")
	}
	if _, err := RenderSamples(song, 120, 0, 1); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	wav := EncodeWAVFloat32LE([]float32{0.5, -0.5, 1, -1}, 44100, 2)
	if len(wav) != 44+16 {
		t.Fatalf("wav length = %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatal("bad chunk ids")
	}
	le := binary.LittleEndian
	if le.Uint32(wav[4:]) != 36+16 || le.Uint16(wav[20:]) != 3 || le.Uint16(wav[22:]) != 2 {
		t.Fatal("bad header fields")
	}
	if le.Uint32(wav[24:]) != 44100 || le.Uint32(wav[28:]) != 44100*8 || le.Uint16(wav[34:]) != 32 {
		t.Fatal("bad rate fields")
	}
	if math.Float32frombits(le.Uint32(wav[48:])) != -0.5 {
		t.Fatal("bad sample data")
	}
}

func TestRenderWAVWritesContainer(t *testing.T) {
	song, _ := Parse("C4:q")
	var buf bytes.Buffer
	if err := RenderWAV(&buf, song, 120, 8000, 0.1); err != nil {
		t.Fatalf("render wav failed: %v", err)
	}
	if buf.Len() != 44+800*2*4 {
		t.Fatalf("wav size = %d", buf.Len())
	}
}

func TestExportSMF(t *testing.T) {
	song, _ := Parse("L: C2:h\nR: C4:q D4:q")
	var buf bytes.Buffer
	if err := ExportSMF(&buf, song, 100, 96); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	bpm, events, err := midiout.ReadSMF(&buf)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if math.Abs(bpm-100) > 0.01 {
		t.Fatalf("tempo = %v, want 100", bpm)
	}
	ons := 0
	for _, ev := range events {
		if ev.On {
			ons++
		}
	}
	if ons != 3 {
		t.Fatalf("note-ons = %d, want 3", ons)
	}
}
