package audio

import (
	"encoding/binary"
	"io"
	"math"
	"testing"
)

type rampSource struct{ n float32 }

func (r *rampSource) Process(dst []float32) {
	for i := range dst {
		r.n += 0.25
		dst[i] = r.n
	}
}

func TestStreamEncodesFloat32LittleEndian(t *testing.T) {
	var tapped int
	s := NewStream(&rampSource{}, func(buf []float32) { tapped += len(buf) })
	p := make([]byte, 8*3+5)
	n, err := s.Read(p)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if n != 24 {
		t.Fatalf("read %d bytes, want whole frames only (24)", n)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(p[4:])); got != 0.5 {
		t.Fatalf("second sample = %v, want 0.5", got)
	}
	if tapped != 6 || s.Frames() != 3 {
		t.Fatalf("tapped=%d frames=%d", tapped, s.Frames())
	}
}

func TestStreamShortAndClosedReads(t *testing.T) {
	s := NewStream(&rampSource{}, nil)
	if n, err := s.Read(make([]byte, 7)); n != 0 || err != nil {
		t.Fatalf("short read = %d, %v", n, err)
	}
	_ = s.Close()
	if _, err := s.Read(make([]byte, 64)); err != io.EOF {
		t.Fatalf("read after close = %v, want EOF", err)
	}
}
