package effects

import (
	"math"
	"testing"
)

func TestRoomKeepsDryAndAddsTail(t *testing.T) {
	r := NewRoom(48000, RoomParams{Size: 0.6, Damping: 0.4, Wet: 0.5})
	l, rr := r.Process(1, 0)
	if l != 1 || rr != 0 {
		t.Fatalf("first frame should be dry only, got %v/%v", l, rr)
	}
	var tailL, tailR float64
	for i := 0; i < 24000; i++ {
		l, rr = r.Process(0, 0)
		tailL = math.Max(tailL, math.Abs(l))
		tailR = math.Max(tailR, math.Abs(rr))
	}
	if tailL < 1e-4 {
		t.Fatal("expected a reverb tail")
	}
	if tailR != 0 {
		t.Fatalf("right channel got %v from a left-only impulse", tailR)
	}
}

func TestRoomReset(t *testing.T) {
	r := NewRoom(44100, RoomParams{Size: 1, Wet: 1})
	for i := 0; i < 2000; i++ {
		r.Process(0.5, 0.5)
	}
	r.Reset()
	if l, rr := r.Process(0, 0); l != 0 || rr != 0 {
		t.Fatalf("expected silence after reset, got %v/%v", l, rr)
	}
}

func TestEQUnityIsTransparent(t *testing.T) {
	eq := NewEQ(48000, EQParams{Low: 1, Mid: 1, High: 1, LowFreq: 250, HighFreq: 4000})
	for i := 0; i < 100; i++ {
		x := math.Sin(float64(i) * 0.3)
		l, r := eq.Process(x, -x)
		if math.Abs(l-x) > 1e-9 || math.Abs(r+x) > 1e-9 {
			t.Fatalf("frame %d: %v/%v, want %v", i, l, r, x)
		}
	}
}

func TestEQBassBoostOnDC(t *testing.T) {
	eq := NewEQ(48000, EQParams{Low: 2, Mid: 1, High: 1, LowFreq: 250, HighFreq: 4000})
	var l float64
	for i := 0; i < 48000; i++ {
		l, _ = eq.Process(0.25, 0.25)
	}
	if math.Abs(l-0.5) > 0.01 {
		t.Fatalf("settled DC = %v, want 0.5", l)
	}
}

func TestLimiterIsLinked(t *testing.T) {
	c := NewLimiter(48000, -6, 4, 1, 50)
	var l, r float64
	for i := 0; i < 4800; i++ {
		l, r = c.Process(1, 0.25)
	}
	if l >= 1 {
		t.Fatalf("limiter should reduce loud signals, got %v", l)
	}
	if math.Abs(l/r-4) > 1e-9 {
		t.Fatalf("channel ratio changed: %v/%v", l, r)
	}
	c.Reset()
	if c.Gain() != 1 {
		t.Fatalf("gain after reset = %v", c.Gain())
	}
}

func TestChainOrderAndNil(t *testing.T) {
	c := NewChain(nil, NewEQ(48000, EQParams{Low: 2, Mid: 2, High: 2, LowFreq: 200, HighFreq: 2000}), NewLimiter(48000, 0, 1, 1, 1))
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	l, r := c.Process(0.25, -0.25)
	if math.Abs(l-0.5) > 1e-9 || math.Abs(r+0.5) > 1e-9 {
		t.Fatalf("got %v/%v, want 0.5/-0.5", l, r)
	}
}
