package effects

// RoomParams shapes the reverb. Size and Damping run from 0 to 1. Wet is the
// reverb level mixed in; the dry signal is always kept at full level.
type RoomParams struct {
	Size    float64
	Damping float64
	Wet     float64
}

// Tunings at 44.1kHz, scaled to the actual rate.
var (
	combTunings    = [...]int{1116, 1188, 1277, 1356}
	allpassTunings = [...]int{556, 441}
)

// stereoSpread offsets the right channel delay lines so the tail is wide.
const stereoSpread = 23

// Room is a stereo comb/allpass reverb with damped feedback. Each channel
// has its own delay lines so the dry pan survives in the tail.
type Room struct {
	wet     float64
	combs   [2][len(combTunings)]comb
	allpass [2][len(allpassTunings)]allpass
}

type comb struct {
	buf      []float64
	pos      int
	feedback float64
	damp     float64
	store    float64
}

type allpass struct {
	buf []float64
	pos int
}

func NewRoom(sampleRate int, p RoomParams) *Room {
	scale := float64(sampleRate) / 44100
	feedback := 0.7 + 0.28*clamp(p.Size, 0, 1)
	damp := 0.4 * clamp(p.Damping, 0, 1)
	r := &Room{wet: clamp(p.Wet, 0, 1)}
	for ch := 0; ch < 2; ch++ {
		spread := ch * stereoSpread
		for i, n := range combTunings {
			r.combs[ch][i] = comb{
				buf:      make([]float64, scaled(n+spread, scale)),
				feedback: feedback,
				damp:     damp,
			}
		}
		for i, n := range allpassTunings {
			r.allpass[ch][i] = allpass{buf: make([]float64, scaled(n+spread, scale))}
		}
	}
	return r
}

func scaled(n int, scale float64) int {
	if v := int(float64(n) * scale); v > 1 {
		return v
	}
	return 1
}

func (r *Room) Process(l, rr float64) (float64, float64) {
	return l + r.wet*r.channel(0, l), rr + r.wet*r.channel(1, rr)
}

func (r *Room) channel(ch int, x float64) float64 {
	in := x * 0.015
	var out float64
	for i := range r.combs[ch] {
		out += r.combs[ch][i].process(in)
	}
	for i := range r.allpass[ch] {
		out = r.allpass[ch][i].process(out)
	}
	return out
}

func (r *Room) Reset() {
	for ch := range r.combs {
		for i := range r.combs[ch] {
			c := &r.combs[ch][i]
			clear(c.buf)
			c.pos, c.store = 0, 0
		}
		for i := range r.allpass[ch] {
			a := &r.allpass[ch][i]
			clear(a.buf)
			a.pos = 0
		}
	}
}

func (c *comb) process(in float64) float64 {
	out := c.buf[c.pos]
	c.store = out*(1-c.damp) + c.store*c.damp
	c.buf[c.pos] = in + c.store*c.feedback
	if c.pos++; c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpass) process(in float64) float64 {
	buffered := a.buf[a.pos]
	a.buf[a.pos] = in + buffered*0.5
	if a.pos++; a.pos >= len(a.buf) {
		a.pos = 0
	}
	return buffered - in
}
