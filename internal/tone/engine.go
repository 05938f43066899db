// Package tone is a small additive piano synthesizer. It receives notes as a
// sequencer sink and renders interleaved stereo float32 frames.
package tone

import (
	"math"
	"sync/atomic"

	"github.com/cbegin/pianoseq-go/internal/effects"
	"github.com/cbegin/pianoseq-go/internal/notation"
)

const twoPi = math.Pi * 2

// partial is one overtone: a frequency ratio (slightly stretched, as on a real
// string) and its relative amplitude.
type partial struct {
	ratio float64
	amp   float64
}

var partials = [...]partial{
	{1.00, 1.0},
	{2.01, 0.6},
	{3.02, 0.4},
	{4.03, 0.25},
	{5.04, 0.15},
	{6.05, 0.1},
	{7.06, 0.08},
	{8.07, 0.06},
	{9.08, 0.04},
	{10.09, 0.03},
	{11.10, 0.02},
	{12.11, 0.015},
	{13.12, 0},
	{15.14, 0},
}

const numPartials = len(partials)

type Params struct {
	Voices      int
	MasterGain  float64
	VelocityAmp float64
	// Pan per hand, -1 (left) to 1 (right).
	LeftPan   float64
	RightPan  float64
	LPFCutoff float64
	// QueueSize is the capacity of the note command queue.
	QueueSize int
	EQ        effects.EQParams
	Room      effects.RoomParams
	// Limit enables a peak limiter at the end of the mix.
	Limit bool
}

func DefaultParams() Params {
	return Params{
		Voices:      32,
		MasterGain:  0.18,
		VelocityAmp: 0.85,
		LeftPan:     -0.3,
		RightPan:    0.3,
		LPFCutoff:   9000,
		QueueSize:   512,
		EQ:          effects.EQParams{Low: 1.1, Mid: 1, High: 0.9, LowFreq: 250, HighFreq: 4000},
		Room:        effects.RoomParams{Size: 0.6, Damping: 0.4, Wet: 0.15},
		Limit:       true,
	}
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

// envelope holds the register-dependent shape of one note: lower notes
// attack slower and ring longer.
type envelope struct {
	attack  float64
	decay   float64
	release float64
	sustain float64
}

func envelopeFor(pitch notation.Pitch) envelope {
	reg := clamp(float64(pitch-notation.LowestKey)/87.0, 0, 1)
	return envelope{
		attack:  0.003 + (1-reg)*0.015,
		decay:   0.1 + (1-reg)*0.2,
		release: 0.2 + (1-reg)*0.8,
		sustain: 0.4 + (1-reg)*0.2,
	}
}

type voice struct {
	active     bool
	pitch      notation.Pitch
	track      notation.TrackID
	age        int
	stageFrame int
	phases     [numPartials]float64
	incs       [numPartials]float64
	amps       [numPartials]float64
	norm       float64
	velocity   float64
	level      float64
	relFrom    float64
	env        envelope
	state      envState
	pan        float64
}

type cmdKind int

const (
	cmdOn cmdKind = iota
	cmdOff
)

type command struct {
	kind     cmdKind
	pitch    notation.Pitch
	track    notation.TrackID
	velocity int
}

// Engine is safe to feed from one goroutine (the sequencer) while another
// (the audio thread) calls Process: notes travel over a buffered channel and
// are applied at the start of each Process call.
type Engine struct {
	sampleRate float64
	params     Params
	voices     []voice
	cmds       chan command
	dropped    atomic.Int64
	active     atomic.Int32
	dcPrevInL  float64
	dcPrevOutL float64
	dcPrevInR  float64
	dcPrevOutR float64
	lpfL       float64
	lpfR       float64
	lpfAlpha   float64
	fx         *effects.Chain
}

func New(sampleRate int, params Params) *Engine {
	def := DefaultParams()
	if params.Voices <= 0 {
		params.Voices = def.Voices
	}
	if params.QueueSize <= 0 {
		params.QueueSize = def.QueueSize
	}
	if params.MasterGain < 0 {
		params.MasterGain = 0
	}
	e := &Engine{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voice, params.Voices),
		cmds:       make(chan command, params.QueueSize),
	}
	if params.LPFCutoff > 0 && params.LPFCutoff < float64(sampleRate)/2 {
		rc := 1.0 / (twoPi * params.LPFCutoff)
		dt := 1.0 / float64(sampleRate)
		e.lpfAlpha = dt / (rc + dt)
	}
	e.fx = effects.NewChain()
	if params.EQ.LowFreq > 0 && params.EQ.HighFreq > 0 && !params.EQ.Flat() {
		e.fx.Add(effects.NewEQ(sampleRate, params.EQ))
	}
	if params.Room.Wet > 0 {
		e.fx.Add(effects.NewRoom(sampleRate, params.Room))
	}
	if params.Limit {
		e.fx.Add(effects.NewLimiter(sampleRate, -3, 6, 2, 150))
	}
	return e
}

func (e *Engine) SampleRate() int { return int(e.sampleRate) }

// NoteOn queues a note. It never blocks; if the queue is full the note is
// dropped and counted.
func (e *Engine) NoteOn(pitch notation.Pitch, track notation.TrackID, velocity int) {
	e.enqueue(command{kind: cmdOn, pitch: pitch, track: track, velocity: velocity})
}

func (e *Engine) NoteOff(pitch notation.Pitch, track notation.TrackID) {
	e.enqueue(command{kind: cmdOff, pitch: pitch, track: track})
}

func (e *Engine) enqueue(c command) {
	select {
	case e.cmds <- c:
	default:
		e.dropped.Add(1)
	}
}

// Dropped reports how many commands were lost to a full queue.
func (e *Engine) Dropped() int64 { return e.dropped.Load() }

// ActiveVoiceCount is the number of voices still sounding, release tails
// included, as of the last rendered block.
func (e *Engine) ActiveVoiceCount() int { return int(e.active.Load()) }

// Process applies queued notes and fills dst with interleaved stereo frames.
func (e *Engine) Process(dst []float32) {
	e.drain()
	for i := 0; i+1 < len(dst); i += 2 {
		dst[i], dst[i+1] = e.RenderFrame()
	}
	n := 0
	for i := range e.voices {
		if e.voices[i].active {
			n++
		}
	}
	e.active.Store(int32(n))
}

func (e *Engine) drain() {
	for {
		select {
		case c := <-e.cmds:
			switch c.kind {
			case cmdOn:
				e.startVoice(c.pitch, c.track, c.velocity)
			case cmdOff:
				e.releaseVoice(c.pitch, c.track)
			}
		default:
			return
		}
	}
}

func (e *Engine) startVoice(pitch notation.Pitch, track notation.TrackID, velocity int) {
	v := &e.voices[e.stealVoice()]
	*v = voice{
		active:   true,
		pitch:    pitch,
		track:    track,
		velocity: clamp(float64(velocity)/127.0, 0, 1),
		env:      envelopeFor(pitch),
		state:    envAttack,
		pan:      e.panFor(track),
	}
	freq := pitchToFreq(pitch)
	// Bass notes get a richer spectrum, treble notes a little metallic shine.
	richness := 1.0 + float64(69-int(pitch))/88.0
	brightness := 0.0
	if pitch > 60 {
		brightness = float64(pitch-60) / 48.0
	}
	for k, p := range partials {
		f := freq * p.ratio
		if f >= e.sampleRate/2 {
			continue
		}
		amp := p.amp
		if k > 0 {
			amp *= richness
		}
		switch k {
		case 12:
			amp = 0.05 * brightness
		case 13:
			amp = 0.03 * brightness
		}
		v.amps[k] = amp
		v.incs[k] = f / e.sampleRate
		v.norm += math.Abs(amp)
	}
	if v.norm > 0 {
		v.norm = 0.8 / v.norm
	}
}

func (e *Engine) releaseVoice(pitch notation.Pitch, track notation.TrackID) {
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.pitch == pitch && v.track == track && v.state != envRelease {
			v.relFrom = v.level
			v.state = envRelease
			v.stageFrame = 0
			return
		}
	}
}

func (e *Engine) panFor(track notation.TrackID) float64 {
	if track == notation.Left {
		return e.params.LeftPan
	}
	return e.params.RightPan
}

func (e *Engine) RenderFrame() (float32, float32) {
	var l, r float64
	gain := e.params.MasterGain
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active {
			continue
		}
		v.age++
		env := e.advanceEnv(v)
		if !v.active {
			continue
		}
		var s float64
		for k := 0; k < numPartials; k++ {
			if v.amps[k] == 0 {
				continue
			}
			s += v.amps[k] * math.Sin(twoPi*v.phases[k])
			v.phases[k] += v.incs[k]
			if v.phases[k] >= 1 {
				v.phases[k] -= 1
			}
		}
		sig := s * v.norm * env * (0.15 + v.velocity*e.params.VelocityAmp)
		angle := (clamp(v.pan, -1, 1) + 1) / 2 * (math.Pi / 2)
		l += sig * math.Cos(angle) * gain
		r += sig * math.Sin(angle) * gain
	}
	l = e.dcBlockL(l)
	r = e.dcBlockR(r)
	if e.lpfAlpha > 0 {
		e.lpfL += e.lpfAlpha * (l - e.lpfL)
		e.lpfR += e.lpfAlpha * (r - e.lpfR)
		l, r = e.lpfL, e.lpfR
	}
	l, r = e.fx.Process(l, r)
	return float32(clamp(l, -1, 1)), float32(clamp(r, -1, 1))
}

func (e *Engine) advanceEnv(v *voice) float64 {
	t := float64(v.stageFrame) / e.sampleRate
	v.stageFrame++
	switch v.state {
	case envAttack:
		if t >= v.env.attack {
			v.state, v.stageFrame = envDecay, 0
			v.level = 1
			break
		}
		v.level = math.Sqrt(t / v.env.attack)
	case envDecay:
		if t >= v.env.decay {
			v.state, v.stageFrame = envSustain, 0
			v.level = v.env.sustain
			break
		}
		x := t / v.env.decay
		v.level = 1 - (1-v.env.sustain)*(1-math.Exp(-3*x))
	case envSustain:
		// A held piano string keeps fading slowly.
		v.level = v.env.sustain * math.Exp(-0.5*t/3.0)
	case envRelease:
		if t >= v.env.release {
			v.state = envOff
			v.active = false
			v.level = 0
			break
		}
		v.level = v.relFrom * math.Exp(-4*t/v.env.release)
	case envOff:
		v.active = false
		v.level = 0
	}
	return v.level
}

func (e *Engine) stealVoice() int {
	for i := range e.voices {
		if !e.voices[i].active {
			return i
		}
	}
	oldestRelease := -1
	oldestReleaseAge := -1
	oldestActive := 0
	oldestActiveAge := -1
	for i := range e.voices {
		v := &e.voices[i]
		if v.state == envRelease && v.age > oldestReleaseAge {
			oldestRelease = i
			oldestReleaseAge = v.age
		}
		if v.age > oldestActiveAge {
			oldestActive = i
			oldestActiveAge = v.age
		}
	}
	if oldestRelease >= 0 {
		return oldestRelease
	}
	return oldestActive
}

func (e *Engine) dcBlockL(x float64) float64 {
	const r = 0.995
	y := x - e.dcPrevInL + r*e.dcPrevOutL
	e.dcPrevInL = x
	e.dcPrevOutL = y
	return y
}

func (e *Engine) dcBlockR(x float64) float64 {
	const r = 0.995
	y := x - e.dcPrevInR + r*e.dcPrevOutR
	e.dcPrevInR = x
	e.dcPrevOutR = y
	return y
}

func pitchToFreq(p notation.Pitch) float64 {
	return 440 * math.Pow(2, float64(int(p)-69)/12)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
