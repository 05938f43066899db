package effects

import "math"

// Limiter is a linked stereo compressor. Both channels get the same gain so
// loud chords do not pull the image to one side.
type Limiter struct {
	threshold float64
	ratio     float64
	attack    float64
	release   float64
	env       float64
}

// NewLimiter compresses above thresholdDB by ratio. Attack and release are in
// milliseconds.
func NewLimiter(sampleRate int, thresholdDB, ratio, attackMs, releaseMs float64) *Limiter {
	if ratio < 1 {
		ratio = 1
	}
	return &Limiter{
		threshold: math.Pow(10, thresholdDB/20),
		ratio:     ratio,
		attack:    coefficient(attackMs, sampleRate),
		release:   coefficient(releaseMs, sampleRate),
	}
}

func coefficient(ms float64, sampleRate int) float64 {
	if ms <= 0 {
		return 1
	}
	return 1 - math.Exp(-1/(ms*float64(sampleRate)/1000))
}

func (c *Limiter) Process(l, r float64) (float64, float64) {
	level := math.Max(math.Abs(l), math.Abs(r))
	if level > c.env {
		c.env += c.attack * (level - c.env)
	} else {
		c.env += c.release * (level - c.env)
	}
	g := c.gain()
	return l * g, r * g
}

// Gain is the gain currently applied.
func (c *Limiter) Gain() float64 { return c.gain() }

func (c *Limiter) gain() float64 {
	if c.env <= c.threshold {
		return 1
	}
	return math.Pow(c.env/c.threshold, 1/c.ratio-1)
}

func (c *Limiter) Reset() { c.env = 0 }
