// Package effects is the stereo post-processing applied to the piano mix:
// a tone-shaping EQ, a room reverb and a peak limiter.
package effects

// Effector processes one stereo frame.
type Effector interface {
	Process(l, r float64) (float64, float64)
	Reset()
}

// Chain applies effects in the order they were added.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	c := &Chain{}
	for _, e := range effects {
		c.Add(e)
	}
	return c
}

// Add appends e. A nil effect is ignored.
func (c *Chain) Add(e Effector) {
	if e != nil {
		c.effects = append(c.effects, e)
	}
}

func (c *Chain) Len() int { return len(c.effects) }

func (c *Chain) Process(l, r float64) (float64, float64) {
	for _, e := range c.effects {
		l, r = e.Process(l, r)
	}
	return l, r
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
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
