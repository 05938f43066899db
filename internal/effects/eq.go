package effects

import "math"

// EQParams sets the gain of three bands split at LowFreq and HighFreq. A gain
// of 1 leaves the band untouched.
type EQParams struct {
	Low      float64
	Mid      float64
	High     float64
	LowFreq  float64
	HighFreq float64
}

// Flat reports whether the EQ would leave the signal unchanged.
func (p EQParams) Flat() bool {
	return p.Low == 1 && p.Mid == 1 && p.High == 1
}

// EQ is a three band equalizer built from two one-pole crossovers.
type EQ struct {
	p        EQParams
	lowAlpha float64
	highAlph float64
	low      [2]float64
	high     [2]float64
}

func NewEQ(sampleRate int, p EQParams) *EQ {
	return &EQ{
		p:        p,
		lowAlpha: onePole(p.LowFreq, sampleRate),
		highAlph: onePole(p.HighFreq, sampleRate),
	}
}

func onePole(cutoff float64, sampleRate int) float64 {
	if cutoff <= 0 {
		return 0
	}
	rc := 1 / (2 * math.Pi * cutoff)
	dt := 1 / float64(sampleRate)
	return dt / (rc + dt)
}

func (e *EQ) Process(l, r float64) (float64, float64) {
	return e.band(0, l), e.band(1, r)
}

func (e *EQ) band(ch int, x float64) float64 {
	e.low[ch] += e.lowAlpha * (x - e.low[ch])
	e.high[ch] += e.highAlph * (x - e.high[ch])
	lo := e.low[ch]
	hi := x - e.high[ch]
	mid := x - lo - hi
	return lo*e.p.Low + mid*e.p.Mid + hi*e.p.High
}

func (e *EQ) Reset() {
	e.low = [2]float64{}
	e.high = [2]float64{}
}
