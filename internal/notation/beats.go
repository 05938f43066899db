package notation

import (
	"math/big"
	"strings"
)

// Beats is an exact, non-negative rational number of beats. The zero value is
// zero beats. Values are immutable; arithmetic returns new values.
type Beats struct {
	r *big.Rat
}

var durationSymbols = map[byte]Beats{
	'w': NewBeats(4, 1),
	'h': NewBeats(2, 1),
	'q': NewBeats(1, 1),
	'e': NewBeats(1, 2),
	's': NewBeats(1, 4),
}

// NewBeats returns num/den beats. den must not be zero.
func NewBeats(num, den int64) Beats {
	return Beats{r: big.NewRat(num, den)}
}

func (b Beats) rat() *big.Rat {
	if b.r == nil {
		return new(big.Rat)
	}
	return b.r
}

func (b Beats) Add(o Beats) Beats {
	return Beats{r: new(big.Rat).Add(b.rat(), o.rat())}
}

func (b Beats) Sub(o Beats) Beats {
	return Beats{r: new(big.Rat).Sub(b.rat(), o.rat())}
}

func (b Beats) Mul(o Beats) Beats {
	return Beats{r: new(big.Rat).Mul(b.rat(), o.rat())}
}

func (b Beats) Cmp(o Beats) int    { return b.rat().Cmp(o.rat()) }
func (b Beats) Equal(o Beats) bool { return b.Cmp(o) == 0 }
func (b Beats) Sign() int          { return b.rat().Sign() }
func (b Beats) IsZero() bool       { return b.Sign() == 0 }

func (b Beats) Float64() float64 {
	f, _ := b.rat().Float64()
	return f
}

// Seconds converts b to wall-clock seconds at bpm beats per minute.
func (b Beats) Seconds(bpm float64) float64 {
	return b.Float64() * 60 / bpm
}

func (b Beats) String() string { return b.rat().RatString() }

func MaxBeats(a, b Beats) Beats {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// DurationSymbol returns the fixed value of a duration symbol (w, h, q, e, s).
func DurationSymbol(sym byte) (Beats, bool) {
	d, ok := durationSymbols[lower(sym)]
	return d, ok
}

// ParseDuration resolves a duration literal: a single symbol character or an
// exact positive number such as "0.75", "3" or "1/3".
func ParseDuration(s string) (Beats, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 1 {
		if d, ok := DurationSymbol(s[0]); ok {
			return d, true
		}
	}
	if !isDecimal(s) {
		return Beats{}, false
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok || r.Sign() <= 0 {
		return Beats{}, false
	}
	return Beats{r: r}, true
}

// isDecimal accepts only digits, one '.' or one '/'. big.Rat would also take
// exponents, signs and base prefixes.
func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	seps := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
		case c == '.' || c == '/':
			seps++
		default:
			return false
		}
	}
	return seps <= 1
}

// BeatsFromFloat converts a measured position back to exact form. Negative,
// NaN and infinite inputs map to zero.
func BeatsFromFloat(f float64) Beats {
	if !(f > 0) {
		return Beats{}
	}
	r := new(big.Rat).SetFloat64(f)
	if r == nil {
		return Beats{}
	}
	return Beats{r: r}
}

// Ticks converts b to MIDI ticks at resolution ticks per beat, rounding to
// the nearest tick.
func (b Beats) Ticks(resolution int64) int64 {
	r := new(big.Rat).Mul(b.rat(), new(big.Rat).SetInt64(resolution))
	num := new(big.Int).Set(r.Num())
	den := r.Denom()
	// round half up: (2*num + den) / (2*den)
	num.Mul(num, big.NewInt(2)).Add(num, den)
	return num.Quo(num, new(big.Int).Mul(den, big.NewInt(2))).Int64()
}
