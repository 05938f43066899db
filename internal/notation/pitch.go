package notation

import (
	"fmt"
	"strconv"
)

// Pitch is a MIDI note number.
type Pitch int

const (
	MinPitch Pitch = 0
	MaxPitch Pitch = 127

	// LowestKey and HighestKey bound the 88-key range (A0..C8).
	LowestKey  Pitch = 21
	HighestKey Pitch = 108
)

var pitchClasses = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func (p Pitch) String() string {
	if p < 0 {
		return fmt.Sprintf("?%d", int(p))
	}
	return fmt.Sprintf("%s%d", sharpNames[int(p)%12], int(p)/12-1)
}

// Audible reports whether p lies on an 88-key piano.
func (p Pitch) Audible() bool { return p >= LowestKey && p <= HighestKey }

// ParsePitch resolves a MIDI number ("60") or a note name with optional
// accidental and signed octave ("C#4", "Db-1", "a3").
func ParsePitch(s string) (Pitch, bool) {
	if s == "" {
		return 0, false
	}
	if isAllDigits(s) {
		n, err := strconv.Atoi(s)
		if err != nil || n < int(MinPitch) || n > int(MaxPitch) {
			return 0, false
		}
		return Pitch(n), true
	}
	pc, ok := pitchClasses[lower(s[0])]
	if !ok {
		return 0, false
	}
	i := 1
	if i < len(s) {
		switch s[i] {
		case '#':
			pc++
			i++
		case 'b':
			pc--
			i++
		}
	}
	octave := s[i:]
	if octave == "" || octave == "-" || octave == "+" {
		return 0, false
	}
	o, err := strconv.Atoi(octave)
	if err != nil {
		return 0, false
	}
	n := (o+1)*12 + pc
	if n < int(MinPitch) || n > int(MaxPitch) {
		return 0, false
	}
	return Pitch(n), true
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + 32
	}
	return b
}
