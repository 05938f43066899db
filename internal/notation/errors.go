package notation

import (
	"errors"
	"fmt"
)

var (
	ErrBadPitch             = errors.New("bad pitch")
	ErrBadDuration          = errors.New("bad duration")
	ErrMalformedChord       = errors.New("malformed chord")
	ErrMissingChordDuration = errors.New("missing chord duration")
	ErrEmptySharedChord     = errors.New("empty shared chord")
)

// ParseError locates the token that stopped a parse. Kind is one of the Err*
// sentinels, so callers can match with errors.Is.
type ParseError struct {
	Kind    error
	Track   TrackID
	Index   int
	Literal string
	Line    int
	Col     int
}

func (e *ParseError) Error() string {
	if e.Literal == "" {
		return fmt.Sprintf("%v: track %s token %d (line %d col %d)", e.Kind, e.Track, e.Index, e.Line, e.Col)
	}
	return fmt.Sprintf("%v: track %s token %d %q (line %d col %d)", e.Kind, e.Track, e.Index, e.Literal, e.Line, e.Col)
}

func (e *ParseError) Unwrap() error { return e.Kind }

func tokenError(kind error, track TrackID, index int, tok Token, literal string) *ParseError {
	return &ParseError{
		Kind:    kind,
		Track:   track,
		Index:   index,
		Literal: literal,
		Line:    tok.Line,
		Col:     tok.Col,
	}
}
