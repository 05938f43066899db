package notation

import "strings"

var restShorthand = map[string]Beats{
	"R":    NewBeats(4, 1),
	"r":    NewBeats(2, 1),
	"rr":   NewBeats(1, 1),
	"rrr":  NewBeats(1, 2),
	"rrrr": NewBeats(1, 4),
}

type ParserConfig struct {
	DefaultTrack  TrackID
	CommentPrefix string
}

func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		DefaultTrack:  Right,
		CommentPrefix: "#",
	}
}

type Parser struct{ cfg ParserConfig }

func NewParser(cfg ParserConfig) *Parser { return &Parser{cfg: cfg} }

// Parse runs the whole text pipeline: tokenize, resolve events, and apply
// Triolé groups. The first malformed token aborts the parse.
func (p *Parser) Parse(input string) (*Song, error) {
	defaultTrack := p.cfg.DefaultTrack
	if defaultTrack == "" {
		defaultTrack = Right
	}
	parts, err := tokenize(input, defaultTrack, p.cfg.CommentPrefix)
	if err != nil {
		return nil, err
	}
	song := &Song{Tracks: make([]Track, 0, len(parts))}
	for _, part := range parts {
		events, err := ParseTokens(part)
		if err != nil {
			return nil, err
		}
		song.Tracks = append(song.Tracks, Track{ID: part.ID, Events: RescaleTriplets(events)})
	}
	return song, nil
}

func Parse(input string) (*Song, error) {
	return NewParser(DefaultParserConfig()).Parse(input)
}

// ParseTokens resolves one track's tokens into events. Triolé markers are
// left in place; see RescaleTriplets.
func ParseTokens(tt TrackTokens) ([]Event, error) {
	events := make([]Event, 0, len(tt.Tokens))
	for i, tok := range tt.Tokens {
		var (
			ev  Event
			err *ParseError
		)
		if tok.Kind == TokenGroup {
			ev, err = parseChordGroup(tt.ID, i, tok)
		} else {
			ev, err = parseLiteral(tt.ID, i, tok)
		}
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseLiteral(track TrackID, idx int, tok Token) (Event, *ParseError) {
	lit := tok.Text
	fail := func(kind error) (Event, *ParseError) {
		return Event{}, tokenError(kind, track, idx, tok, lit)
	}
	head, tail, hasColon := strings.Cut(lit, ":")

	if hasColon && isTrioleWord(head) {
		if len(tail) != 1 {
			return fail(ErrBadDuration)
		}
		unit, ok := DurationSymbol(tail[0])
		if !ok {
			return fail(ErrBadDuration)
		}
		return Event{Kind: EventTriole, Duration: unit, Index: idx, Literal: lit}, nil
	}

	if d, ok := restShorthand[lit]; ok {
		return Event{Kind: EventRest, Duration: d, Index: idx, Literal: lit}, nil
	}
	if isRestRun(lit) {
		return fail(ErrBadDuration)
	}

	if hasColon && isRestWord(head) {
		d, ok := ParseDuration(tail)
		if !ok {
			return fail(ErrBadDuration)
		}
		return Event{Kind: EventRest, Duration: d, Index: idx, Literal: lit}, nil
	}

	if strings.Contains(lit, "+") {
		return parseSharedChord(track, idx, tok)
	}

	at := strings.LastIndexByte(lit, ':')
	if at < 0 {
		if _, ok := ParsePitch(lit); ok {
			return fail(ErrBadDuration)
		}
		return fail(ErrBadPitch)
	}
	pitch, ok := ParsePitch(lit[:at])
	if !ok {
		return fail(ErrBadPitch)
	}
	d, ok := ParseDuration(lit[at+1:])
	if !ok {
		return fail(ErrBadDuration)
	}
	return Event{Kind: EventNote, Pitch: pitch, Duration: d, Index: idx, Literal: lit}, nil
}

// parseSharedChord handles "C3+E3+G3:q": one duration shared by every pitch.
func parseSharedChord(track TrackID, idx int, tok Token) (Event, *ParseError) {
	lit := tok.Text
	fail := func(kind error) (Event, *ParseError) {
		return Event{}, tokenError(kind, track, idx, tok, lit)
	}
	at := strings.LastIndexByte(lit, ':')
	if at < 0 || at == len(lit)-1 {
		return fail(ErrEmptySharedChord)
	}
	parts := strings.Split(lit[:at], "+")
	if strings.Join(parts, "") == "" {
		return fail(ErrEmptySharedChord)
	}
	seen := make(map[Pitch]bool)
	pitches := make([]Pitch, 0, len(parts))
	for _, part := range parts {
		p, ok := ParsePitch(part)
		if !ok {
			return fail(ErrBadPitch)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		pitches = append(pitches, p)
	}
	d, ok := ParseDuration(lit[at+1:])
	if !ok {
		return fail(ErrBadDuration)
	}
	return Event{Kind: EventSharedChord, Pitches: pitches, Duration: d, Index: idx, Literal: lit}, nil
}

// parseChordGroup handles "[Ab3:h C4:h G4:e]". Errors name the inner literal
// that failed, positioned at that literal.
func parseChordGroup(track TrackID, idx int, tok Token) (Event, *ParseError) {
	if len(tok.Inner) == 0 {
		return Event{}, tokenError(ErrMalformedChord, track, idx, tok, tok.Text)
	}
	notes := make([]ChordNote, 0, len(tok.Inner))
	for _, in := range tok.Inner {
		if in.Kind == TokenGroup {
			return Event{}, tokenError(ErrMalformedChord, track, idx, in, in.Text)
		}
		at := strings.LastIndexByte(in.Text, ':')
		if at < 0 || at == len(in.Text)-1 {
			return Event{}, tokenError(ErrMissingChordDuration, track, idx, in, in.Text)
		}
		pitch, ok := ParsePitch(in.Text[:at])
		if !ok {
			return Event{}, tokenError(ErrBadPitch, track, idx, in, in.Text)
		}
		d, ok := ParseDuration(in.Text[at+1:])
		if !ok {
			return Event{}, tokenError(ErrBadDuration, track, idx, in, in.Text)
		}
		notes = append(notes, ChordNote{Pitch: pitch, Duration: d})
	}
	return Event{Kind: EventPerNoteChord, Notes: notes, Index: idx, Literal: tok.Text}, nil
}

func isTrioleWord(s string) bool {
	return strings.EqualFold(s, "triole") || strings.EqualFold(s, "triolé")
}

func isRestWord(s string) bool {
	return s == "R" || s == "r" || strings.EqualFold(s, "rest")
}

func isRestRun(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != 'R' && s[i] != 'r' {
			return false
		}
	}
	return true
}
