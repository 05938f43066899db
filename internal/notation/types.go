package notation

type TrackID string

const (
	Left  TrackID = "L"
	Right TrackID = "R"
)

type TokenKind int

const (
	TokenLiteral TokenKind = iota + 1
	TokenGroup
)

// Token is a lexical unit. Group tokens carry their bracketed content already
// split into Inner tokens; Text holds the raw source including brackets.
type Token struct {
	Kind  TokenKind
	Text  string
	Inner []Token
	Line  int
	Col   int
}

type TrackTokens struct {
	ID     TrackID
	Tokens []Token
}

type EventKind int

const (
	EventNote EventKind = iota + 1
	EventRest
	EventSharedChord
	EventPerNoteChord
	EventTriole
)

type ChordNote struct {
	Pitch    Pitch
	Duration Beats
}

type Event struct {
	Kind     EventKind
	Pitch    Pitch
	Pitches  []Pitch
	Notes    []ChordNote
	Duration Beats
	Index    int
	Literal  string
}

// Span is how far the event moves the track cursor.
func (e Event) Span() Beats {
	switch e.Kind {
	case EventPerNoteChord:
		var span Beats
		for _, n := range e.Notes {
			span = MaxBeats(span, n.Duration)
		}
		return span
	case EventTriole:
		return Beats{}
	default:
		return e.Duration
	}
}

func (e Event) IsControl() bool { return e.Kind == EventTriole }

type Track struct {
	ID     TrackID
	Events []Event
}

// Length is the sum of the spans of all events in the track.
func (t Track) Length() Beats {
	var total Beats
	for _, ev := range t.Events {
		total = total.Add(ev.Span())
	}
	return total
}

type Song struct {
	Tracks []Track
}

func (s *Song) Track(id TrackID) (Track, bool) {
	for _, tr := range s.Tracks {
		if tr.ID == id {
			return tr, true
		}
	}
	return Track{}, false
}

// EventCount counts events across all tracks.
func (s *Song) EventCount() int {
	n := 0
	for _, tr := range s.Tracks {
		n += len(tr.Events)
	}
	return n
}
