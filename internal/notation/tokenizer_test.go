package notation

import "testing"

func tokenTexts(toks []Token) []string {
	out := make([]string, 0, len(toks))
	for _, tok := range toks {
		out = append(out, tok.Text)
	}
	return out
}

func TestTokenizeDelimiters(t *testing.T) {
	tracks, err := Tokenize("C4:q, D4:q;E4:q|F4:q\tG4:q   A4:q")
	if err != nil {
		t.Fatalf("tokenize failed: %v", err)
	}
	if len(tracks) != 1 || tracks[0].ID != Right {
		t.Fatalf("expected single Right track, got %+v", tracks)
	}
	got := tokenTexts(tracks[0].Tokens)
	want := []string{"C4:q", "D4:q", "E4:q", "F4:q", "G4:q", "A4:q"}
	if len(got) != len(want) {
		t.Fatalf("tokens = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tokens = %q, want %q", got, want)
		}
	}
}

func TestTokenizeBracketGroupKeepsDelimiters(t *testing.T) {
	tracks, err := Tokenize("C4:q [Ab3:h, C4:h | G4:e] D4:q")
	if err != nil {
		t.Fatalf("tokenize failed: %v", err)
	}
	toks := tracks[0].Tokens
	if len(toks) != 3 {
		t.Fatalf("expected 3 tokens, got %q", tokenTexts(toks))
	}
	g := toks[1]
	if g.Kind != TokenGroup || g.Text != "[Ab3:h, C4:h | G4:e]" {
		t.Fatalf("unexpected group token %+v", g)
	}
	if inner := tokenTexts(g.Inner); len(inner) != 3 || inner[0] != "Ab3:h" || inner[2] != "G4:e" {
		t.Fatalf("unexpected inner tokens %q", inner)
	}
	if g.Col != 6 || g.Inner[0].Col != 7 {
		t.Fatalf("unexpected columns group=%d inner=%d", g.Col, g.Inner[0].Col)
	}
}

func TestTokenizeGroupAdjacentToLiteral(t *testing.T) {
	tracks, err := Tokenize("C4:q[E4:q G4:q]D4:q")
	if err != nil {
		t.Fatalf("tokenize failed: %v", err)
	}
	got := tokenTexts(tracks[0].Tokens)
	if len(got) != 3 || got[0] != "C4:q" || got[1] != "[E4:q G4:q]" || got[2] != "D4:q" {
		t.Fatalf("unexpected tokens %q", got)
	}
}

func TestTokenizeNestedBrackets(t *testing.T) {
	tracks, err := Tokenize("[C4:q [E4:q]]")
	if err != nil {
		t.Fatalf("tokenize failed: %v", err)
	}
	g := tracks[0].Tokens[0]
	if len(g.Inner) != 2 || g.Inner[1].Kind != TokenGroup {
		t.Fatalf("expected nested group, got %+v", g.Inner)
	}
}

func TestTokenizeLabelsSwitchTrackPerLine(t *testing.T) {
	text := "R: C4:q D4:q\nl: C2:h\nE4:q\nR: F4:q"
	tracks, err := Tokenize(text)
	if err != nil {
		t.Fatalf("tokenize failed: %v", err)
	}
	if len(tracks) != 2 || tracks[0].ID != Right || tracks[1].ID != Left {
		t.Fatalf("unexpected tracks %+v", tracks)
	}
	right := tokenTexts(tracks[0].Tokens)
	if len(right) != 4 || right[2] != "E4:q" || right[3] != "F4:q" {
		t.Fatalf("unexpected right tokens %q", right)
	}
	if left := tokenTexts(tracks[1].Tokens); len(left) != 1 || left[0] != "C2:h" {
		t.Fatalf("unexpected left tokens %q", left)
	}
}

func TestTokenizeSkipsCommentsAndBlankLines(t *testing.T) {
	tracks, err := Tokenize("# intro\n\n   \nC4:q\n  # indented comment\nD4:q\r\n")
	if err != nil {
		t.Fatalf("tokenize failed: %v", err)
	}
	got := tokenTexts(tracks[0].Tokens)
	if len(got) != 2 || got[1] != "D4:q" {
		t.Fatalf("unexpected tokens %q", got)
	}
	if tracks[0].Tokens[1].Line != 6 {
		t.Fatalf("line = %d, want 6", tracks[0].Tokens[1].Line)
	}
}

func TestTokenizeEmptyInput(t *testing.T) {
	tracks, err := Tokenize("")
	if err != nil {
		t.Fatalf("tokenize failed: %v", err)
	}
	if len(tracks) != 0 {
		t.Fatalf("expected no tracks, got %d", len(tracks))
	}
}

func TestTokenizeBracketDoesNotSpanLines(t *testing.T) {
	_, err := Tokenize("[C4:q\nE4:q]")
	pe, ok := err.(*ParseError)
	if !ok || pe.Kind != ErrMalformedChord {
		t.Fatalf("expected malformed chord error, got %v", err)
	}
}
