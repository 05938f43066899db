package notation

import "strings"

// Tokenize splits text into per-track token sequences. Tracks are returned in
// order of first appearance; unlabeled lines belong to the Right track.
func Tokenize(text string) ([]TrackTokens, error) {
	return tokenize(text, Right, "#")
}

func tokenize(text string, defaultTrack TrackID, commentPrefix string) ([]TrackTokens, error) {
	var tracks []TrackTokens
	slot := map[TrackID]int{}
	for n, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, "\r")
		body := strings.TrimLeft(line, " \t")
		if body == "" || (commentPrefix != "" && strings.HasPrefix(body, commentPrefix)) {
			continue
		}
		col := len(line) - len(body)
		track := defaultTrack
		if id, ok := trackLabel(body); ok {
			track = id
			body = body[2:]
			col += 2
		}
		i, ok := slot[track]
		if !ok {
			i = len(tracks)
			slot[track] = i
			tracks = append(tracks, TrackTokens{ID: track})
		}
		toks, err := scanTokens(body, n+1, col+1, track, len(tracks[i].Tokens))
		if err != nil {
			return nil, err
		}
		tracks[i].Tokens = append(tracks[i].Tokens, toks...)
	}
	return tracks, nil
}

// trackLabel recognises "L:" / "R:" (either case) at the start of a line.
func trackLabel(s string) (TrackID, bool) {
	if len(s) < 2 || s[1] != ':' {
		return "", false
	}
	switch lower(s[0]) {
	case 'l':
		return Left, true
	case 'r':
		return Right, true
	}
	return "", false
}

func scanTokens(s string, line, colBase int, track TrackID, firstIndex int) ([]Token, error) {
	toks := make([]Token, 0, 16)
	i := 0
	for i < len(s) {
		ch := s[i]
		switch {
		case isDelimiter(ch):
			i++
		case ch == '[':
			end := matchBracket(s, i)
			if end < 0 {
				return nil, &ParseError{
					Kind:    ErrMalformedChord,
					Track:   track,
					Index:   firstIndex + len(toks),
					Literal: strings.TrimSpace(s[i:]),
					Line:    line,
					Col:     colBase + i,
				}
			}
			inner, err := scanTokens(s[i+1:end], line, colBase+i+1, track, 0)
			if err != nil {
				return nil, err
			}
			toks = append(toks, Token{Kind: TokenGroup, Text: s[i : end+1], Inner: inner, Line: line, Col: colBase + i})
			i = end + 1
		default:
			start := i
			for i < len(s) && !isDelimiter(s[i]) && s[i] != '[' {
				i++
			}
			toks = append(toks, Token{Kind: TokenLiteral, Text: s[start:i], Line: line, Col: colBase + start})
		}
	}
	return toks, nil
}

// matchBracket returns the index of the ']' closing the '[' at open, or -1.
func matchBracket(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isDelimiter(b byte) bool {
	return b == ' ' || b == '\t' || b == ',' || b == ';' || b == '|' || b == '\r' || b == '\n'
}
