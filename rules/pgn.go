package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMovetext is returned when a decoder read fewer or more moves than the
// record's movetext holds, which happens when it silently skips a token it
// does not recognise.
var ErrMovetext = errors.New("unreadable movetext")

// PGN is a record split into its tag pairs and its movetext, with comments
// and variations removed. Both chess decoders crash on a comment that comes
// before the first move, so records go through SplitPGN before decoding.
type PGN struct {
	Tags     []string // each tag pair as written, brackets included
	Movetext string
}

// SplitPGN separates the tag pairs of record from its movetext and drops
// comments, variations and NAGs.
func SplitPGN(record string) PGN {
	var (
		p     PGN
		moves strings.Builder
		tag   strings.Builder
	)
	inTag, inQuote, escaped := false, false, false
	inBrace, inLine := false, false
	depth := 0

	for _, r := range record {
		switch {
		case inTag:
			tag.WriteRune(r)
			switch {
			case escaped:
				escaped = false
			case inQuote && r == '\\':
				escaped = true
			case r == '"':
				inQuote = !inQuote
			case r == ']' && !inQuote:
				inTag = false
				p.Tags = append(p.Tags, tag.String())
				tag.Reset()
			}
		case inBrace:
			if r == '}' {
				inBrace = false
				moves.WriteByte(' ')
			}
		case inLine:
			if r == '\n' {
				inLine = false
				moves.WriteByte('\n')
			}
		case r == '{':
			inBrace = true
		case r == ';':
			inLine = true
		case r == '(':
			depth++
		case r == ')' && depth > 0:
			depth--
			if depth == 0 {
				moves.WriteByte(' ')
			}
		case depth > 0:
		case r == '[':
			inTag = true
			tag.WriteRune(r)
		default:
			moves.WriteRune(r)
		}
	}
	fields := strings.Fields(moves.String())
	kept := fields[:0]
	for _, f := range fields {
		if !strings.HasPrefix(f, "$") {
			kept = append(kept, f)
		}
	}
	p.Movetext = strings.Join(kept, " ")
	return p
}

// String renders the cleaned record for a decoder.
func (p PGN) String() string {
	if len(p.Tags) == 0 {
		return p.Movetext
	}
	return strings.Join(p.Tags, "\n") + "\n\n" + p.Movetext
}

// MoveTokens returns the move tokens of the movetext, without move numbers
// or the game result.
func (p PGN) MoveTokens() []string {
	var tokens []string
	for _, tok := range strings.Fields(p.Movetext) {
		switch tok {
		case "1-0", "0-1", "1/2-1/2", "*":
			continue
		}
		// "12." and "12...Nf6" both carry a move number.
		if rest := strings.TrimLeft(tok, "0123456789"); rest != tok && (rest == "" || rest[0] == '.') {
			tok = strings.TrimLeft(rest, ".")
		}
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// CheckDecoded fails unless a decoder read exactly as many moves as the
// movetext holds.
func (p PGN) CheckDecoded(decoded int) error {
	tokens := p.MoveTokens()
	if len(tokens) == decoded {
		return nil
	}
	if decoded < len(tokens) {
		return fmt.Errorf("%w: read %d of %d moves, stopped near %q", ErrMovetext, decoded, len(tokens), tokens[decoded])
	}
	return fmt.Errorf("%w: read %d moves from %d tokens", ErrMovetext, decoded, len(tokens))
}

// FullMoveNumber reads the sixth FEN field, defaulting to 1. An empty fen
// is the standard start.
func FullMoveNumber(fen string) int {
	fields := strings.Fields(fen)
	if len(fields) < 6 {
		return 1
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil || n < 1 {
		return 1
	}
	return n
}
