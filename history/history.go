// Package history builds the immutable move list of a game record.
package history

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jacokyle01/analysis-replay/models"
	"github.com/jacokyle01/analysis-replay/rules"
)

// ErrParse matches every *ParseError with errors.Is.
var ErrParse = errors.New("parse record")

// ParseError reports a record that could not be turned into a move list.
type ParseError struct {
	Reason string
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid game record: %s: %v", e.Reason, e.Cause)
	}
	return "invalid game record: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Cause }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// History is the ordered, read-only move list of one record.
type History struct {
	moves    []models.Move
	startFEN string
}

// Build parses record with engine. On failure no History is returned.
func Build(engine rules.Engine, record string) (*History, error) {
	if strings.TrimSpace(record) == "" {
		return nil, &ParseError{Reason: "record is empty"}
	}
	moves, startFEN, err := engine.Parse(strings.TrimSpace(record))
	if err != nil {
		return nil, &ParseError{Reason: "rules engine rejected record", Cause: err}
	}
	for i, m := range moves {
		if m.Index != i {
			return nil, &ParseError{Reason: fmt.Sprintf("move %d carries index %d", i, m.Index)}
		}
	}

	// Replay once so a record the engine parses but cannot replay is
	// rejected here rather than at some later cursor step.
	pos, err := engine.Start(startFEN)
	if err != nil {
		return nil, &ParseError{Reason: "bad starting position", Cause: err}
	}
	for _, m := range moves {
		if pos, err = engine.Apply(pos, m); err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("move %d does not replay", m.Index+1), Cause: err}
		}
	}

	cp := make([]models.Move, len(moves))
	copy(cp, moves)
	return &History{moves: cp, startFEN: startFEN}, nil
}

// Empty returns a history with no moves from the standard start.
func Empty() *History { return &History{} }

// Len returns the number of moves N.
func (h *History) Len() int { return len(h.moves) }

// At returns move i. It panics if i is out of range, like a slice.
func (h *History) At(i int) models.Move { return h.moves[i] }

// StartFEN returns the record's starting FEN, "" for the standard start.
func (h *History) StartFEN() string { return h.startFEN }

// Moves returns a copy of the move list.
func (h *History) Moves() []models.Move {
	cp := make([]models.Move, len(h.moves))
	copy(cp, h.moves)
	return cp
}

// Row is one line of the move table: a move number with White's and
// Black's moves. A missing half is "~".
type Row struct {
	Number     int
	White      string
	Black      string
	WhiteIndex int // cursor index after White's move, 0 if absent
	BlackIndex int // cursor index after Black's move, 0 if absent
}

const missingHalf = "~"

// Rows lays the moves out as a two-column move table numbered from the
// starting position's full-move number. A record starting with Black to
// move gets a "~" in the first White cell.
func (h *History) Rows() []Row {
	var rows []Row
	first := rules.FullMoveNumber(h.startFEN)
	for i, m := range h.moves {
		if m.Side == models.White || len(rows) == 0 {
			rows = append(rows, Row{Number: first + len(rows), White: missingHalf, Black: missingHalf})
		}
		r := &rows[len(rows)-1]
		if m.Side == models.White {
			r.White, r.WhiteIndex = m.Notation, i+1
		} else {
			r.Black, r.BlackIndex = m.Notation, i+1
		}
	}
	return rows
}
