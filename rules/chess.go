// Package rules adapts github.com/notnil/chess to the small rules-engine
// capability the replay core needs: parse a record, produce a starting
// position, and apply a move to a position.
//
// Positions are immutable values. Applying a move returns a new position and
// leaves its input untouched, which is what lets the replay cursor derive
// every position as a fold over the move list.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"

	"github.com/jacokyle01/analysis-replay/models"
)

// ErrIllegalMove is returned by Apply when the move is not legal in the
// given position.
var ErrIllegalMove = errors.New("illegal move")

// Position is an immutable board state.
type Position interface {
	// FEN serializes the position.
	FEN() string
	// Draw renders the board as text, white at the bottom.
	Draw() string
	// Turn reports the side to move.
	Turn() models.Side
}

// Engine is the rules capability used by the history builder and cursor.
type Engine interface {
	// Parse decodes a record into its ordered moves and the FEN of the
	// starting position ("" for the standard start).
	Parse(record string) (moves []models.Move, startFEN string, err error)
	// Start returns the starting position; "" means the standard start.
	Start(fen string) (Position, error)
	// Apply plays m on p and returns the resulting position.
	Apply(p Position, m models.Move) (Position, error)
}

// Chess implements Engine with notnil/chess.
type Chess struct{}

// NewChess returns the notnil/chess backed engine.
func NewChess() Chess { return Chess{} }

type position struct {
	pos *chess.Position
}

func (p position) FEN() string { return p.pos.String() }

func (p position) Draw() string { return p.pos.Board().Draw() }

func (p position) Turn() models.Side { return side(p.pos.Turn()) }

func side(c chess.Color) models.Side {
	if c == chess.Black {
		return models.Black
	}
	return models.White
}

// Parse decodes a PGN record. Comments and variations are dropped, and a
// token the decoder skipped fails the whole record.
func (Chess) Parse(record string) (moves []models.Move, startFEN string, err error) {
	defer func() {
		if r := recover(); r != nil {
			moves, startFEN, err = nil, "", fmt.Errorf("pgn decode: %v", r)
		}
	}()

	pgn := SplitPGN(record)
	opt, err := chess.PGN(strings.NewReader(pgn.String()))
	if err != nil {
		return nil, "", err
	}
	game := chess.NewGame(opt)

	if tag := game.GetTagPair("FEN"); tag != nil {
		startFEN = strings.TrimSpace(tag.Value)
	}

	played := game.Moves()
	if err := pgn.CheckDecoded(len(played)); err != nil {
		return nil, "", err
	}
	positions := game.Positions()
	if len(positions) != len(played)+1 {
		return nil, "", fmt.Errorf("pgn produced %d positions for %d moves", len(positions), len(played))
	}

	moves = make([]models.Move, 0, len(played))
	notation := chess.AlgebraicNotation{}
	for i, mv := range played {
		before := positions[i]
		moves = append(moves, models.Move{
			Index:     i,
			From:      mv.S1().String(),
			To:        mv.S2().String(),
			Promotion: mv.Promo().String(),
			Notation:  notation.Encode(before, mv),
			Side:      side(before.Turn()),
		})
	}
	return moves, startFEN, nil
}

// Start returns the standard starting position, or the position described
// by fen.
func (Chess) Start(fen string) (Position, error) {
	if strings.TrimSpace(fen) == "" {
		return position{pos: chess.StartingPosition()}, nil
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("start position: %w", err)
	}
	return position{pos: chess.NewGame(opt).Position()}, nil
}

// Apply finds m among the legal moves of p and plays it.
func (Chess) Apply(p Position, m models.Move) (Position, error) {
	cur, ok := p.(position)
	if !ok {
		return nil, fmt.Errorf("apply %s: position %T not produced by this engine", m.UCI(), p)
	}
	for _, legal := range cur.pos.ValidMoves() {
		if legal.S1().String() != m.From || legal.S2().String() != m.To {
			continue
		}
		if legal.Promo().String() != m.Promotion {
			continue
		}
		return position{pos: cur.pos.Update(legal)}, nil
	}
	return nil, fmt.Errorf("apply %s (%s) in %s: %w", m.Notation, m.UCI(), cur.pos.String(), ErrIllegalMove)
}
