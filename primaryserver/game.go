package primaryserver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/corentings/chess"

	"github.com/jacokyle01/analysis-replay/models"
	"github.com/jacokyle01/analysis-replay/rules"
)

var errNoMoves = errors.New("game has no moves")

// expandGame parses a PGN into the FEN of every position, start included,
// and the plies between them: fens[i] is the position before plies[i].
func expandGame(pgn string) (fens []string, plies []models.Ply, err error) {
	defer func() {
		if r := recover(); r != nil {
			fens, plies, err = nil, nil, fmt.Errorf("pgn decode: %v", r)
		}
	}()

	record := rules.SplitPGN(pgn)
	opt, err := chess.PGN(strings.NewReader(record.String()))
	if err != nil {
		return nil, nil, err
	}
	game := chess.NewGame(opt)

	moves := game.Moves()
	if err := record.CheckDecoded(len(moves)); err != nil {
		return nil, nil, err
	}
	positions := game.Positions()
	if len(moves) == 0 {
		return nil, nil, errNoMoves
	}
	if len(positions) != len(moves)+1 {
		return nil, nil, fmt.Errorf("pgn produced %d positions for %d moves", len(positions), len(moves))
	}

	for i, mv := range moves {
		pos := positions[i]
		plies = append(plies, models.Ply{
			Number: rules.FullMoveNumber(pos.String()),
			SAN:    chess.AlgebraicNotation{}.Encode(pos, mv),
			UCI:    chess.UCINotation{}.Encode(pos, mv),
			Side:   colorSide(pos.Turn()),
		})
	}
	for _, pos := range positions {
		fens = append(fens, pos.String())
	}
	return fens, plies, nil
}

func colorSide(c chess.Color) models.Side {
	if c == chess.Black {
		return models.Black
	}
	return models.White
}

// sanFor renders a UCI move in SAN for the position fen. It falls back to
// the UCI text if the move does not decode.
func sanFor(fen, uci string) string {
	opt, err := chess.FEN(fen)
	if err != nil {
		return uci
	}
	pos := chess.NewGame(opt).Position()
	mv, err := chess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return uci
	}
	return chess.AlgebraicNotation{}.Encode(pos, mv)
}
