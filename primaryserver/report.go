package primaryserver

import (
	"fmt"

	"github.com/jacokyle01/analysis-replay/models"
)

const mateScore = 10000

// Thresholds of centipawn loss for a move, from the mover's side.
const (
	inaccuracyLoss = 50
	mistakeLoss    = 100
	blunderLoss    = 300
)

// buildAnalysis turns a finished task into one entry per ply. Entry i
// carries the evaluation after ply i, the engine's preferred move in the
// position before it, and a short commentary on the difference.
func buildAnalysis(task *models.Task) []models.WireEntry {
	n := len(task.Plies)
	if n == 0 || len(task.JobIDs) != n+1 || len(task.FENs) != n+1 {
		return nil
	}

	evals := make([]models.WireEval, n+1)
	for j := 0; j <= n; j++ {
		evals[j] = whiteEval(task.Results[task.JobIDs[j]], sideToMove(task.Plies, j))
	}

	entries := make([]models.WireEntry, 0, n)
	for i, ply := range task.Plies {
		before := task.Results[task.JobIDs[i]]
		entries = append(entries, models.WireEntry{
			MoveIndex:      i,
			Move:           ply.SAN,
			PlayedMoveEval: evals[i+1],
			BestMove:       before.BestMove,
			AICommentary:   commentary(ply, before, evals[i], evals[i+1], task.FENs[i]),
		})
	}
	return entries
}

// sideToMove returns who moves in position j of a task.
func sideToMove(plies []models.Ply, j int) models.Side {
	if j < len(plies) {
		return plies[j].Side
	}
	return plies[len(plies)-1].Side.Opponent()
}

// whiteEval converts a side-to-move engine score to White's view. A mate
// score of 0 means the side to move is already mated.
func whiteEval(res models.Result, stm models.Side) models.WireEval {
	sign := 1
	if stm == models.Black {
		sign = -1
	}
	if res.Mate != nil {
		if *res.Mate == 0 {
			return models.WireEval{Type: "cp", Value: -sign * mateScore}
		}
		return models.WireEval{Type: "mate", Value: sign * *res.Mate}
	}
	return models.WireEval{Type: "cp", Value: sign * res.Eval}
}

// centipawns maps an evaluation onto one scale, closer mates scoring
// higher.
func centipawns(ev models.WireEval) int {
	if ev.Type != "mate" {
		return ev.Value
	}
	if ev.Value > 0 {
		return mateScore - ev.Value
	}
	return -mateScore - ev.Value
}

func formatEval(ev models.WireEval) string {
	if ev.Type == "mate" {
		return fmt.Sprintf("#%d", ev.Value)
	}
	return fmt.Sprintf("%+.2f", float64(ev.Value)/100)
}

func commentary(ply models.Ply, best models.Result, before, after models.WireEval, fenBefore string) string {
	label := fmt.Sprintf("%d. %s", ply.Number, ply.SAN)
	if ply.Side == models.Black {
		label = fmt.Sprintf("%d... %s", ply.Number, ply.SAN)
	}

	if best.BestMove == "" || best.BestMove == ply.UCI {
		return fmt.Sprintf("%s is the engine's choice (%s).", label, formatEval(after))
	}

	loss := centipawns(before) - centipawns(after)
	if ply.Side == models.Black {
		loss = -loss
	}

	var verdict string
	switch {
	case loss >= blunderLoss:
		verdict = "a blunder"
	case loss >= mistakeLoss:
		verdict = "a mistake"
	case loss >= inaccuracyLoss:
		verdict = "an inaccuracy"
	default:
		return fmt.Sprintf("%s keeps the balance (%s).", label, formatEval(after))
	}
	return fmt.Sprintf("%s is %s (%s → %s). Better was %s.",
		label, verdict, formatEval(before), formatEval(after), sanFor(fenBefore, best.BestMove))
}
