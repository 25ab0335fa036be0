package models

import "strings"

// MovePair is a from/to square pair such as a suggested move.
type MovePair struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// ParseMovePair splits a UCI move string ("g1f3", "e7e8q"). Anything else,
// including the engine's "(none)", is rejected.
func ParseMovePair(uci string) (MovePair, bool) {
	if len(uci) < 4 || len(uci) > 5 || !isSquare(uci[0:2]) || !isSquare(uci[2:4]) {
		return MovePair{}, false
	}
	if len(uci) == 5 && !strings.ContainsRune("qrbn", rune(uci[4])) {
		return MovePair{}, false
	}
	return MovePair{From: uci[0:2], To: uci[2:4], Promotion: uci[4:]}, true
}

func isSquare(s string) bool {
	return s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

// AnalysisEntry describes the position after the move at MoveIndex.
// Evaluations are from White's point of view. At most one of
// EvaluationCentipawns and MateIn is set.
type AnalysisEntry struct {
	MoveIndex            int       `json:"move_index"`
	EvaluationCentipawns *int      `json:"evaluation_centipawns"`
	MateIn               *int      `json:"mate_in"`
	SuggestedMove        *MovePair `json:"suggested_move"`
	Commentary           *string   `json:"commentary"`
}

// AnalysisSet is index-aligned with a move history: entry i describes the
// position after move i. It may be shorter than the history.
type AnalysisSet []AnalysisEntry
