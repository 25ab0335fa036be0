// Package binding aligns a replay cursor index with its analysis entry.
//
// Entry i of an analysis set describes the position after move i, so the
// entry for cursor index n is set[n-1]. Index 0 has no entry. Every lookup
// here is pure and tolerates sets shorter than the move history.
package binding

import "github.com/jacokyle01/analysis-replay/models"

// NoCommentary is shown when no analysis entry applies.
const NoCommentary = "No commentary available."

// MateScore is the centipawn value an evaluation bar shows for a forced
// mate.
const MateScore = 10000

// EntryFor returns the entry for the cursor index, or false when there is
// none (index 0, index past the set, or a negative index).
func EntryFor(set models.AnalysisSet, index int) (models.AnalysisEntry, bool) {
	if index <= 0 || index > len(set) {
		return models.AnalysisEntry{}, false
	}
	return set[index-1], true
}

// Commentary returns the entry's commentary or NoCommentary.
func Commentary(set models.AnalysisSet, index int) string {
	e, ok := EntryFor(set, index)
	if !ok || e.Commentary == nil || *e.Commentary == "" {
		return NoCommentary
	}
	return *e.Commentary
}

// Evaluation returns the White-relative score for the evaluation bar.
// Mates saturate to ±MateScore and a missing entry reads as 0.
func Evaluation(set models.AnalysisSet, index int) int {
	e, ok := EntryFor(set, index)
	if !ok {
		return 0
	}
	switch {
	case e.MateIn != nil && *e.MateIn > 0:
		return MateScore
	case e.MateIn != nil && *e.MateIn < 0:
		return -MateScore
	case e.EvaluationCentipawns != nil:
		return *e.EvaluationCentipawns
	}
	return 0
}

// Arrow returns the suggested move for the cursor index.
func Arrow(set models.AnalysisSet, index int) (models.MovePair, bool) {
	e, ok := EntryFor(set, index)
	if !ok || e.SuggestedMove == nil {
		return models.MovePair{}, false
	}
	return *e.SuggestedMove, true
}
