package viewer

import (
	"context"
	"fmt"
	"log"

	"github.com/jacokyle01/analysis-replay/binding"
	"github.com/jacokyle01/analysis-replay/history"
	"github.com/jacokyle01/analysis-replay/models"
	"github.com/jacokyle01/analysis-replay/replay"
	"github.com/jacokyle01/analysis-replay/rules"
	"github.com/jacokyle01/analysis-replay/session"
)

// Replay is the analysis view: a cursor over the session's game plus the
// analysis bound to it. It is not safe for concurrent use.
type Replay struct {
	history  *history.History
	cursor   *replay.Cursor
	analysis models.AnalysisSet
}

// OpenReplay loads the session and builds the view. A session without a
// record opens as an empty game; one without analysis shows no commentary.
func OpenReplay(ctx context.Context, engine rules.Engine, kv session.KV, sessionID string) (*Replay, error) {
	snap, err := session.Load(ctx, kv, sessionID)
	if err != nil {
		return nil, err
	}
	return NewReplay(engine, snap)
}

// NewReplay builds the view from a loaded snapshot. An analysis longer
// than the game is cut to the game's length.
func NewReplay(engine rules.Engine, snap session.Snapshot) (*Replay, error) {
	h := history.Empty()
	if snap.Record != "" {
		built, err := history.Build(engine, snap.Record)
		if err != nil {
			return nil, err
		}
		h = built
	}

	set := snap.Analysis
	if len(set) > h.Len() {
		log.Printf("replay: analysis has %d entries for %d moves, ignoring the rest", len(set), h.Len())
		set = set[:h.Len()]
	}

	cursor, err := replay.New(engine, h)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	return &Replay{history: h, cursor: cursor, analysis: set}, nil
}

func (r *Replay) Forward() error     { return r.cursor.Forward() }
func (r *Replay) Backward()          { r.cursor.Backward() }
func (r *Replay) JumpTo(n int) error { return r.cursor.JumpTo(n) }
func (r *Replay) Index() int         { return r.cursor.Index() }
func (r *Replay) Len() int           { return r.cursor.Len() }
func (r *Replay) AtStart() bool      { return r.cursor.AtStart() }
func (r *Replay) AtEnd() bool        { return r.cursor.AtEnd() }
func (r *Replay) FEN() string        { return r.cursor.FEN() }
func (r *Replay) Board() string      { return r.cursor.Position().Draw() }

// LastMove returns the move that led to the current position.
func (r *Replay) LastMove() (models.Move, bool) { return r.cursor.LastMove() }

// HasAnalysis reports whether an analysis result was loaded.
func (r *Replay) HasAnalysis() bool { return r.analysis != nil }

// Entry returns the analysis of the current position.
func (r *Replay) Entry() (models.AnalysisEntry, bool) {
	return binding.EntryFor(r.analysis, r.cursor.Index())
}

// Commentary returns the current commentary or binding.NoCommentary.
func (r *Replay) Commentary() string { return binding.Commentary(r.analysis, r.cursor.Index()) }

// Evaluation returns the evaluation bar value in centipawns.
func (r *Replay) Evaluation() int { return binding.Evaluation(r.analysis, r.cursor.Index()) }

// Arrow returns the engine's suggested move for the current position.
func (r *Replay) Arrow() (models.MovePair, bool) { return binding.Arrow(r.analysis, r.cursor.Index()) }

// Rows returns the move table.
func (r *Replay) Rows() []history.Row { return r.history.Rows() }
