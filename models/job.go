package models

// PositionJob is a single position handed to a worker.
// A game submitted for analysis fans out into one PositionJob per ply plus
// the starting position.
type PositionJob struct {
	ID       string `json:"id"`
	TaskID   string `json:"task_id,omitempty"`
	Ply      int    `json:"ply"`
	FEN      string `json:"fen"`
	Depth    int    `json:"depth"`
	TimeMS   int    `json:"time_ms"`
	Priority int    `json:"priority"`
}
