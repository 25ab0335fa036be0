package models

import "time"

// TaskStatus is the wire status of a game analysis task.
type TaskStatus string

const (
	TaskPending TaskStatus = "PENDING"
	TaskStarted TaskStatus = "STARTED"
	TaskSuccess TaskStatus = "SUCCESS"
	TaskFailure TaskStatus = "FAILURE"
	TaskRevoked TaskStatus = "REVOKED"
)

// Terminal reports whether no further status change will follow.
func (s TaskStatus) Terminal() bool {
	return s == TaskSuccess || s == TaskFailure || s == TaskRevoked
}

// Ply describes one played move of a task's game, as the backend saw it.
type Ply struct {
	Number int    `json:"number"` // full move number
	SAN    string `json:"san"`
	UCI    string `json:"uci"`
	Side   Side   `json:"side"`
}

// Task groups the position jobs of one submitted game.
// JobIDs[i] analyzes FENs[i], the position before Plies[i]; the last job
// analyzes the final position.
type Task struct {
	ID        string            `json:"id"`
	JobIDs    []string          `json:"job_ids"`
	FENs      []string          `json:"fens"`
	Plies     []Ply             `json:"plies"`
	Results   map[string]Result `json:"results"`
	Completed int               `json:"completed"`
	Total     int               `json:"total"`
	Started   bool              `json:"started"`
	Failed    string            `json:"failed,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Progress is the completion counter reported with a task status.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// StatusResponse is the payload of GET /task_status/{id}.
type StatusResponse struct {
	TaskID   string          `json:"task_id"`
	Status   TaskStatus      `json:"status"`
	Result   *AnalysisResult `json:"result"`
	Progress Progress        `json:"progress"`
	Error    string          `json:"error,omitempty"`
}

// AnalysisResult is the result object of a successful task.
type AnalysisResult struct {
	Analysis []WireEntry `json:"analysis"`
}

// WireEval is a played-move evaluation from White's point of view.
type WireEval struct {
	Type  string `json:"type"` // "cp" or "mate"
	Value int    `json:"value"`
}

// WireEntry is one element of AnalysisResult.Analysis.
type WireEntry struct {
	MoveIndex      int      `json:"move_index"`
	Move           string   `json:"move"`
	PlayedMoveEval WireEval `json:"played_move_eval"`
	BestMove       string   `json:"best_move,omitempty"`
	AICommentary   string   `json:"ai_commentary,omitempty"`
}
