package models

// Result represents the engine output for one position.
// Eval and Mate are relative to the side to move, as UCI reports them.
type Result struct {
	JobID     string `json:"job_id"`
	BestMove  string `json:"best_move"`
	Eval      int    `json:"eval"` // centipawns
	Mate      *int   `json:"mate,omitempty"`
	Depth     int    `json:"depth"`
	Nodes     int64  `json:"nodes"`
	NodesPerS int64  `json:"nodes_per_s"`
	PV        string `json:"pv"` // principal variation
	Time      int    `json:"time_ms"`
	Error     string `json:"error,omitempty"`
}
