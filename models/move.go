package models

// Side identifies which player made a move. White moves first.
type Side string

const (
	White Side = "white"
	Black Side = "black"
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

// Move is one played move of a game record. Moves are produced by the
// history builder and never modified afterwards.
type Move struct {
	Index     int    `json:"index"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"` // "q", "r", "b", "n" or empty
	Notation  string `json:"notation"`           // SAN, e.g. "Nf3" or "O-O"
	Side      Side   `json:"side"`
}

// UCI returns the move in long algebraic form, e.g. "e7e8q".
func (m Move) UCI() string {
	return m.From + m.To + m.Promotion
}
