// Package replay steps a position cursor through a fixed move history.
//
// The cursor never mutates a shared board. It keeps the positions of the
// current move prefix, stack[0] being the start and stack[i] the result of
// applying moves [0, i). The stack always has Index()+1 entries, so the
// visible position is a pure function of the index.
//
// A Cursor is owned by one consumer and is not safe for concurrent use.
package replay

import (
	"errors"
	"fmt"

	"github.com/jacokyle01/analysis-replay/history"
	"github.com/jacokyle01/analysis-replay/models"
	"github.com/jacokyle01/analysis-replay/rules"
)

// ErrInvalidIndex matches every *InvalidIndexError with errors.Is.
var ErrInvalidIndex = errors.New("invalid move index")

// InvalidIndexError is returned by JumpTo for a target outside [0, N].
type InvalidIndexError struct {
	Index int
	Len   int
}

func (e *InvalidIndexError) Error() string {
	return fmt.Sprintf("jump to move %d: outside [0, %d]", e.Index, e.Len)
}

func (e *InvalidIndexError) Is(target error) bool { return target == ErrInvalidIndex }

// Cursor is the replay position over a history.
type Cursor struct {
	engine  rules.Engine
	history *history.History
	start   rules.Position
	stack   []rules.Position
}

// New returns a cursor at index 0.
func New(engine rules.Engine, h *history.History) (*Cursor, error) {
	if h == nil {
		h = history.Empty()
	}
	start, err := engine.Start(h.StartFEN())
	if err != nil {
		return nil, fmt.Errorf("new cursor: %w", err)
	}
	return &Cursor{
		engine:  engine,
		history: h,
		start:   start,
		stack:   []rules.Position{start},
	}, nil
}

// Index returns how many moves have been played.
func (c *Cursor) Index() int { return len(c.stack) - 1 }

// Len returns the number of moves N.
func (c *Cursor) Len() int { return c.history.Len() }

// AtStart reports whether Index() == 0.
func (c *Cursor) AtStart() bool { return c.Index() == 0 }

// AtEnd reports whether Index() == Len().
func (c *Cursor) AtEnd() bool { return c.Index() == c.Len() }

// Position returns the position after Index() moves.
func (c *Cursor) Position() rules.Position { return c.stack[len(c.stack)-1] }

// FEN serializes Position().
func (c *Cursor) FEN() string { return c.Position().FEN() }

// LastMove returns the most recently played move, if any.
func (c *Cursor) LastMove() (models.Move, bool) {
	if c.AtStart() {
		return models.Move{}, false
	}
	return c.history.At(c.Index() - 1), true
}

// Forward plays the next move. At the end of the game it does nothing.
func (c *Cursor) Forward() error {
	if c.AtEnd() {
		return nil
	}
	next, err := c.engine.Apply(c.Position(), c.history.At(c.Index()))
	if err != nil {
		return fmt.Errorf("forward: %w", err)
	}
	c.stack = append(c.stack, next)
	return nil
}

// Backward takes back the last move. At the start it does nothing.
func (c *Cursor) Backward() {
	if c.AtStart() {
		return
	}
	c.stack[len(c.stack)-1] = nil
	c.stack = c.stack[:len(c.stack)-1]
}

// JumpTo resets to the starting position and replays moves [0, n).
// An n outside [0, Len()] leaves the cursor unchanged.
func (c *Cursor) JumpTo(n int) error {
	if n < 0 || n > c.Len() {
		return &InvalidIndexError{Index: n, Len: c.Len()}
	}
	stack, err := fold(c.engine, c.start, c.history, n)
	if err != nil {
		return fmt.Errorf("jump to move %d: %w", n, err)
	}
	c.stack = stack
	return nil
}

// fold applies moves [0, n) to start and returns every intermediate
// position.
func fold(engine rules.Engine, start rules.Position, h *history.History, n int) ([]rules.Position, error) {
	stack := make([]rules.Position, 1, n+1)
	stack[0] = start
	pos := start
	for i := 0; i < n; i++ {
		next, err := engine.Apply(pos, h.At(i))
		if err != nil {
			return nil, err
		}
		stack = append(stack, next)
		pos = next
	}
	return stack, nil
}
