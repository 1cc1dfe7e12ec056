package board

import (
	"fmt"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
)

// Move is a source/destination pair. Captures, checks and promotions are not modelled.
type Move struct {
	From, To Square
}

// String returns the coordinate form used by UCI engines, e.g. "e2e4"
func (m Move) String() string {
	return m.From.String() + m.To.String()
}

// Apply returns a copy of b with the content of from moved to to.
// Whatever stood on to is lost. b itself is not modified.
func Apply(b Board, from, to Square) (Board, error) {
	if !from.Valid() {
		return b, fmt.Errorf("source %s: %w", from, core.ErrInvalidCoordinate)
	}
	if !to.Valid() {
		return b, fmt.Errorf("destination %s: %w", to, core.ErrInvalidCoordinate)
	}
	if from == to {
		return b, fmt.Errorf("source and destination are both %s: %w", from, core.ErrIllegalMove)
	}
	if b.At(from).IsEmpty() {
		return b, fmt.Errorf("no piece at %s: %w", from, core.ErrIllegalMove)
	}

	b[to.Row][to.Col] = b[from.Row][from.Col]
	b[from.Row][from.Col] = Empty
	return b, nil
}

// CheckTurn fails unless the piece on from belongs to side
func CheckTurn(b Board, from Square, side core.Color) error {
	if !from.Valid() {
		return fmt.Errorf("source %s: %w", from, core.ErrInvalidCoordinate)
	}
	p := b.At(from)
	if p.IsEmpty() {
		return fmt.Errorf("no piece at %s: %w", from, core.ErrIllegalMove)
	}
	if p.Color != side {
		return fmt.Errorf("not your turn (%s's move): %w", side.Name(), core.ErrIllegalMove)
	}
	return nil
}

// ApplyPlayerMove validates a human move given in square notation and applies it.
// The side to move is left to the caller.
func ApplyPlayerMove(b Board, src, dst string, side core.Color) (Board, Move, error) {
	from, err := ParseSquare(src)
	if err != nil {
		return b, Move{}, err
	}
	to, err := ParseSquare(dst)
	if err != nil {
		return b, Move{}, err
	}

	if err = CheckTurn(b, from, side); err != nil {
		return b, Move{}, err
	}

	next, err := Apply(b, from, to)
	if err != nil {
		return b, Move{}, err
	}
	return next, Move{From: from, To: to}, nil
}
