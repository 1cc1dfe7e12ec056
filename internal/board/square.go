package board

import (
	"fmt"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
)

// Square is a grid coordinate
type Square struct {
	Row, Col int
}

func (s Square) Valid() bool {
	return s.Row >= 0 && s.Row < 8 && s.Col >= 0 && s.Col < 8
}

// File returns the file letter a..h
func (s Square) File() byte {
	return byte('a' + s.Col)
}

// Rank returns the rank number 1..8
func (s Square) Rank() int {
	return 8 - s.Row
}

func (s Square) String() string {
	if !s.Valid() {
		return fmt.Sprintf("(%d,%d)", s.Row, s.Col)
	}
	return fmt.Sprintf("%c%d", s.File(), s.Rank())
}

// Light reports whether the square is a light square (a1 is dark)
func (s Square) Light() bool {
	return (s.Row+s.Col)%2 == 0
}

// SquareAt converts a file letter (either case) and rank number to a grid coordinate
func SquareAt(file byte, rank int) (Square, error) {
	if file >= 'A' && file <= 'H' {
		file += 'a' - 'A'
	}
	if file < 'a' || file > 'h' {
		return Square{}, fmt.Errorf("bad file %q: %w", file, core.ErrInvalidCoordinate)
	}
	if rank < 1 || rank > 8 {
		return Square{}, fmt.Errorf("bad rank %d: %w", rank, core.ErrInvalidCoordinate)
	}
	return Square{Row: 8 - rank, Col: int(file - 'a')}, nil
}

// ParseSquare parses human notation such as "e2" or "E2"
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return Square{}, fmt.Errorf("bad square %q: %w", s, core.ErrInvalidCoordinate)
	}
	if s[1] < '0' || s[1] > '9' {
		return Square{}, fmt.Errorf("bad rank %q: %w", s[1], core.ErrInvalidCoordinate)
	}
	return SquareAt(s[0], int(s[1]-'0'))
}
