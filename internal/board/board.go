package board

import (
	"fmt"
	"strings"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
)

// Kind is a piece kind. The zero value marks an empty square.
type Kind int

const (
	KindNone Kind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var kindLetters = [...]byte{' ', 'P', 'N', 'B', 'R', 'Q', 'K'}

// Letter returns the upper-case FEN letter of the kind
func (k Kind) Letter() byte {
	if k <= KindNone || int(k) >= len(kindLetters) {
		return '?'
	}
	return kindLetters[k]
}

func (k Kind) String() string {
	switch k {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return "none"
	}
}

// Piece is the content of a square; the zero value is an empty square
type Piece struct {
	Color core.Color
	Kind  Kind
}

// Empty is the content of an unoccupied square
var Empty = Piece{}

func (p Piece) IsEmpty() bool {
	return p.Kind == KindNone
}

// FENLetter returns the piece letter, upper case for white, lower for black.
// Empty squares return 0.
func (p Piece) FENLetter() byte {
	if p.IsEmpty() {
		return 0
	}
	l := p.Kind.Letter()
	if p.Color == core.ColorBlack {
		l += 'a' - 'A'
	}
	return l
}

func (p Piece) String() string {
	if p.IsEmpty() {
		return "empty"
	}
	return p.Color.Name() + " " + p.Kind.String()
}

// PieceFromFEN converts a FEN piece letter
func PieceFromFEN(c byte) (Piece, bool) {
	color := core.ColorWhite
	if c >= 'a' && c <= 'z' {
		color = core.ColorBlack
		c -= 'a' - 'A'
	}
	for k := Pawn; k <= King; k++ {
		if kindLetters[k] == c {
			return Piece{Color: color, Kind: k}, true
		}
	}
	return Empty, false
}

// Board is an 8x8 grid indexed [row][col]. Row 0 is rank 8, col 0 is file a.
// Boards are values: assigning or passing one copies the grid.
type Board [8][8]Piece

var backRank = [8]Kind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// New returns the standard starting position
func New() Board {
	var b Board
	for c := 0; c < 8; c++ {
		b[0][c] = Piece{Color: core.ColorBlack, Kind: backRank[c]}
		b[1][c] = Piece{Color: core.ColorBlack, Kind: Pawn}
		b[6][c] = Piece{Color: core.ColorWhite, Kind: Pawn}
		b[7][c] = Piece{Color: core.ColorWhite, Kind: backRank[c]}
	}
	return b
}

// At returns the content of sq, Empty when sq is off the board
func (b Board) At(sq Square) Piece {
	if !sq.Valid() {
		return Empty
	}
	return b[sq.Row][sq.Col]
}

// ToASCII creates an ASCII representation of the board
func (b Board) ToASCII() string {
	var sb strings.Builder
	sb.WriteString("  a b c d e f g h\n")

	for r := 0; r < 8; r++ {
		sb.WriteString(fmt.Sprintf("%d ", 8-r))
		for c := 0; c < 8; c++ {
			if p := b[r][c]; p.IsEmpty() {
				sb.WriteString(". ")
			} else {
				sb.WriteString(fmt.Sprintf("%c ", p.FENLetter()))
			}
		}
		sb.WriteString(fmt.Sprintf(" %d\n", 8-r))
	}
	sb.WriteString("  a b c d e f g h")

	return sb.String()
}
