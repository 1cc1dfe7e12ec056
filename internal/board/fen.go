package board

import (
	"fmt"
	"strings"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
)

// StartingFEN is the starting position as produced by SerializePosition.
// Castling, en passant and clocks are not tracked, so those fields are fixed.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w - - 0 1"

const fixedFields = "- - 0 1"

// SerializePosition encodes the board and side to move as FEN
func SerializePosition(b Board, side core.Color) string {
	var sb strings.Builder
	for r := 0; r < 8; r++ {
		if r > 0 {
			sb.WriteByte('/')
		}
		empty := 0
		for c := 0; c < 8; c++ {
			p := b[r][c]
			if p.IsEmpty() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(p.FENLetter())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
	}

	sb.WriteByte(' ')
	sb.WriteString(side.String())
	sb.WriteByte(' ')
	sb.WriteString(fixedFields)
	return sb.String()
}

// ParseFEN decodes the placement and side-to-move fields of a FEN string.
// Remaining fields are accepted but ignored.
func ParseFEN(fen string) (Board, core.Color, error) {
	var b Board

	parts := strings.Fields(fen)
	if len(parts) < 2 {
		return b, core.ColorNone, fmt.Errorf("expected at least 2 fields, got %d: %w", len(parts), core.ErrInvalidFEN)
	}

	ranks := strings.Split(parts[0], "/")
	if len(ranks) != 8 {
		return b, core.ColorNone, fmt.Errorf("expected 8 ranks, got %d: %w", len(ranks), core.ErrInvalidFEN)
	}

	for r := 0; r < 8; r++ {
		file := 0
		for i := 0; i < len(ranks[r]); i++ {
			ch := ranks[r][i]
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
				continue
			}
			p, ok := PieceFromFEN(ch)
			if !ok {
				return b, core.ColorNone, fmt.Errorf("bad piece letter %q: %w", ch, core.ErrInvalidFEN)
			}
			if file >= 8 {
				return b, core.ColorNone, fmt.Errorf("too many pieces in rank %d: %w", 8-r, core.ErrInvalidFEN)
			}
			b[r][file] = p
			file++
		}
		if file != 8 {
			return b, core.ColorNone, fmt.Errorf("rank %d has %d files: %w", 8-r, file, core.ErrInvalidFEN)
		}
	}

	var side core.Color
	switch parts[1] {
	case "w":
		side = core.ColorWhite
	case "b":
		side = core.ColorBlack
	default:
		return b, core.ColorNone, fmt.Errorf("turn must be 'w' or 'b': %w", core.ErrInvalidFEN)
	}

	return b, side, nil
}

// ParseEngineMove parses an engine reply such as "e2e4" or "e7e8q".
// A fifth character (the promotion piece) is ignored.
func ParseEngineMove(s string) (Move, error) {
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("%q: expected 4 or 5 characters: %w", s, core.ErrMalformedMove)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return Move{}, fmt.Errorf("%q: source: %w", s, core.ErrMalformedMove)
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return Move{}, fmt.Errorf("%q: destination: %w", s, core.ErrMalformedMove)
	}

	return Move{From: from, To: to}, nil
}
