// Package render turns boards into chat text. Emoji names are derived from
// squares and never parsed back.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/board"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
)

// Square background suffixes
const (
	LightSquare = "wbg"
	DarkSquare  = "bbg"
)

// Border glyphs. Regional indicators are separated by a zero-width space so
// chat clients do not merge neighbours into flags.
var (
	rankLabels = [8]string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣"}
	fileLabels = [8]string{"🇦", "🇧", "🇨", "🇩", "🇪", "🇫", "🇬", "🇭"}
	corner     = "⬛"
)

const zeroWidthSpace = "\u200b"

// Resolver maps an emoji name to its display token
type Resolver func(name string) (string, bool)

// Name returns the emoji name for a piece standing on a light or dark square,
// e.g. "wpwbg" for a white pawn on a light square and "bbg" for an empty dark square.
func Name(p board.Piece, light bool) string {
	bg := DarkSquare
	if light {
		bg = LightSquare
	}
	if p.IsEmpty() {
		return bg
	}
	return p.Color.String() + strings.ToLower(string(p.Kind.Letter())) + bg
}

// SquareName returns the emoji name of a square on b
func SquareName(b board.Board, sq board.Square) string {
	return Name(b.At(sq), sq.Light())
}

// RequiredNames lists every emoji name a board can need, sorted
func RequiredNames() []string {
	var names []string
	for _, light := range []bool{true, false} {
		names = append(names, Name(board.Empty, light))
		for _, color := range []core.Color{core.ColorWhite, core.ColorBlack} {
			for k := board.Pawn; k <= board.King; k++ {
				names = append(names, Name(board.Piece{Color: color, Kind: k}, light))
			}
		}
	}
	sort.Strings(names)
	return names
}

// Missing returns the required names the resolver cannot resolve
func Missing(resolve Resolver) []string {
	var missing []string
	for _, name := range RequiredNames() {
		if _, ok := resolve(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Lines renders the board rank 8 first, one string per rank. With border, each
// rank is prefixed by its number and a file-letter line is appended.
func Lines(b board.Board, resolve Resolver, border bool) ([]string, error) {
	lines := make([]string, 0, 9)
	var missing []string

	for r := 0; r < 8; r++ {
		var sb strings.Builder
		if border {
			sb.WriteString(rankLabels[7-r])
		}
		for c := 0; c < 8; c++ {
			name := SquareName(b, board.Square{Row: r, Col: c})
			token, ok := resolve(name)
			if !ok {
				missing = append(missing, name)
				continue
			}
			sb.WriteString(token)
		}
		lines = append(lines, sb.String())
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: %w", strings.Join(dedupe(missing), ", "), core.ErrMissingEmoji)
	}

	if border {
		lines = append(lines, corner+strings.Join(fileLabels[:], zeroWidthSpace))
	}
	return lines, nil
}

// Text renders the whole board as one message
func Text(b board.Board, resolve Resolver, border bool) (string, error) {
	lines, err := Lines(b, resolve, border)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// Raw dumps the emoji names row by row
func Raw(b board.Board) string {
	var sb strings.Builder
	sb.WriteString("Current Board:")
	for r := 0; r < 8; r++ {
		names := make([]string, 8)
		for c := 0; c < 8; c++ {
			names[c] = SquareName(b, board.Square{Row: r, Col: c})
		}
		sb.WriteString("\n[")
		sb.WriteString(strings.Join(names, ", "))
		sb.WriteString("]")
	}
	return sb.String()
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
