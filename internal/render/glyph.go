package render

import (
	"github.com/Dzavoy/Discord-Chess-Bot/internal/board"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
)

var pieceGlyphs = map[core.Color][7]string{
	core.ColorWhite: {"", "♙", "♘", "♗", "♖", "♕", "♔"},
	core.ColorBlack: {"", "♟", "♞", "♝", "♜", "♛", "♚"},
}

// glyphs maps every required emoji name to a unicode stand-in
var glyphs = func() map[string]string {
	m := map[string]string{
		Name(board.Empty, true):  "⬜",
		Name(board.Empty, false): "🟫",
	}
	for color, set := range pieceGlyphs {
		for k := board.Pawn; k <= board.King; k++ {
			p := board.Piece{Color: color, Kind: k}
			m[Name(p, true)] = set[k]
			m[Name(p, false)] = set[k]
		}
	}
	return m
}()

// Glyph returns the unicode stand-in for an emoji name, for chats without
// custom emoji
func Glyph(name string) (string, bool) {
	g, ok := glyphs[name]
	return g, ok
}

// WithFallback resolves through r first and falls back to Glyph
func WithFallback(r Resolver) Resolver {
	return func(name string) (string, bool) {
		if token, ok := r(name); ok {
			return token, true
		}
		return Glyph(name)
	}
}
