package core

import "fmt"

// Color identifies a side. The zero value is no side and marks empty squares.
type Color int

const (
	ColorNone Color = iota
	ColorWhite
	ColorBlack
)

// String returns the FEN side letter
func (c Color) String() string {
	switch c {
	case ColorWhite:
		return "w"
	case ColorBlack:
		return "b"
	default:
		return "-"
	}
}

// Name returns the lower-case English name used in chat replies
func (c Color) Name() string {
	switch c {
	case ColorWhite:
		return "white"
	case ColorBlack:
		return "black"
	default:
		return "none"
	}
}

func OppositeColor(c Color) Color {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}

// ParseColor accepts "w", "b", "white" or "black"
func ParseColor(s string) (Color, error) {
	switch s {
	case "w", "white":
		return ColorWhite, nil
	case "b", "black":
		return ColorBlack, nil
	default:
		return ColorNone, fmt.Errorf("unknown color %q", s)
	}
}
