package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderPad renders a single colored cell
func RenderPad(glyph rune, color [3]uint8) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render(string(glyph))
}

// RenderPadRow renders a row of colored cells with spacing
func RenderPadRow(glyphs []rune, colors [][3]uint8) string {
	var out strings.Builder
	for i, c := range colors {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(RenderPad(glyphs[i], c))
	}
	return out.String()
}

// RenderBar renders a fixed-width bar filled to the given cell count
func RenderBar(filled, width int, fill, empty rune) string {
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat(string(fill), filled) + strings.Repeat(string(empty), width-filled)
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
