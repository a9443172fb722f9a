package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	lowestOctave  = 3
	highestOctave = 5
)

var (
	whiteKeyStyle   = lipgloss.NewStyle().Background(lipgloss.Color("#FFFFFF")).Foreground(lipgloss.Color("#000000"))
	blackKeyStyle   = lipgloss.NewStyle().Background(lipgloss.Color("#000000")).Foreground(lipgloss.Color("#FFFFFF"))
	activeWhiteKey  = lipgloss.NewStyle().Background(lipgloss.Color("#00FF00")).Foreground(lipgloss.Color("#000000"))
	activeBlackKey  = lipgloss.NewStyle().Background(lipgloss.Color("#00AA00")).Foreground(lipgloss.Color("#FFFFFF"))
	whiteKeyOffsets = []int{0, 2, 4, 5, 7, 9, 11}
	// black key after each white key, -1 where there is none (E, B)
	blackKeyOffsets = []int{1, 3, -1, 6, 8, 10, -1}
)

// renderKeyboard draws C3 to B5 with the sounding notes lit.
func renderKeyboard(active map[int]bool) string {
	var top, bottom strings.Builder

	for octave := lowestOctave; octave <= highestOctave; octave++ {
		base := (octave + 1) * 12

		for i, white := range whiteKeyOffsets {
			if off := blackKeyOffsets[i]; off >= 0 {
				if active[base+off] {
					top.WriteString(activeBlackKey.Render("█"))
				} else {
					top.WriteString(blackKeyStyle.Render("█"))
				}
			} else {
				top.WriteString(" ")
			}
			top.WriteString(" ")

			if active[base+white] {
				bottom.WriteString(activeWhiteKey.Render("▓▓"))
			} else {
				bottom.WriteString(whiteKeyStyle.Render("  "))
			}
		}
	}
	return top.String() + "\n" + bottom.String()
}
