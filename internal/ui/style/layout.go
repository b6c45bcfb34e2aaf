package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Chrome lines around the content: header, breadcrumb, tab or progress
// line, status line and key hints.
const (
	HeaderLines = 3
	FooterLines = 2
)

// Layout splits the terminal between the chrome and the list.
type Layout struct {
	Width  int
	Height int
}

func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentHeight returns the rows left for the list or treemap.
func (l Layout) ContentHeight() int {
	return max(l.Height-HeaderLines-FooterLines, 1)
}

// ContentWidth never drops below what one row needs to stay legible.
func (l Layout) ContentWidth() int {
	return max(l.Width, 20)
}

// BarWidth returns the width of the size bar in a row.
func (l Layout) BarWidth() int {
	return min(max(l.ContentWidth()-l.rowOverhead(), 5), 40)
}

// NameWidth returns what is left for the name column.
func (l Layout) NameWidth() int {
	return max(l.ContentWidth()-l.rowOverhead()-l.BarWidth(), 8)
}

// ContentRow maps a screen line to a list row, or -1 outside the list.
func (l Layout) ContentRow(y int) int {
	row := y - HeaderLines
	if row < 0 || row >= l.ContentHeight() {
		return -1
	}
	return row
}

// rowOverhead is the fixed part of a tree row:
// cursor(2) + pct(6) + " ["(2) + bar + "] "(2) + glyph(1) + " "(1) + name + " "(1) + size(10)
func (l Layout) rowOverhead() int {
	return 25
}

// FullWidth pads s with spaces to width cells. Wider strings are returned
// unchanged.
func FullWidth(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
