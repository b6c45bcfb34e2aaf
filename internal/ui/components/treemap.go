package components

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/duscope/internal/nav"
	"github.com/sadopc/duscope/internal/ui/style"
	"github.com/sadopc/duscope/internal/util"
)

type rect struct {
	x, y, w, h int
}

type treemapItem struct {
	item  *nav.Item
	size  int64
	color lipgloss.Color
}

// RenderTreemap lays the current directory's rows out as nested
// rectangles proportional to their displayed size. Colors follow the
// entry kind; anything not yet Done is drawn in the warning color.
func RenderTreemap(theme style.Theme, rows []nav.Item, width, height int) string {
	if height <= 0 || width <= 0 {
		return ""
	}

	var items []treemapItem
	var total int64
	for i := range rows {
		r := &rows[i]
		if r.Size <= 0 {
			continue
		}
		items = append(items, treemapItem{item: r, size: r.Size, color: theme.KindColor(r.Kind, r.State)})
		total += r.Size
	}
	if len(items) == 0 {
		msg := "  (empty directory)"
		if len(rows) > 0 {
			msg = "  (no entries with size)"
		}
		return theme.MutedText.Render(msg)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].size > items[j].size })

	// Small rectangles are unreadable; fold the tail into one block.
	maxItems := max((width*height)/8, 5)
	if len(items) > maxItems {
		var rest int64
		for _, it := range items[maxItems-1:] {
			rest += it.size
		}
		items = append(items[:maxItems-1], treemapItem{size: rest, color: theme.Muted})
	}

	grid := make([][]rune, height)
	colors := make([][]lipgloss.Color, height)
	for y := range grid {
		grid[y] = make([]rune, width)
		colors[y] = make([]lipgloss.Color, width)
		for x := range grid[y] {
			grid[y][x] = ' '
			colors[y][x] = theme.BgDark
		}
	}

	for i, r := range squarify(items, total, rect{0, 0, width, height}) {
		if r.w <= 0 || r.h <= 0 {
			continue
		}
		fillRect(grid, colors, r, items[i].color)
		drawBorder(grid, r)
		placeLabel(grid, r, treemapLabel(items[i]))
	}

	cell := lipgloss.NewStyle().Foreground(theme.TextPrimary)
	lines := make([]string, height)
	for y := range grid {
		var line strings.Builder
		for x, ch := range grid[y] {
			if ch == ' ' {
				line.WriteString(lipgloss.NewStyle().Background(colors[y][x]).Render(" "))
			} else {
				line.WriteString(cell.Render(string(ch)))
			}
		}
		lines[y] = line.String()
	}
	return strings.Join(lines, "\n")
}

func treemapLabel(it treemapItem) string {
	if it.item == nil {
		return fmt.Sprintf("other (%s)", util.FormatSize(it.size))
	}
	name := it.item.Name
	if it.item.IsDir() {
		name += "/"
	}
	return name + " " + util.FormatSize(it.size)
}

// squarify splits bounds among items, which must be sorted largest first.
func squarify(items []treemapItem, total int64, bounds rect) []rect {
	out := make([]rect, len(items))
	if len(items) > 0 {
		split(items, out, 0, len(items), total, bounds)
	}
	return out
}

// split cuts bounds along its longer side at the prefix of items[lo:hi]
// whose strip is closest to square, then recurses into both halves.
func split(items []treemapItem, out []rect, lo, hi int, total int64, bounds rect) {
	if lo >= hi || bounds.w <= 0 || bounds.h <= 0 || total <= 0 {
		return
	}
	if hi-lo == 1 {
		out[lo] = bounds
		return
	}

	wide := bounds.w >= bounds.h
	cut, best := lo+1, math.Inf(1)
	var running int64
	for i := lo; i < hi-1; i++ {
		running += items[i].size
		frac := float64(running) / float64(total)
		a, b := frac*float64(bounds.w), float64(bounds.h)
		if !wide {
			a, b = float64(bounds.w), frac*float64(bounds.h)
		}
		if ratio := math.Max(a/b, b/a); ratio < best {
			best, cut = ratio, i+1
		}
	}

	var head int64
	for _, it := range items[lo:cut] {
		head += it.size
	}
	frac := float64(head) / float64(total)
	first, second := bounds, bounds
	if wide {
		w := clamp(int(frac*float64(bounds.w)), 1, bounds.w-1)
		first.w, second.x, second.w = w, bounds.x+w, bounds.w-w
	} else {
		h := clamp(int(frac*float64(bounds.h)), 1, bounds.h-1)
		first.h, second.y, second.h = h, bounds.y+h, bounds.h-h
	}
	split(items, out, lo, cut, head, first)
	split(items, out, cut, hi, total-head, second)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func fillRect(grid [][]rune, colors [][]lipgloss.Color, r rect, c lipgloss.Color) {
	for y := r.y; y < r.y+r.h && y < len(grid); y++ {
		for x := r.x; x < r.x+r.w && x < len(grid[y]); x++ {
			grid[y][x] = ' '
			colors[y][x] = c
		}
	}
}

func drawBorder(grid [][]rune, r rect) {
	if r.w < 2 || r.h < 2 {
		return
	}
	set := func(x, y int, ch rune) {
		if y >= 0 && y < len(grid) && x >= 0 && x < len(grid[y]) {
			grid[y][x] = ch
		}
	}
	right, bottom := r.x+r.w-1, r.y+r.h-1
	for x := r.x + 1; x < right; x++ {
		set(x, r.y, '─')
		set(x, bottom, '─')
	}
	for y := r.y + 1; y < bottom; y++ {
		set(r.x, y, '│')
		set(right, y, '│')
	}
	set(r.x, r.y, '┌')
	set(right, r.y, '┐')
	set(r.x, bottom, '└')
	set(right, bottom, '┘')
}

// placeLabel writes label on the first inner line of r.
func placeLabel(grid [][]rune, r rect, label string) {
	innerW, innerH := r.w-2, r.h-2
	if innerW <= 0 || innerH <= 0 || r.y+1 >= len(grid) {
		return
	}
	row := grid[r.y+1]
	for i, ch := range []rune(util.TruncateString(label, innerW)) {
		if x := r.x + 1 + i; x < len(row) {
			row[x] = ch
		}
	}
}
