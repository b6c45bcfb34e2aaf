package components

import (
	"fmt"
	"strings"

	"github.com/sadopc/duscope/internal/model"
	"github.com/sadopc/duscope/internal/nav"
	"github.com/sadopc/duscope/internal/ui/style"
	"github.com/sadopc/duscope/internal/util"
)

// TreeView renders the directory listing of one snapshot.
type TreeView struct {
	Theme  style.Theme
	Layout style.Layout
	Snap   nav.Snapshot
}

// Render returns exactly ContentHeight lines.
func (tv *TreeView) Render() string {
	width := tv.Layout.ContentWidth()
	height := tv.Layout.ContentHeight()

	var lines []string
	if len(tv.Snap.Items) == 0 {
		msg := "  (empty directory)"
		if !tv.Snap.Dir.State.Terminal() {
			msg = "  (scanning…)"
		}
		lines = append(lines, style.FullWidth(tv.Theme.MutedText.Render(msg), width))
	}

	for i, item := range tv.Snap.Visible() {
		selected := tv.Snap.Offset+i == tv.Snap.Cursor
		lines = append(lines, tv.renderRow(item, selected, width))
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func (tv *TreeView) renderRow(item nav.Item, selected bool, width int) string {
	th := tv.Theme
	indicator := "  "
	if selected {
		indicator = th.CursorIndicator.Render(" >")
	}

	pct := th.PercentText.Render(fmt.Sprintf("%5.1f%%", item.Percent))
	bar := th.BarGradient(tv.Layout.BarWidth(), item.Percent/100)
	glyph := th.StateGlyph(item.State, item.Flags)

	nameWidth := tv.Layout.NameWidth()
	name := util.TruncateString(Label(item), nameWidth)
	var nameStyled string
	switch {
	case item.State == model.StateErrored:
		nameStyled = th.ErrorText.Render(name)
	case item.IsDir():
		nameStyled = th.DirName.Render(name)
	case item.Kind == model.KindSymlink:
		nameStyled = th.LinkName.Render(name)
	case item.Hardlink():
		nameStyled = th.MutedText.Render(name)
	default:
		nameStyled = th.FileName.Render(name)
	}
	nameStyled = style.FullWidth(nameStyled, nameWidth)

	size := util.FormatSize(item.Size)
	if item.Estimated() {
		size = "~" + size
	}
	sizeStyled := th.SizeText.Width(10).Render(size)

	row := fmt.Sprintf("%s%s [%s] %s %s %s", indicator, pct, bar, glyph, nameStyled, sizeStyled)
	row = style.FullWidth(row, width)
	if selected {
		return th.SelectedRow.Width(width).Render(row)
	}
	return row
}

// Label is the name column text: the name plus whatever the row needs to
// say about the entry.
func Label(item nav.Item) string {
	var b strings.Builder
	b.WriteString(item.Name)
	switch {
	case item.IsDir():
		b.WriteString("/")
	case item.Kind == model.KindSymlink:
		b.WriteString(" -> symlink")
	case item.Kind == model.KindOther:
		b.WriteString(" (special)")
	}
	if !item.IsDir() && item.Nlink > 1 {
		fmt.Fprintf(&b, " [H %d]", item.Nlink)
	}
	if item.OtherDevice() {
		b.WriteString(" (other filesystem)")
	}
	if item.Reason != "" {
		fmt.Fprintf(&b, " (%s)", item.Reason)
	}
	return b.String()
}
