package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/duscope/internal/ui/style"
	"github.com/sadopc/duscope/internal/util"
)

// ConfirmItem is the entry awaiting confirmation.
type ConfirmItem struct {
	Name  string
	Path  string
	Size  int64
	IsDir bool
	Items int64
	// Host is set for entries on a remote machine.
	Host string
}

// RenderConfirmDialog renders the delete confirmation modal.
func RenderConfirmDialog(theme style.Theme, item ConfirmItem, width, height int) string {
	boxWidth := min(64, width-4)
	inner := max(boxWidth-8, 1)

	lines := []string{theme.ModalTitle.Render("  Delete " + kindWord(item))}

	where := "permanently deleted"
	if item.Host != "" {
		where = "permanently deleted on " + item.Host
	}
	lines = append(lines,
		lipgloss.NewStyle().Foreground(theme.Warning).Render("  This will be "+where+":"),
		"",
		theme.ErrorText.Render("  "+util.TruncateString(item.Path, inner)),
	)

	detail := util.FormatSize(item.Size)
	if item.IsDir {
		detail += fmt.Sprintf(" in %s items", util.FormatCount(item.Items))
	}
	lines = append(lines, theme.MutedText.Render("  "+detail), "")

	prompt := lipgloss.NewStyle().Foreground(theme.TextPrimary).Render("  Press ") +
		lipgloss.NewStyle().Bold(true).Foreground(theme.Success).Render("y") +
		lipgloss.NewStyle().Foreground(theme.TextPrimary).Render(" to confirm, ") +
		lipgloss.NewStyle().Bold(true).Foreground(theme.Error).Render("n/esc") +
		lipgloss.NewStyle().Foreground(theme.TextPrimary).Render(" to cancel")
	lines = append(lines, prompt)

	box := theme.ModalStyle.Width(max(boxWidth, 0)).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func kindWord(item ConfirmItem) string {
	if item.IsDir {
		return "directory"
	}
	return "file"
}
