package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/duscope/internal/ui/style"
)

// HelpSection is one titled group of bindings in the help overlay.
type HelpSection struct {
	Name     string
	Bindings []key.Binding
}

// RenderHelp renders the full key reference from the bindings' own help text.
func RenderHelp(theme style.Theme, title string, sections []HelpSection, width, height int) string {
	boxWidth := min(60, width-4)

	lines := []string{theme.ModalTitle.Render("  " + title + " - Keyboard Shortcuts")}
	for _, sec := range sections {
		lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(theme.Accent).Render("  "+sec.Name))
		for _, b := range sec.Bindings {
			h := b.Help()
			k := theme.HelpKey.Width(16).Render("    " + h.Key)
			lines = append(lines, k+" "+lipgloss.NewStyle().Foreground(theme.TextSecondary).Render(h.Desc))
		}
		lines = append(lines, "")
	}
	lines = append(lines, theme.MutedText.Render("  Press ? or esc to close"))

	box := theme.ModalStyle.Width(max(boxWidth, 0)).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
