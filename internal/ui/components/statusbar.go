package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/duscope/internal/model"
	"github.com/sadopc/duscope/internal/nav"
	"github.com/sadopc/duscope/internal/ui/style"
	"github.com/sadopc/duscope/internal/util"
)

// StatusInfo holds what the status line reports.
type StatusInfo struct {
	Dir         nav.Summary
	Count       int
	Selected    nav.Item
	HasSelect   bool
	UseApparent bool
	ShowHidden  bool
	// Errors is the error count under the scan root.
	Errors      int64
	SharedBytes int64
	Message     string
	IsError     bool
	// Hints is the rendered short help.
	Hints string
}

// RenderStatusBar renders the status line and the key hints below it.
func RenderStatusBar(theme style.Theme, info StatusInfo, width int) string {
	var left string
	switch {
	case info.Message != "" && info.IsError:
		left = " " + theme.ErrorText.Bold(true).Render(info.Message)
	case info.Message != "":
		left = " " + lipgloss.NewStyle().Foreground(theme.Success).Render(info.Message)
	default:
		left = " " + statusSummary(info)
	}

	var right []string
	if info.SharedBytes > 0 {
		right = append(right, theme.MutedText.Render("hard links: "+util.FormatSize(info.SharedBytes)+" counted once"))
	}
	if info.Errors > 0 {
		right = append(right, theme.WarningText.Render(fmt.Sprintf("totals may be incomplete: %s errors", util.FormatCount(info.Errors))))
	}
	rightStr := strings.Join(right, "  ") + " "

	gap := max(width-lipgloss.Width(left)-lipgloss.Width(rightStr), 1)
	line := theme.StatusBarStyle.Width(max(width, 0)).Render(left + strings.Repeat(" ", gap) + rightStr)
	return line + "\n" + style.FullWidth(" "+info.Hints, width)
}

func statusSummary(info StatusInfo) string {
	metric := "disk"
	if info.UseApparent {
		metric = "apparent"
	}
	parts := []string{
		fmt.Sprintf("%d entries", info.Count),
		fmt.Sprintf("%s %s", util.FormatSize(info.Dir.Size), metric),
	}
	if !info.ShowHidden {
		parts = append(parts, "hidden off")
	}
	if info.HasSelect {
		sel := info.Selected
		s := fmt.Sprintf("Selected: %s (%s", sel.Name, util.FormatSize(sel.Size))
		if sel.IsDir() {
			s += fmt.Sprintf(", %s items", util.FormatCount(sel.Items))
		}
		if sel.State != model.StateDone {
			s += ", " + sel.State.String()
		}
		parts = append(parts, s+")")
	}
	return strings.Join(parts, " | ")
}

// RenderTabBar renders the view tabs and the sort in effect.
func RenderTabBar(theme style.Theme, activeView int, sort model.SortConfig, elapsed string, width int) string {
	tabs := []string{"Tree", "Treemap"}
	var tabLine []string
	for i, tab := range tabs {
		label := fmt.Sprintf(" %s ", tab)
		if i == activeView {
			tabLine = append(tabLine, theme.TabActiveStyle.Render(label))
		} else {
			tabLine = append(tabLine, theme.TabInactiveStyle.Render(label))
		}
	}
	left := " " + strings.Join(tabLine, " ")

	order := "↓"
	if sort.Order == model.SortAsc {
		order = "↑"
	}
	label := "Sort: " + sort.Field.String() + " " + order
	if sort.DirsFirst {
		label += ", dirs first"
	}
	if elapsed != "" {
		label = "scanned in " + elapsed + "  " + label
	}
	right := theme.MutedText.Render(label + " ")

	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return lipgloss.NewStyle().
		Foreground(theme.TextSecondary).
		Background(theme.BgLight).
		Width(max(width, 0)).
		Render(left + strings.Repeat(" ", gap) + right)
}
