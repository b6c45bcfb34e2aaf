package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/duscope/internal/scanner"
	"github.com/sadopc/duscope/internal/ui/style"
	"github.com/sadopc/duscope/internal/util"
)

// RenderScanProgress renders the one-line progress shown in place of the
// tab bar while a scan runs. The tree stays browsable underneath.
func RenderScanProgress(theme style.Theme, spinner string, p scanner.Progress, width int) string {
	if width <= 0 {
		return ""
	}
	stats := []string{
		util.FormatCount(p.FilesScanned) + " files",
		util.FormatCount(p.DirsScanned) + " dirs",
		util.FormatSize(p.BytesFound),
		fmt.Sprintf("%d/%d workers", p.Active, p.Workers),
	}
	if p.Queued > 0 {
		stats = append(stats, util.FormatCount(int64(p.Queued))+" queued")
	}
	if rate := p.ItemsPerSecond(); rate > 0 {
		stats = append(stats, util.FormatCount(int64(rate))+"/s")
	}
	stats = append(stats, util.FormatDuration(p.Duration))

	left := " " + spinner + " " + lipgloss.NewStyle().Bold(true).Foreground(theme.Primary).Render("Scanning") +
		"  " + lipgloss.NewStyle().Foreground(theme.TextSecondary).Render(strings.Join(stats, "  "))
	if p.Errors > 0 {
		left += "  " + theme.ErrorText.Render(fmt.Sprintf("%d errors", p.Errors))
	}

	if room := width - lipgloss.Width(left) - 3; room > 8 && p.CurrentPath != "" {
		left += "  " + theme.MutedText.Render(util.TruncateString(p.CurrentPath, room))
	}
	return lipgloss.NewStyle().Background(theme.BgLight).Width(width).Render(left)
}
