package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/duscope/internal/nav"
	"github.com/sadopc/duscope/internal/probe"
	"github.com/sadopc/duscope/internal/ui/style"
	"github.com/sadopc/duscope/internal/util"
)

// HeaderInfo is what the top line shows.
type HeaderInfo struct {
	Title       string
	Root        nav.Summary
	UseApparent bool
	// Capacity is nil until the filesystem size is known or when the probe
	// cannot report it.
	Capacity    *probe.Capacity
	CapacityBar string
}

// RenderHeader renders the title, the scan root, its totals and the
// filesystem fill level.
func RenderHeader(theme style.Theme, info HeaderInfo, width int) string {
	if width < 10 {
		return ""
	}
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.Primary).Render(" " + info.Title)

	metric := "disk"
	if info.UseApparent {
		metric = "apparent"
	}
	stats := fmt.Sprintf("%s items  %s %s ", util.FormatCount(info.Root.Items), util.FormatSize(info.Root.Size), metric)
	if c := info.Capacity; c != nil && c.Total > 0 {
		pct := float64(c.Used()) / float64(c.Total) * 100
		stats += fmt.Sprintf(" %s %.0f%% of %s ", info.CapacityBar, pct, util.FormatSize(int64(c.Total)))
	}
	statsStyled := lipgloss.NewStyle().Foreground(theme.TextMuted).Render(stats)

	titleW := lipgloss.Width(title)
	statsW := lipgloss.Width(statsStyled)
	path := ""
	if room := width - titleW - statsW - 3; room > 5 {
		path = util.TruncateString(info.Root.Path, room)
	}
	pathStyled := lipgloss.NewStyle().Foreground(theme.TextPrimary).Render("  " + path)

	gap := max(width-titleW-lipgloss.Width(pathStyled)-statsW, 1)
	line := title + pathStyled + strings.Repeat(" ", gap) + statsStyled
	return theme.HeaderStyle.Width(width).Render(line)
}

// RenderBreadcrumb renders the path from the scan root to the current
// directory, eliding the middle when it does not fit.
func RenderBreadcrumb(theme style.Theme, segments []string, width int) string {
	if len(segments) == 0 {
		return ""
	}
	sep := theme.MutedText.Render(" > ")
	parts := make([]string, len(segments))
	for i, seg := range segments {
		s := theme.MutedText
		if i == len(segments)-1 {
			s = lipgloss.NewStyle().Foreground(theme.TextPrimary).Bold(true)
		}
		parts[i] = s.Render(seg)
	}

	crumb := " " + strings.Join(parts, sep)
	if lipgloss.Width(crumb) > width && len(parts) > 2 {
		crumb = " " + parts[0] + sep + theme.MutedText.Render(util.Ellipsis) + sep + strings.Join(parts[len(parts)-2:], sep)
	}
	if lipgloss.Width(crumb) > width && width > 0 {
		crumb = util.TruncateString(crumb, width)
	}
	return theme.BreadcrumbStyle.Width(max(width, 0)).Render(crumb)
}
