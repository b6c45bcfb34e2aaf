package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/sadopc/duscope/internal/model"
)

// Theme holds the palette and the styles built from it.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Muted     lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Success   lipgloss.Color

	BgDark     lipgloss.Color
	BgMedium   lipgloss.Color
	BgLight    lipgloss.Color
	BgSelected lipgloss.Color

	TextPrimary   lipgloss.Color
	TextSecondary lipgloss.Color
	TextMuted     lipgloss.Color

	// Size bars blend from GradientStart to GradientEnd.
	GradientStart lipgloss.Color
	GradientEnd   lipgloss.Color

	HeaderStyle      lipgloss.Style
	BreadcrumbStyle  lipgloss.Style
	TabActiveStyle   lipgloss.Style
	TabInactiveStyle lipgloss.Style
	StatusBarStyle   lipgloss.Style
	SelectedRow      lipgloss.Style
	CursorIndicator  lipgloss.Style
	DirName          lipgloss.Style
	FileName         lipgloss.Style
	LinkName         lipgloss.Style
	SizeText         lipgloss.Style
	PercentText      lipgloss.Style
	ErrorText        lipgloss.Style
	WarningText      lipgloss.Style
	MutedText        lipgloss.Style
	PendingGlyph     lipgloss.Style
	HelpKey          lipgloss.Style
	HelpDesc         lipgloss.Style
	ModalStyle       lipgloss.Style
	ModalTitle       lipgloss.Style
}

// DefaultTheme returns the dark theme.
func DefaultTheme() Theme {
	t := Theme{
		Primary:   lipgloss.Color("#7B2FBE"),
		Secondary: lipgloss.Color("#00D4AA"),
		Accent:    lipgloss.Color("#61AFEF"),
		Muted:     lipgloss.Color("#5C6370"),
		Error:     lipgloss.Color("#E06C75"),
		Warning:   lipgloss.Color("#E5C07B"),
		Success:   lipgloss.Color("#98C379"),

		BgDark:     lipgloss.Color("#1E1E2E"),
		BgMedium:   lipgloss.Color("#282A36"),
		BgLight:    lipgloss.Color("#313244"),
		BgSelected: lipgloss.Color("#4A4A6A"),

		TextPrimary:   lipgloss.Color("#CDD6F4"),
		TextSecondary: lipgloss.Color("#BAC2DE"),
		TextMuted:     lipgloss.Color("#6C7086"),

		GradientStart: lipgloss.Color("#7B2FBE"),
		GradientEnd:   lipgloss.Color("#00D4AA"),
	}

	t.HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary).Background(t.BgMedium)
	t.BreadcrumbStyle = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.TabActiveStyle = lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary).Background(t.Primary).Padding(0, 1)
	t.TabInactiveStyle = lipgloss.NewStyle().Foreground(t.TextMuted).Padding(0, 1)
	t.StatusBarStyle = lipgloss.NewStyle().Foreground(t.TextSecondary).Background(t.BgMedium)

	t.SelectedRow = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(t.BgSelected)
	t.CursorIndicator = lipgloss.NewStyle().Foreground(t.Primary).Bold(true)
	t.DirName = lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	t.FileName = lipgloss.NewStyle().Foreground(t.TextSecondary)
	t.LinkName = lipgloss.NewStyle().Foreground(t.Secondary).Italic(true)
	t.SizeText = lipgloss.NewStyle().Foreground(t.TextMuted).Align(lipgloss.Right)
	t.PercentText = lipgloss.NewStyle().Foreground(t.TextMuted).Width(6).Align(lipgloss.Right)
	t.ErrorText = lipgloss.NewStyle().Foreground(t.Error)
	t.WarningText = lipgloss.NewStyle().Foreground(t.Warning).Bold(true)
	t.MutedText = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.PendingGlyph = lipgloss.NewStyle().Foreground(t.Warning)

	t.HelpKey = lipgloss.NewStyle().Foreground(t.Primary).Bold(true)
	t.HelpDesc = lipgloss.NewStyle().Foreground(t.TextMuted)

	t.ModalStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2).
		Background(t.BgMedium)
	t.ModalTitle = lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary).Padding(0, 0, 1, 0)

	return t
}

// StateGlyph is the one-cell marker shown before a row. Finished rows get a
// blank so that anything still moving stands out.
func (t Theme) StateGlyph(state model.ScanState, flags model.NodeFlag) string {
	switch {
	case state == model.StateErrored:
		return t.ErrorText.Render("!")
	case flags&model.FlagOtherDevice != 0:
		return t.MutedText.Render(">")
	case state == model.StatePending:
		return t.PendingGlyph.Render("·")
	case state == model.StateInProgress:
		return t.PendingGlyph.Render("~")
	default:
		return " "
	}
}

// KindColor is the treemap fill for an entry.
func (t Theme) KindColor(kind model.Kind, state model.ScanState) lipgloss.Color {
	switch {
	case state == model.StateErrored:
		return t.Error
	case state != model.StateDone:
		return t.Warning
	case kind == model.KindDir:
		return t.Accent
	case kind == model.KindFile:
		return t.Secondary
	default:
		return t.Muted
	}
}

// GradientColor returns a color between GradientStart and GradientEnd.
func (t Theme) GradientColor(ratio float64) lipgloss.Color {
	if ratio <= 0 {
		return t.GradientStart
	}
	if ratio >= 1 {
		return t.GradientEnd
	}
	c1, _ := colorful.Hex(string(t.GradientStart))
	c2, _ := colorful.Hex(string(t.GradientEnd))
	return lipgloss.Color(c1.BlendLab(c2, ratio).Hex())
}

// BarGradient renders a bar whose filled cells each take their own color
// along the gradient.
func (t Theme) BarGradient(width int, ratio float64) string {
	if width <= 0 {
		return ""
	}
	filled := int(ratio * float64(width))
	filled = min(max(filled, 0), width)

	var buf strings.Builder
	buf.Grow(width * 20)
	for i := 0; i < filled; i++ {
		c := t.GradientColor(float64(i) / float64(max(width-1, 1)))
		buf.WriteString(lipgloss.NewStyle().Foreground(c).Render("━"))
	}
	if filled < width {
		buf.WriteString(t.MutedText.Render(strings.Repeat("─", width-filled)))
	}
	return buf.String()
}
