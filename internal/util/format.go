// Package util formats sizes, counts and names for display.
package util

import (
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
)

// Ellipsis marks a truncated name.
const Ellipsis = "…"

// FormatSize returns an IEC size such as "1.5 KiB". Negative sizes show as zero.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatCount groups digits: 1234567 becomes "1,234,567".
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// FormatAge describes a modification time relative to now. The zero time
// is shown as "-".
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// FormatDuration rounds d for a progress line.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

// Percent returns the percentage of part relative to total.
func Percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// TruncateString shortens s to at most width terminal cells, ending in an
// ellipsis when something was cut. Wide runes count as two cells.
func TruncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, Ellipsis)
}

// Width returns the number of terminal cells s occupies.
func Width(s string) int {
	return ansi.StringWidth(s)
}
