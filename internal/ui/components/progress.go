package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/quotagen/internal/ui/theme"
)

// QuotaBar displays how full a quota cell is.
type QuotaBar struct {
	Label    string
	Actual   int
	Required int
	Width    int
}

// NewQuotaBar creates a new quota bar.
func NewQuotaBar(label string, actual, required, width int) QuotaBar {
	return QuotaBar{
		Label:    label,
		Actual:   actual,
		Required: required,
		Width:    width,
	}
}

// Percent returns the fill ratio, 1 for an empty quota that is met.
func (q QuotaBar) Percent() float64 {
	if q.Required <= 0 {
		if q.Actual > 0 {
			return 2
		}
		return 1
	}
	return float64(q.Actual) / float64(q.Required)
}

// View renders the quota bar. Cells above quota are drawn in the accent
// color.
func (q QuotaBar) View() string {
	var result string

	if q.Label != "" {
		result += lipgloss.NewStyle().Foreground(theme.Text).Render(q.Label) + "  "
	}

	counts := fmt.Sprintf("  %d/%d", q.Actual, q.Required)
	barWidth := q.Width - lipgloss.Width(result) - len(counts)
	if barWidth < 4 {
		barWidth = 4
	}

	pct := q.Percent()
	filled := int(float64(barWidth) * pct)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	empty := barWidth - filled

	fill := theme.ProgressFilled
	if pct > 1 {
		fill = theme.ProgressOver
	}

	result += fill.Render(strings.Repeat("█", filled))
	result += theme.ProgressEmpty.Render(strings.Repeat("░", empty))
	result += lipgloss.NewStyle().Foreground(theme.TextDim).Render(counts)

	return result
}
